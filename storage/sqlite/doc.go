// Package sqlite persists accounts, authentication methods, recovery codes,
// applications and grants in a single SQLite file. Store implements both
// meowauth.AccountStore and meowauth.AppStore.
package sqlite
