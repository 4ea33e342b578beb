// Package stores holds small Redis-backed records that support single-use
// flows. [ConsumedTokens] is the deny-list that makes standalone tokens
// (pending TOTP logins, password resets, enrollments) usable exactly once.
//
// # What this package must NOT do
//
//   - Import meowauth or any sibling internal package.
//   - Store token material; only token ids.
package stores
