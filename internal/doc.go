// Package internal holds helpers private to meowauth: identifier, code and
// secret generation and the digest used for every stored token or code.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - limiters: named rate policies
//   - rate: Redis burst/cooldown primitive
//   - stores: consumed-token deny-list
//   - mocks: gomock doubles for the engine's collaborator interfaces
//
// # What this package must NOT do
//
//   - Export types that appear in the public meowauth API.
package internal
