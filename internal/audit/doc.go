// Package audit implements async event dispatching for security-relevant
// outcomes: logins, refreshes, reuse detection, authorization grants.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: structured record with timestamp, type, account, session, app and reason.
//
// # What this package must NOT do
//
//   - Decide which events to emit; the Engine does that.
//   - Import meowauth or any sibling internal package.
package audit
