// Package session persists the six session kinds in Redis.
//
// # Layout
//
// Under a configurable prefix p:
//
//	p:s:{sid}      hash, one field per Session attribute
//	p:h:{sid}      list of superseded refresh digests, newest first
//	p:a:{account}  set of session ids owned by an account
//	p:p:{app}      set of session ids bound to an application
//	p:c:{code}     code digest -> session id
//	p:x            zset of session ids scored by expiry (ms)
//
// Rotation, reuse teardown, single-use consumption and the device-link
// verified flip are each one Lua script, so concurrent callers observe exactly
// one winner.
//
// # Architecture boundaries
//
// This package owns the [Store], the [Session] model and the lifetime
// [Policy]. It does NOT verify tokens or make authorization decisions.
//
// # What this package must NOT do
//
//   - Import meowauth or jwt (no upward imports).
//   - Store plaintext refresh tokens or codes; only digests.
package session
