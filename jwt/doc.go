// Package jwt issues and verifies the engine's two token shapes: standalone
// tokens that carry their own purpose and expiry, and session-bound tokens
// that carry only a session id, a type tag and the session's revocation version.
package jwt
