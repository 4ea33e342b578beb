// Package meowauth is the authentication core of a social platform: it
// verifies credentials, issues and rotates session-bound tokens, enforces
// rate limits, and negotiates third-party app authorization.
//
// Engine methods are safe for concurrent use after [Builder.Build]. All
// shared state lives in Redis; account and app persistence is supplied by
// the caller through [AccountStore] and [AppStore].
//
// # Sessions
//
// Every bearer credential except standalone flow tokens points at a session
// record of one of six kinds (see package session). A token resolves only
// while its session exists, is unexpired and carries the same version, so
// deleting or rotating a session invalidates its outstanding tokens
// immediately.
//
// Foundation and oauth-full sessions rotate: [Engine.Refresh] bumps the
// version and replaces the refresh token. Presenting a superseded refresh
// token destroys the session ([ErrReuseDetected]).
//
// # Errors
//
// Failures are one of the sentinels in errors.go. [ReasonOf] maps any
// returned error to a stable [Reason] for transports; middleware uses it to
// pick the HTTP status.
//
// # Third-party apps
//
// [Engine.PrepareAuthorization] previews consent, [Engine.AuthorizeApp]
// records it and returns a single-use code, and [Engine.Exchange] turns the
// code plus the app secret into an oauth-full pair confined to the granted
// scopes.
package meowauth
