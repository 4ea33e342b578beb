// Package middleware adapts meowauth.Engine authorization to net/http.
//
// # Guards
//
//   - [Guard] authorizes a request against a [meowauth.Requirement].
//   - [RequireFoundation] accepts only first-party login sessions.
//   - [RequireScopes] accepts foundation sessions or OAuth sessions holding
//     every listed scope.
//
// Each guard pulls the credential through [Extract], calls Engine.Authorize
// and stores the resulting principal in the request context, where handlers
// read it with [PrincipalFromContext].
//
// Rejections are written by [WriteError], which maps engine reasons onto
// HTTP status codes. Handlers outside the guards use it too, so every
// endpoint reports failures the same way.
package middleware
