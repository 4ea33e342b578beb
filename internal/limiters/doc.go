// Package limiters names the engine's rate policies on top of internal/rate.
//
// # Policies
//
//   - Password and TOTP count failures per account and are checked before any
//     hash or code comparison.
//   - EmailCode and ResetRequest count requests per account.
//   - Exchange counts code exchanges per application.
//   - Register counts sign-ups per client IP.
//
// All methods are nil-safe: calling any method on a nil receiver returns nil.
//
// # What this package must NOT do
//
//   - Import meowauth or any sibling internal package except internal/rate.
//   - Decide consequences; flow code in the engine does that.
package limiters
