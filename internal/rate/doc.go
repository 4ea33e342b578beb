// Package rate implements the burst/cooldown primitive behind every named
// limit in internal/limiters.
//
// # Bucket semantics
//
// A bucket is a Redis hash rl:{op}:{principal} with fields count, last and
// cooldown (ms). Recording an event resets count when the previous event is
// older than the window, increments it, and when count reaches burst starts a
// cooldown of one window and zeroes the count. The clock is supplied by the
// caller and passed into the script, so tests and replicas agree on time.
//
// # What this package must NOT do
//
//   - Implement named policies (those live in internal/limiters).
//   - Be imported outside the meowauth module.
package rate
