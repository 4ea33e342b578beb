package rate

import "errors"

var (
	// ErrRateLimited is returned by Hit during an active cooldown.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps bucket storage failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
