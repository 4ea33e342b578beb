package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of a rate check.
type Decision struct {
	Allowed bool
	// RetryAfter is the remaining cooldown when Allowed is false.
	RetryAfter time.Duration
}

// recordLua advances a burst/cooldown bucket by one event.
//
// KEYS[1] bucket hash. ARGV: now ms, burst, window ms, now+window ms.
// Returns {next allowed 0|1, cooldown ms}.
const recordLua = `
local now = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local f = redis.call("HMGET", KEYS[1], "count", "last", "cooldown")
local count = tonumber(f[1] or "0") or 0
local last = tonumber(f[2] or "0") or 0
local cooldown = f[3] or "0"

if now - last > window then
  count = 0
end
count = count + 1
if count >= burst then
  cooldown = ARGV[4]
  count = 0
end
redis.call("HSET", KEYS[1], "count", tostring(count), "last", ARGV[1], "cooldown", cooldown)
redis.call("PEXPIRE", KEYS[1], ARGV[3])
if now < tonumber(cooldown) then
  return {0, cooldown}
end
return {1, cooldown}
`

var recordScript = redis.NewScript(recordLua)

// hitScript rejects during cooldown, otherwise records and allows.
var hitScript = redis.NewScript(`
local blocked = redis.call("HGET", KEYS[1], "cooldown")
if blocked and tonumber(ARGV[1]) < tonumber(blocked) then
  return {-1, blocked}
end
` + recordLua)

// Limiter is a shared burst/cooldown limiter. Buckets live in Redis so every
// engine replica enforces the same budget.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// New creates a Limiter backed by redisClient. now is the engine clock.
func New(redisClient redis.UniversalClient, prefix string, now func() time.Time) *Limiter {
	if prefix == "" {
		prefix = "rl"
	}
	if now == nil {
		now = time.Now
	}
	return &Limiter{redis: redisClient, prefix: prefix, now: now}
}

func (l *Limiter) key(op, principal string) string {
	return l.prefix + ":" + op + ":" + principal
}

// Allowed reports whether op for principal is outside any active cooldown.
// It never mutates the bucket.
func (l *Limiter) Allowed(ctx context.Context, op, principal string) (Decision, error) {
	raw, err := l.redis.HGet(ctx, l.key(op, principal), "cooldown").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Decision{Allowed: true}, nil
		}
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return l.decide(raw, l.now())
}

// Record counts one event against the bucket and reports whether the next
// call will be allowed. Reaching burst within window starts a cooldown of
// window and resets the count.
func (l *Limiter) Record(ctx context.Context, op, principal string, burst int, window time.Duration) (Decision, error) {
	if err := validate(burst, window); err != nil {
		return Decision{}, err
	}
	now := l.now()
	res, err := recordScript.Run(ctx, l.redis, []string{l.key(op, principal)}, l.args(now, burst, window)...).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	_, cooldown, err := parseResult(res)
	if err != nil {
		return Decision{}, err
	}
	return l.decide(cooldown, now)
}

// Hit checks and records in one round trip. A call during cooldown is
// rejected with ErrRateLimited and does not touch the bucket.
func (l *Limiter) Hit(ctx context.Context, op, principal string, burst int, window time.Duration) (Decision, error) {
	if err := validate(burst, window); err != nil {
		return Decision{}, err
	}
	now := l.now()
	res, err := hitScript.Run(ctx, l.redis, []string{l.key(op, principal)}, l.args(now, burst, window)...).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	status, cooldown, err := parseResult(res)
	if err != nil {
		return Decision{}, err
	}
	if status == -1 {
		d, err := l.decide(cooldown, now)
		if err != nil {
			return Decision{}, err
		}
		return d, ErrRateLimited
	}
	return Decision{Allowed: true}, nil
}

// Reset clears the bucket, typically after a successful attempt.
func (l *Limiter) Reset(ctx context.Context, op, principal string) error {
	if err := l.redis.Del(ctx, l.key(op, principal)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) args(now time.Time, burst int, window time.Duration) []interface{} {
	ms := now.UnixMilli()
	return []interface{}{
		strconv.FormatInt(ms, 10),
		strconv.Itoa(burst),
		strconv.FormatInt(window.Milliseconds(), 10),
		strconv.FormatInt(ms+window.Milliseconds(), 10),
	}
}

func (l *Limiter) decide(cooldownMillis string, now time.Time) (Decision, error) {
	if cooldownMillis == "" {
		return Decision{Allowed: true}, nil
	}
	ms, err := strconv.ParseInt(cooldownMillis, 10, 64)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: corrupt bucket", ErrRedisUnavailable)
	}
	until := time.UnixMilli(ms)
	if now.Before(until) {
		return Decision{Allowed: false, RetryAfter: until.Sub(now)}, nil
	}
	return Decision{Allowed: true}, nil
}

func parseResult(res []interface{}) (int64, string, error) {
	if len(res) < 2 {
		return 0, "", fmt.Errorf("%w: invalid limiter response", ErrRedisUnavailable)
	}
	status, ok := res[0].(int64)
	if !ok {
		return 0, "", fmt.Errorf("%w: invalid limiter status", ErrRedisUnavailable)
	}
	cooldown, ok := res[1].(string)
	if !ok {
		return 0, "", fmt.Errorf("%w: invalid limiter cooldown", ErrRedisUnavailable)
	}
	return status, cooldown, nil
}

func validate(burst int, window time.Duration) error {
	if burst <= 0 {
		return errors.New("burst must be > 0")
	}
	if window < time.Millisecond {
		return errors.New("window must be >= 1ms")
	}
	return nil
}
