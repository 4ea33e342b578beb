package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrTokenConsumed is returned when a standalone token id was already spent.
	ErrTokenConsumed = errors.New("token already consumed")
	// ErrConsumedBackend wraps Redis failures.
	ErrConsumedBackend = errors.New("consumed-token backend unavailable")
)

// minMarkerTTL keeps a marker alive briefly even for a token that is about to
// expire, so a racing second use still loses.
const minMarkerTTL = time.Second

// ConsumedTokens is a deny-list of spent standalone token ids. An entry lives
// until the token's own expiry, after which the signature check rejects it.
type ConsumedTokens struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewConsumedTokens returns a deny-list under prefix (default "ct").
func NewConsumedTokens(client redis.UniversalClient, prefix string, now func() time.Time) *ConsumedTokens {
	if prefix == "" {
		prefix = "ct"
	}
	if now == nil {
		now = time.Now
	}
	return &ConsumedTokens{redis: client, prefix: prefix, now: now}
}

func (c *ConsumedTokens) key(jti string) string {
	return c.prefix + ":" + jti
}

// Consume marks jti as spent. The first caller wins; every later call for the
// same jti returns ErrTokenConsumed.
func (c *ConsumedTokens) Consume(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return ErrTokenConsumed
	}
	ttl := expiresAt.Sub(c.now())
	if ttl < minMarkerTTL {
		ttl = minMarkerTTL
	}

	ok, err := c.redis.SetNX(ctx, c.key(jti), "1", ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConsumedBackend, err)
	}
	if !ok {
		return ErrTokenConsumed
	}
	return nil
}

// Consumed reports whether jti has been spent without consuming it.
func (c *ConsumedTokens) Consumed(ctx context.Context, jti string) (bool, error) {
	n, err := c.redis.Exists(ctx, c.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrConsumedBackend, err)
	}
	return n == 1, nil
}

// Release removes the marker for jti. Only the caller that won Consume may
// release it, and only when the guarded action did not happen.
func (c *ConsumedTokens) Release(ctx context.Context, jti string) error {
	if jti == "" {
		return nil
	}
	if err := c.redis.Del(ctx, c.key(jti)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrConsumedBackend, err)
	}
	return nil
}
