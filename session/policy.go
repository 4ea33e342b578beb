package session

import (
	"errors"
	"fmt"
	"time"
)

// ErrTTLOverrideNotAllowed is returned when a caller overrides the lifetime
// of a kind that rotates refresh tokens.
var ErrTTLOverrideNotAllowed = errors.New("ttl override not allowed for rotating kind")

// ErrInvalidKind is returned for kinds outside the policy table.
var ErrInvalidKind = errors.New("invalid session kind")

// Lifetime is the pair of windows applied to a new session.
// Refresh is zero for kinds that never rotate.
type Lifetime struct {
	Access  time.Duration
	Refresh time.Duration
}

// Policy maps every kind to its lifetime.
type Policy map[Kind]Lifetime

// DefaultPolicy returns the stock lifetime table.
func DefaultPolicy() Policy {
	return Policy{
		KindEmailCode:      {Access: 10 * time.Minute},
		KindDeviceLink:     {Access: 5 * time.Minute},
		KindFoundation:     {Access: 72 * time.Hour, Refresh: 90 * 24 * time.Hour},
		KindOAuthAuthorize: {Access: 10 * time.Minute},
		KindOAuthExchange:  {Access: 5 * time.Minute},
		KindOAuthFull:      {Access: 72 * time.Hour, Refresh: 90 * 24 * time.Hour},
	}
}

// Clone returns an independent copy of p.
func (p Policy) Clone() Policy {
	out := make(Policy, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Rotating reports whether kind carries a refresh window.
func (p Policy) Rotating(kind Kind) bool {
	return p[kind].Refresh > 0
}

// Validate checks that every kind is present and that the rotating set is
// exactly foundation and oauth-full.
func (p Policy) Validate() error {
	for _, kind := range Kinds {
		lt, ok := p[kind]
		if !ok {
			return fmt.Errorf("missing lifetime for kind %q", kind)
		}
		if lt.Access <= 0 {
			return fmt.Errorf("access lifetime for %q must be > 0", kind)
		}
		rotating := kind == KindFoundation || kind == KindOAuthFull
		if rotating && lt.Refresh < lt.Access {
			return fmt.Errorf("refresh lifetime for %q must be >= access lifetime", kind)
		}
		if !rotating && lt.Refresh != 0 {
			return fmt.Errorf("kind %q does not rotate and must not set a refresh lifetime", kind)
		}
	}
	return nil
}

// resolve returns the lifetime to apply for kind given an optional override.
func (p Policy) resolve(kind Kind, override time.Duration) (Lifetime, error) {
	lt, ok := p[kind]
	if !ok || !kind.Valid() {
		return Lifetime{}, ErrInvalidKind
	}
	if override < 0 {
		return Lifetime{}, fmt.Errorf("negative ttl override")
	}
	if override > 0 {
		if lt.Refresh > 0 {
			return Lifetime{}, ErrTTLOverrideNotAllowed
		}
		lt.Access = override
	}
	return lt, nil
}
