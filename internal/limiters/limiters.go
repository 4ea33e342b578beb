package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/meowauth/internal/rate"
)

// Policy is a named burst/window pair.
type Policy struct {
	Name   string
	Burst  int
	Window time.Duration
}

// Config lists every named policy the engine enforces.
type Config struct {
	Password     Policy
	TOTP         Policy
	EmailCode    Policy
	ResetRequest Policy
	Exchange     Policy
	Register     Policy
}

// DefaultConfig returns the stock policy table.
func DefaultConfig() Config {
	return Config{
		Password:     Policy{Name: "password", Burst: 5, Window: time.Minute},
		TOTP:         Policy{Name: "totp", Burst: 5, Window: time.Minute},
		EmailCode:    Policy{Name: "email_code", Burst: 1, Window: time.Minute},
		ResetRequest: Policy{Name: "reset_request", Burst: 1, Window: 5 * time.Minute},
		Exchange:     Policy{Name: "exchange", Burst: 10, Window: time.Minute},
		Register:     Policy{Name: "register", Burst: 5, Window: time.Hour},
	}
}

// Validate checks every policy.
func (c Config) Validate() error {
	for _, p := range []Policy{c.Password, c.TOTP, c.EmailCode, c.ResetRequest, c.Exchange, c.Register} {
		if p.Name == "" {
			return errors.New("rate policy requires a name")
		}
		if p.Burst <= 0 {
			return fmt.Errorf("rate policy %q: burst must be > 0", p.Name)
		}
		if p.Window <= 0 {
			return fmt.Errorf("rate policy %q: window must be > 0", p.Name)
		}
	}
	return nil
}

// LimitedError reports which policy blocked a call and for how long.
type LimitedError struct {
	Policy     string
	RetryAfter time.Duration
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("%s rate limited, retry after %s", e.Policy, e.RetryAfter)
}

// Unwrap makes errors.Is(err, rate.ErrRateLimited) hold.
func (e *LimitedError) Unwrap() error { return rate.ErrRateLimited }

// Limiters applies the named policies. A nil *Limiters allows everything.
type Limiters struct {
	limiter *rate.Limiter
	config  Config
}

// New binds cfg to limiter.
func New(limiter *rate.Limiter, cfg Config) *Limiters {
	return &Limiters{limiter: limiter, config: cfg}
}

// Config returns the policy table in use.
func (l *Limiters) Config() Config {
	if l == nil {
		return Config{}
	}
	return l.config
}

// check rejects during an active cooldown without counting.
func (l *Limiters) check(ctx context.Context, p Policy, principal string) error {
	if l == nil || principal == "" {
		return nil
	}
	d, err := l.limiter.Allowed(ctx, p.Name, principal)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return &LimitedError{Policy: p.Name, RetryAfter: d.RetryAfter}
	}
	return nil
}

// record counts one failed attempt.
func (l *Limiters) record(ctx context.Context, p Policy, principal string) error {
	if l == nil || principal == "" {
		return nil
	}
	_, err := l.limiter.Record(ctx, p.Name, principal, p.Burst, p.Window)
	return err
}

// hit counts every attempt and rejects during cooldown.
func (l *Limiters) hit(ctx context.Context, p Policy, principal string) error {
	if l == nil || principal == "" {
		return nil
	}
	d, err := l.limiter.Hit(ctx, p.Name, principal, p.Burst, p.Window)
	if errors.Is(err, rate.ErrRateLimited) {
		return &LimitedError{Policy: p.Name, RetryAfter: d.RetryAfter}
	}
	return err
}

func (l *Limiters) reset(ctx context.Context, p Policy, principal string) error {
	if l == nil || principal == "" {
		return nil
	}
	return l.limiter.Reset(ctx, p.Name, principal)
}
