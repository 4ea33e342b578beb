package meowauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/meowauth/internal/limiters"
	"github.com/MrEthical07/meowauth/internal/rate"
	"github.com/MrEthical07/meowauth/internal/stores"
	"github.com/MrEthical07/meowauth/session"
)

var (
	// ErrInvalidCredential is returned for a wrong password, TOTP code,
	// recovery code, email code or app secret.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrInvalidToken is returned for tokens that cannot be decoded, or that
	// decode to the wrong kind or purpose.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the session or standalone token has
	// passed its expiry.
	ErrExpiredToken = errors.New("token expired")
	// ErrRevokedToken is returned when the session is gone or the token
	// carries a superseded version.
	ErrRevokedToken = errors.New("token revoked")
	// ErrReuseDetected is returned when a superseded refresh token is
	// presented. The session has already been destroyed.
	ErrReuseDetected = errors.New("refresh token reuse detected")
	// ErrInsufficientScope is returned when an oauth principal lacks a
	// required scope.
	ErrInsufficientScope = errors.New("insufficient scope")
	// ErrAccountBlocked is returned for deleted, banned or unapproved
	// accounts. It is wrapped in *BlockedError.
	ErrAccountBlocked = errors.New("account blocked")
	// ErrUnverified is returned for a device-link session that has not been
	// approved yet.
	ErrUnverified = errors.New("session not verified")
	// ErrRateLimited is returned while a rate policy is in cooldown. It is
	// wrapped in *RateLimitError.
	ErrRateLimited = errors.New("rate limited")
	// ErrStorageUnavailable is returned when Redis or the account store
	// fails or times out.
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrMalformedInput     = errors.New("malformed input")
	ErrNotOwner           = errors.New("not the application owner")
	ErrAppNotFound        = errors.New("application not found")
	ErrAppLimitReached    = errors.New("application limit reached")
	ErrRedirectNotAllowed = errors.New("redirect not allowed")
	ErrAccountExists      = errors.New("account already exists")
	ErrAccountNotFound    = errors.New("account not found")
	ErrTOTPNotEnabled     = errors.New("totp not enabled")
	ErrTOTPAlreadyEnabled = errors.New("totp already enabled")
	ErrEngineNotReady     = errors.New("engine not initialized")
)

// Reason is the stable code a transport layer reports for a rejection.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonExpired           Reason = "expired"
	ReasonRevoked           Reason = "revoked"
	ReasonInsufficientScope Reason = "insufficient_scope"
	ReasonBanned            Reason = "banned"
	ReasonUnapproved        Reason = "unapproved"
	ReasonRateLimited       Reason = "rate_limited"
	ReasonInvalid           Reason = "invalid"
	ReasonReuseDetected     Reason = "reuse_detected"
	ReasonUnavailable       Reason = "unavailable"
)

// BlockedError carries the reason an account is refused.
type BlockedError struct {
	Reason Reason
	// Until is the end of a temporary ban. Zero for permanent blocks.
	Until time.Time
}

func (e *BlockedError) Error() string {
	if !e.Until.IsZero() {
		return fmt.Sprintf("account blocked (%s) until %s", e.Reason, e.Until.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("account blocked (%s)", e.Reason)
}

func (e *BlockedError) Is(target error) bool { return target == ErrAccountBlocked }

func (e *BlockedError) Unwrap() error { return ErrAccountBlocked }

// RateLimitError reports the policy that rejected the call and when to retry.
type RateLimitError struct {
	Policy     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s, retry after %s", e.Policy, e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// ReasonOf maps an engine error to its stable reason code. Unrecognized
// errors map to ReasonInvalid; nil maps to ReasonNone.
func ReasonOf(err error) Reason {
	if err == nil {
		return ReasonNone
	}
	var be *BlockedError
	switch {
	case errors.As(err, &be):
		return be.Reason
	case errors.Is(err, ErrExpiredToken):
		return ReasonExpired
	case errors.Is(err, ErrRevokedToken):
		return ReasonRevoked
	case errors.Is(err, ErrReuseDetected):
		return ReasonReuseDetected
	case errors.Is(err, ErrInsufficientScope):
		return ReasonInsufficientScope
	case errors.Is(err, ErrAccountBlocked):
		return ReasonBanned
	case errors.Is(err, ErrUnverified):
		return ReasonUnapproved
	case errors.Is(err, ErrRateLimited):
		return ReasonRateLimited
	case errors.Is(err, ErrStorageUnavailable):
		return ReasonUnavailable
	default:
		return ReasonInvalid
	}
}

func blocked(reason Reason, until time.Time) error {
	return &BlockedError{Reason: reason, Until: until}
}

// translate maps package-level failures onto the engine's sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var limited *limiters.LimitedError
	switch {
	case errors.As(err, &limited):
		return &RateLimitError{Policy: limited.Policy, RetryAfter: limited.RetryAfter}
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrRefreshMismatch):
		return ErrRevokedToken
	case errors.Is(err, session.ErrExpired):
		return ErrExpiredToken
	case errors.Is(err, session.ErrReuseDetected):
		return ErrReuseDetected
	case errors.Is(err, session.ErrNotRotating):
		return ErrInvalidToken
	case errors.Is(err, stores.ErrTokenConsumed):
		return ErrRevokedToken
	case errors.Is(err, session.ErrRedisUnavailable),
		errors.Is(err, session.ErrCorrupt),
		errors.Is(err, rate.ErrRedisUnavailable),
		errors.Is(err, stores.ErrConsumedBackend):
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return err
}
