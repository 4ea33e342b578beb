package limiters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/meowauth/internal/rate"
)

func newTestLimiters(t *testing.T, now func() time.Time) *Limiters {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return New(rate.New(rdb, "", now), DefaultConfig())
}

func TestPasswordFailuresTriggerCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newTestLimiters(t, func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := l.CheckPassword(ctx, "acct-1"); err != nil {
			t.Fatalf("attempt %d rejected early: %v", i+1, err)
		}
		if err := l.RecordPasswordFailure(ctx, "acct-1"); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}

	err := l.CheckPassword(ctx, "acct-1")
	var limited *LimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("expected LimitedError, got %v", err)
	}
	if limited.Policy != "password" || limited.RetryAfter != time.Minute {
		t.Fatalf("unexpected limit %+v", limited)
	}
	if !errors.Is(err, rate.ErrRateLimited) {
		t.Fatalf("LimitedError must unwrap to rate.ErrRateLimited")
	}

	if err := l.CheckTOTP(ctx, "acct-1"); err != nil {
		t.Fatalf("totp budget is independent: %v", err)
	}
}

func TestSuccessResetsPasswordBudget(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newTestLimiters(t, func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := l.RecordPasswordFailure(ctx, "acct-1"); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	if err := l.ResetPassword(ctx, "acct-1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.RecordPasswordFailure(ctx, "acct-1"); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if err := l.CheckPassword(ctx, "acct-1"); err != nil {
		t.Fatalf("expected budget reset, got %v", err)
	}
}

func TestEmailCodeOnePerWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newTestLimiters(t, func() time.Time { return now })
	ctx := context.Background()

	if err := l.EmailCode(ctx, "acct-1"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := l.EmailCode(ctx, "acct-1"); !errors.Is(err, rate.ErrRateLimited) {
		t.Fatalf("expected rate limit, got %v", err)
	}
}

func TestNilLimitersAllowEverything(t *testing.T) {
	var l *Limiters
	ctx := context.Background()
	if err := l.CheckPassword(ctx, "acct-1"); err != nil {
		t.Fatalf("nil check: %v", err)
	}
	if err := l.Register(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("nil hit: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Exchange.Burst = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for zero burst")
	}
}

func TestExchangeFailuresArePerClient(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newTestLimiters(t, func() time.Time { return now })
	ctx := context.Background()
	stranger := ExchangeKey("app-1", "198.51.100.9")
	client := ExchangeKey("app-1", "203.0.113.7")

	for i := 0; i < 10; i++ {
		if err := l.RecordExchangeFailure(ctx, stranger); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	if err := l.CheckExchange(ctx, stranger); !errors.Is(err, rate.ErrRateLimited) {
		t.Fatalf("expected stranger to cool down, got %v", err)
	}
	if err := l.CheckExchange(ctx, client); err != nil {
		t.Fatalf("other client must be unaffected: %v", err)
	}

	for i := 0; i < 9; i++ {
		if err := l.RecordExchangeFailure(ctx, client); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	if err := l.ResetExchange(ctx, client); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.RecordExchangeFailure(ctx, client); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if err := l.CheckExchange(ctx, client); err != nil {
		t.Fatalf("reset must clear prior failures: %v", err)
	}
}
