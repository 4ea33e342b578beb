package meowauth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/meowauth/internal"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acct := env.register(t, "mittens", "correct-horse", "m@example.com")
	if acct.ID == "" || acct.Email() != "m@example.com" {
		t.Fatalf("unexpected account %+v", acct)
	}
	m, _ := acct.Method(MethodPassword)
	if m.Material == "" || strings.Contains(m.Material, "correct-horse") {
		t.Fatalf("password must be stored hashed")
	}

	_, err := env.engine.Register(ctx, RegisterRequest{Username: "MITTENS", Password: "correct-horse"})
	expectErr(t, err, ErrAccountExists)

	for _, req := range []RegisterRequest{
		{Username: "", Password: "correct-horse"},
		{Username: strings.Repeat("a", 21), Password: "correct-horse"},
		{Username: "bad name", Password: "correct-horse"},
		{Username: "short", Password: "1234567"},
		{Username: "long", Password: strings.Repeat("p", 256)},
	} {
		_, err := env.engine.Register(ctx, req)
		expectErr(t, err, ErrMalformedInput)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricRegisterSuccess] != 1 || snap.Counters[MetricRegisterDuplicate] != 1 {
		t.Fatalf("register counters = %d/%d", snap.Counters[MetricRegisterSuccess], snap.Counters[MetricRegisterDuplicate])
	}
}

func TestRegisterRateLimitedPerClientIP(t *testing.T) {
	env := newTestEnv(t)
	ctx := WithClientIP(context.Background(), "203.0.113.7")

	for i := 0; i < 5; i++ {
		name := "cat" + string(rune('a'+i))
		if _, err := env.engine.Register(ctx, RegisterRequest{Username: name, Password: "correct-horse"}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	_, err := env.engine.Register(ctx, RegisterRequest{Username: "catf", Password: "correct-horse"})
	expectErr(t, err, ErrRateLimited)

	other := WithClientIP(context.Background(), "198.51.100.1")
	if _, err := env.engine.Register(other, RegisterRequest{Username: "catg", Password: "correct-horse"}); err != nil {
		t.Fatalf("other ip: %v", err)
	}
	env.sink.waitFor(t, auditRateLimitTriggered)
}

func TestConfirmEmail(t *testing.T) {
	env := newTestEnv(t)
	acct := env.register(t, "mittens", "correct-horse", "m@example.com")
	ctx := context.Background()

	token := env.notifier.last(t, PurposeEmailConfirm).Data["token"]
	if err := env.engine.ConfirmEmail(ctx, token); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	stored, _ := env.store.GetAccount(ctx, acct.ID)
	if m, _ := stored.Method(MethodEmail); m.Scheme != EmailVerified {
		t.Fatalf("email scheme = %q", m.Scheme)
	}
	expectErr(t, env.engine.ConfirmEmail(ctx, token), ErrRevokedToken)
}

func TestConfirmEmailRejectsChangedAddress(t *testing.T) {
	env := newTestEnv(t)
	acct := env.register(t, "mittens", "correct-horse", "m@example.com")
	token := env.notifier.last(t, PurposeEmailConfirm).Data["token"]

	env.store.mutateAccount(t, acct.ID, func(a *Account) {
		for i := range a.Methods {
			if a.Methods[i].Type == MethodEmail {
				a.Methods[i].Material = "other@example.com"
			}
		}
	})
	expectErr(t, env.engine.ConfirmEmail(context.Background(), token), ErrInvalidToken)
}

func TestPasswordReset(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "mittens", "correct-horse", "m@example.com")
	pair := env.login(t, "mittens", "correct-horse")
	ctx := context.Background()

	if err := env.engine.RequestPasswordReset(ctx, "mittens"); err != nil {
		t.Fatalf("request: %v", err)
	}
	token := env.notifier.last(t, PurposePasswordReset).Data["token"]

	expectErr(t, env.engine.ConfirmPasswordReset(ctx, token, "short"), ErrMalformedInput)
	if err := env.engine.ConfirmPasswordReset(ctx, token, "battery-staple"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	expectErr(t, env.engine.ConfirmPasswordReset(ctx, token, "battery-staple2"), ErrRevokedToken)

	_, err := env.engine.Authorize(ctx, pair.AccessToken, Requirement{})
	expectErr(t, err, ErrRevokedToken)
	_, err = env.engine.LoginPassword(ctx, "mittens", "correct-horse")
	expectErr(t, err, ErrInvalidCredential)
	env.login(t, "mittens", "battery-staple")
}

func TestPasswordResetRequestBudget(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "mittens", "correct-horse", "m@example.com")
	ctx := context.Background()

	if err := env.engine.RequestPasswordReset(ctx, "mittens"); err != nil {
		t.Fatalf("request: %v", err)
	}
	expectErr(t, env.engine.RequestPasswordReset(ctx, "mittens"), ErrRateLimited)
	env.clock.Advance(5*time.Minute + time.Second)
	if err := env.engine.RequestPasswordReset(ctx, "mittens"); err != nil {
		t.Fatalf("request after cooldown: %v", err)
	}
}

func TestPasswordResetTokenExpires(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "mittens", "correct-horse", "m@example.com")
	ctx := context.Background()

	if err := env.engine.RequestPasswordReset(ctx, "mittens"); err != nil {
		t.Fatalf("request: %v", err)
	}
	token := env.notifier.last(t, PurposePasswordReset).Data["token"]
	env.clock.Advance(11 * time.Minute)
	expectErr(t, env.engine.ConfirmPasswordReset(ctx, token, "battery-staple"), ErrExpiredToken)
}

func TestPasswordResetUnknownUserIsSilent(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "noemail", "correct-horse", "")
	ctx := context.Background()

	if err := env.engine.RequestPasswordReset(ctx, "ghost"); err != nil {
		t.Fatalf("unknown user: %v", err)
	}
	if err := env.engine.RequestPasswordReset(ctx, "noemail"); err != nil {
		t.Fatalf("no email: %v", err)
	}
	if len(env.notifier.sent) != 0 {
		t.Fatalf("nothing should be sent, got %d", len(env.notifier.sent))
	}
}

func TestChangePasswordKeepsCurrentSession(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "mittens", "correct-horse", "")
	cur := env.login(t, "mittens", "correct-horse")
	other := env.login(t, "mittens", "correct-horse")
	p := env.principal(t, cur.AccessToken)
	ctx := context.Background()

	expectErr(t, env.engine.ChangePassword(ctx, p, "wrong-horse", "battery-staple"), ErrInvalidCredential)
	if err := env.engine.ChangePassword(ctx, p, "correct-horse", "battery-staple"); err != nil {
		t.Fatalf("change: %v", err)
	}
	env.principal(t, cur.AccessToken)
	_, err := env.engine.Authorize(ctx, other.AccessToken, Requirement{})
	expectErr(t, err, ErrRevokedToken)
	env.login(t, "mittens", "battery-staple")
}

func TestNotifierFailureDoesNotFailRequest(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "mittens", "correct-horse", "m@example.com")
	env.notifier.mu.Lock()
	env.notifier.err = errors.New("smtp down")
	env.notifier.mu.Unlock()

	if err := env.engine.RequestEmailLogin(context.Background(), "mittens"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricEmailCodeSent]; got != 0 {
		t.Fatalf("email_code_sent = %d, want 0", got)
	}
}

func TestLegacyPasswordUpgradedOnLogin(t *testing.T) {
	env := newTestEnv(t)
	acct := env.register(t, "mittens", "correct-horse", "")
	env.store.mutateAccount(t, acct.ID, func(a *Account) {
		for i := range a.Methods {
			if a.Methods[i].Type == MethodPassword {
				a.Methods[i].Scheme = "sha256"
				a.Methods[i].Material = internal.Digest("correct-horse")
			}
		}
	})

	env.login(t, "mittens", "correct-horse")
	stored, _ := env.store.GetAccount(context.Background(), acct.ID)
	if m, _ := stored.Method(MethodPassword); m.Scheme == "sha256" {
		t.Fatalf("legacy password was not upgraded")
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricPasswordUpgraded]; got != 1 {
		t.Fatalf("password_upgraded = %d", got)
	}
	env.login(t, "mittens", "correct-horse")
}
