package meowauth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/meowauth/internal"
	"github.com/MrEthical07/meowauth/internal/stores"
	"github.com/MrEthical07/meowauth/password"
	"github.com/MrEthical07/meowauth/session"
)

const (
	maxCodeInput         = 64
	recoveryCodeLength   = 10
	emailCodeActionLogin = "login"
)

// CredentialResult is the outcome of a second-factor check.
type CredentialResult struct {
	Valid bool
	// ConsumedRecoveryCode is set when a recovery code was spent instead of
	// a TOTP code.
	ConsumedRecoveryCode bool
}

// verifyPassword checks presented against the account's password method and
// upgrades legacy material on success.
func (e *Engine) verifyPassword(ctx context.Context, acct Account, presented string) error {
	if presented == "" || len(presented) > e.config.Password.MaxLength {
		return ErrMalformedInput
	}
	m, ok := acct.Method(MethodPassword)
	if !ok || m.Material == "" {
		return ErrInvalidCredential
	}
	res, err := e.hasher.Verify(password.Scheme(m.Scheme), m.Material, presented)
	if err != nil {
		e.logger.ErrorContext(ctx, "stored password unreadable", "account_id", acct.ID, "scheme", m.Scheme, "error", err)
		return ErrInvalidCredential
	}
	if !res.Valid {
		return ErrInvalidCredential
	}
	if res.NeedsMigration && e.config.Password.UpgradeOnLogin {
		e.upgradePassword(ctx, acct.ID, presented)
	}
	return nil
}

// verifyTOTP accepts a current TOTP code or, failing that, an unused
// recovery code. A TOTP step is accepted once per account.
//
// A non-nil claim is taken before a recovery code is spent and released
// again when the code is unknown.
func (e *Engine) verifyTOTP(ctx context.Context, acct Account, code string, claim *pendingClaim) (CredentialResult, error) {
	m, ok := acct.Method(MethodTOTP)
	if !ok || m.Material == "" {
		return CredentialResult{}, ErrTOTPNotEnabled
	}
	code = strings.TrimSpace(code)
	if code == "" || len(code) > maxCodeInput {
		return CredentialResult{}, ErrMalformedInput
	}

	now := e.now()
	valid, step, err := e.totp.Verify(m.Material, code, now)
	if err != nil {
		e.logger.ErrorContext(ctx, "stored totp secret unreadable", "account_id", acct.ID, "error", err)
		return CredentialResult{}, ErrInvalidCredential
	}
	if valid {
		if err := e.spendTOTPStep(ctx, acct.ID, step, now); err != nil {
			return CredentialResult{}, err
		}
		return CredentialResult{Valid: true}, nil
	}

	canonical := internal.CanonicalCode(code)
	if len(canonical) != recoveryCodeLength {
		return CredentialResult{}, ErrInvalidCredential
	}
	if err := claim.take(ctx); err != nil {
		return CredentialResult{}, err
	}
	wctx, cancel := e.writeCtx(ctx)
	consumed, err := e.accounts.ConsumeRecoveryCode(wctx, acct.ID, internal.Digest(canonical))
	cancel()
	if err != nil {
		claim.release(ctx)
		return CredentialResult{}, storeErr(err)
	}
	if !consumed {
		claim.release(ctx)
		return CredentialResult{}, ErrInvalidCredential
	}
	e.metricInc(MetricRecoveryCodeUsed)
	e.emitAudit(ctx, auditRecoveryCodeUsed, auditRecord{AccountID: acct.ID}, nil)
	return CredentialResult{Valid: true, ConsumedRecoveryCode: true}, nil
}

// spendTOTPStep records that step was used so the same code cannot be
// replayed inside its validity window.
func (e *Engine) spendTOTPStep(ctx context.Context, accountID string, step int64, now time.Time) error {
	window := e.config.TOTP.Period * time.Duration(2*e.config.TOTP.Skew+1)
	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	err := e.consumed.Consume(wctx, "totp:"+accountID+":"+strconv.FormatInt(step, 10), now.Add(window))
	if errors.Is(err, stores.ErrTokenConsumed) {
		return ErrInvalidCredential
	}
	return translate(err)
}

// verifyEmailCode resolves code through the session code index and spends
// the email-code session. Only the caller whose delete removed the record
// succeeds.
func (e *Engine) verifyEmailCode(ctx context.Context, acct Account, code string) error {
	canonical := internal.CanonicalCode(strings.TrimSpace(code))
	if canonical == "" || len(canonical) > maxCodeInput {
		return ErrMalformedInput
	}
	if len(canonical) != e.config.Flows.EmailCodeLength {
		return ErrInvalidCredential
	}

	rctx, cancel := e.readCtx(ctx)
	sess, err := e.sessions.FindByCode(rctx, session.KindEmailCode, internal.Digest(canonical))
	cancel()
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrInvalidCredential
		}
		return translate(err)
	}
	if sess.AccountID != acct.ID || sess.Action != emailCodeActionLogin {
		return ErrInvalidCredential
	}

	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	removed, err := e.sessions.Consume(wctx, sess.ID)
	if err != nil {
		return translate(err)
	}
	if !removed {
		return ErrInvalidCredential
	}
	return nil
}
