package meowauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/meowauth/internal"
)

// EnableTOTP starts enrollment for a signed-in account. Nothing is stored
// until ConfirmTOTP proves the authenticator produces valid codes.
func (e *Engine) EnableTOTP(ctx context.Context, p *Principal) (*TOTPEnrollment, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireFoundation(p); err != nil {
		return nil, err
	}
	acct, err := e.loadAccount(ctx, p.AccountID)
	if err != nil {
		return nil, err
	}
	if acct.TOTPEnabled() {
		return nil, ErrTOTPAlreadyEnabled
	}

	secret, err := e.totp.NewSecret()
	if err != nil {
		return nil, err
	}
	token, exp, err := e.issueStandalone(PurposeTOTPEnroll, acct.ID, e.config.TOTP.EnrollTTL, map[string]string{
		"secret": secret,
	})
	if err != nil {
		return nil, err
	}
	return &TOTPEnrollment{
		Secret:    secret,
		URI:       e.totp.ProvisionURI(secret, acct.Username),
		Token:     token,
		ExpiresAt: exp,
	}, nil
}

// ConfirmTOTP finishes enrollment with a code from the new authenticator.
// It stores the secret, replaces the recovery codes and returns them in
// plain text. They are not retrievable afterwards.
func (e *Engine) ConfirmTOTP(ctx context.Context, p *Principal, enrollmentToken, code string) ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireFoundation(p); err != nil {
		return nil, err
	}
	claims, err := e.parseStandalone(ctx, enrollmentToken, PurposeTOTPEnroll)
	if err != nil {
		return nil, err
	}
	secret := claims.Payload["secret"]
	if claims.Subject != p.AccountID || secret == "" {
		return nil, ErrInvalidToken
	}
	acct, err := e.loadAccount(ctx, p.AccountID)
	if err != nil {
		return nil, err
	}
	if acct.TOTPEnabled() {
		return nil, ErrTOTPAlreadyEnabled
	}

	if err := e.limit(ctx, e.limits.CheckTOTP, acct.ID); err != nil {
		return nil, err
	}
	now := e.now()
	valid, step, err := e.totp.Verify(secret, code, now)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !valid {
		_ = e.limit(ctx, e.limits.RecordTOTPFailure, acct.ID)
		e.metricInc(MetricTOTPFailure)
		return nil, ErrInvalidCredential
	}
	if err := e.spendTOTPStep(ctx, acct.ID, step, now); err != nil {
		return nil, err
	}
	if err := e.consumeStandalone(ctx, claims); err != nil {
		return nil, err
	}

	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	if err := e.accounts.SetMethod(wctx, acct.ID, AuthMethod{
		Type:     MethodTOTP,
		Scheme:   e.config.TOTP.Algorithm,
		Material: secret,
	}); err != nil {
		return nil, storeErr(err)
	}
	codes, err := e.replaceRecoveryCodes(wctx, acct.ID)
	if err != nil {
		return nil, err
	}
	e.emitAudit(ctx, auditTOTPEnabled, auditRecord{AccountID: acct.ID, SessionID: p.SessionID}, nil)
	return codes, nil
}

// DisableTOTP removes the second factor after checking a TOTP or recovery
// code.
func (e *Engine) DisableTOTP(ctx context.Context, p *Principal, code string) error {
	acct, err := e.stepUp(ctx, p, code)
	if err != nil {
		return err
	}
	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	if err := e.accounts.RemoveMethod(wctx, acct.ID, MethodTOTP); err != nil {
		return storeErr(err)
	}
	if err := e.accounts.SetRecoveryCodes(wctx, acct.ID, nil); err != nil {
		return storeErr(err)
	}
	e.emitAudit(ctx, auditTOTPDisabled, auditRecord{AccountID: acct.ID, SessionID: p.SessionID}, nil)
	return nil
}

// RegenerateRecoveryCodes invalidates every unused recovery code and issues
// a fresh set.
func (e *Engine) RegenerateRecoveryCodes(ctx context.Context, p *Principal, code string) ([]string, error) {
	acct, err := e.stepUp(ctx, p, code)
	if err != nil {
		return nil, err
	}
	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	return e.replaceRecoveryCodes(wctx, acct.ID)
}

// stepUp re-checks the second factor of a signed-in account under the TOTP
// budget.
func (e *Engine) stepUp(ctx context.Context, p *Principal, code string) (Account, error) {
	if err := e.ready(); err != nil {
		return Account{}, err
	}
	if err := requireFoundation(p); err != nil {
		return Account{}, err
	}
	acct, err := e.loadAccount(ctx, p.AccountID)
	if err != nil {
		return Account{}, err
	}
	if !acct.TOTPEnabled() {
		return Account{}, ErrTOTPNotEnabled
	}
	if err := e.limit(ctx, e.limits.CheckTOTP, acct.ID); err != nil {
		return Account{}, err
	}
	if _, err := e.verifyTOTP(ctx, acct, code, nil); err != nil {
		if errors.Is(err, ErrInvalidCredential) {
			_ = e.limit(ctx, e.limits.RecordTOTPFailure, acct.ID)
			e.metricInc(MetricTOTPFailure)
		}
		return Account{}, err
	}
	return acct, nil
}

func (e *Engine) replaceRecoveryCodes(ctx context.Context, accountID string) ([]string, error) {
	n := e.config.TOTP.RecoveryCodeCount
	codes := make([]string, 0, n)
	hashes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		code, err := internal.NewRecoveryCode()
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
		hashes = append(hashes, internal.Digest(internal.CanonicalCode(code)))
	}
	if err := e.accounts.SetRecoveryCodes(ctx, accountID, hashes); err != nil {
		return nil, storeErr(err)
	}
	return codes, nil
}
