package meowauth

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/meowauth/session"
)

// LoginPassword verifies username and password. Accounts with TOTP enabled
// receive a pending token for CompleteTOTP instead of a session.
//
// Failed attempts count against the account's password budget; a login
// during cooldown is rejected before any hash is computed.
func (e *Engine) LoginPassword(ctx context.Context, username, pw string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	if !ValidUsername(username) || pw == "" {
		return nil, ErrMalformedInput
	}

	acct, err := e.loadAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricLoginFailure)
			return nil, ErrInvalidCredential
		}
		return nil, err
	}
	rec := auditRecord{AccountID: acct.ID, Metadata: map[string]string{"method": string(MethodPassword)}}

	if err := e.limit(ctx, e.limits.CheckPassword, acct.ID); err != nil {
		e.observeFailure(ctx, auditLoginFailure, rec, err)
		return nil, err
	}
	if err := e.verifyPassword(ctx, acct, pw); err != nil {
		if errors.Is(err, ErrInvalidCredential) {
			if lerr := e.limit(ctx, e.limits.RecordPasswordFailure, acct.ID); lerr != nil {
				e.logger.WarnContext(ctx, "recording password failure", "account_id", acct.ID, "error", lerr)
			}
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditLoginFailure, rec, err)
		return nil, err
	}
	if err := e.checkStanding(acct); err != nil {
		e.emitAudit(ctx, auditLoginFailure, rec, err)
		return nil, err
	}
	_ = e.limit(ctx, e.limits.ResetPassword, acct.ID)

	if acct.TOTPEnabled() {
		token, _, err := e.issueStandalone(PurposeTOTPPending, acct.ID, e.config.TOTP.PendingTTL, nil)
		if err != nil {
			return nil, err
		}
		e.metricInc(MetricTOTPRequired)
		e.emitAudit(ctx, auditTOTPRequired, rec, nil)
		return &LoginResult{TOTPRequired: true, PendingToken: token}, nil
	}

	return e.finishLogin(ctx, acct, rec)
}

// CompleteTOTP finishes a login started by LoginPassword. The pending token
// is spent only when the code is valid, so a typo can be retried until the
// TOTP budget runs out. A recovery code is spent only by the caller that
// also spent the pending token.
func (e *Engine) CompleteTOTP(ctx context.Context, pendingToken, code string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	p, err := e.authorizeStandalone(ctx, pendingToken, Requirement{Purpose: PurposeTOTPPending, AllowUnapproved: true})
	if err != nil {
		return nil, err
	}
	acct := p.Account
	rec := auditRecord{AccountID: acct.ID, Metadata: map[string]string{"method": string(MethodTOTP)}}

	if err := e.limit(ctx, e.limits.CheckTOTP, acct.ID); err != nil {
		e.observeFailure(ctx, auditLoginFailure, rec, err)
		return nil, err
	}
	claim := &pendingClaim{engine: e, claims: p.Claims}
	res, err := e.verifyTOTP(ctx, acct, code, claim)
	if err != nil {
		if errors.Is(err, ErrInvalidCredential) {
			if lerr := e.limit(ctx, e.limits.RecordTOTPFailure, acct.ID); lerr != nil {
				e.logger.WarnContext(ctx, "recording totp failure", "account_id", acct.ID, "error", lerr)
			}
		}
		e.metricInc(MetricTOTPFailure)
		e.emitAudit(ctx, auditLoginFailure, rec, err)
		return nil, err
	}
	if err := claim.take(ctx); err != nil {
		return nil, err
	}
	_ = e.limit(ctx, e.limits.ResetTOTP, acct.ID)
	if res.ConsumedRecoveryCode {
		rec.Metadata["method"] = "recovery_code"
	}
	return e.finishLogin(ctx, acct, rec)
}

// RequestEmailLogin sends a one-time login code to the account's email.
// Unknown usernames and accounts without an email succeed silently.
func (e *Engine) RequestEmailLogin(ctx context.Context, username string) error {
	if err := e.ready(); err != nil {
		return err
	}
	username = strings.TrimSpace(username)
	if !ValidUsername(username) {
		return ErrMalformedInput
	}
	acct, err := e.loadAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		return err
	}
	if acct.Email() == "" || e.checkStanding(acct) != nil {
		return nil
	}

	rec := auditRecord{AccountID: acct.ID}
	if err := e.limit(ctx, e.limits.EmailCode, acct.ID); err != nil {
		e.observeFailure(ctx, auditEmailCodeSent, rec, err)
		return err
	}

	_, _, code, err := e.createWithCode(ctx, e.config.Flows.EmailCodeLength, session.CreateParams{
		Kind:      session.KindEmailCode,
		AccountID: acct.ID,
		Action:    emailCodeActionLogin,
	})
	if err != nil {
		return err
	}

	if e.notify(ctx, acct, PurposeLoginCode, map[string]string{"code": code}) {
		e.metricInc(MetricEmailCodeSent)
		e.emitAudit(ctx, auditEmailCodeSent, rec, nil)
	}
	return nil
}

// LoginWithEmailCode exchanges a code from RequestEmailLogin for a
// foundation session. The code works once.
func (e *Engine) LoginWithEmailCode(ctx context.Context, username, code string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	if !ValidUsername(username) {
		return nil, ErrMalformedInput
	}
	acct, err := e.loadAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}
	rec := auditRecord{AccountID: acct.ID, Metadata: map[string]string{"method": string(MethodEmail)}}

	if err := e.limit(ctx, e.limits.CheckPassword, acct.ID); err != nil {
		e.observeFailure(ctx, auditLoginFailure, rec, err)
		return nil, err
	}
	if err := e.verifyEmailCode(ctx, acct, code); err != nil {
		if errors.Is(err, ErrInvalidCredential) {
			_ = e.limit(ctx, e.limits.RecordPasswordFailure, acct.ID)
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditLoginFailure, rec, err)
		return nil, err
	}
	if err := e.checkStanding(acct); err != nil {
		return nil, err
	}
	return e.finishLogin(ctx, acct, rec)
}

func (e *Engine) finishLogin(ctx context.Context, acct Account, rec auditRecord) (*LoginResult, error) {
	pair, err := e.issuePair(ctx, session.KindFoundation, acct.ID, "", nil)
	if err != nil {
		return nil, err
	}
	rec.SessionID = pair.SessionID
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditLoginSuccess, rec, nil)
	return &LoginResult{Tokens: pair}, nil
}
