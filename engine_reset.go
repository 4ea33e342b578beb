package meowauth

import (
	"context"
	"errors"
	"strings"
)

// RequestPasswordReset mails a single-use reset token. Unknown usernames and
// accounts without an email succeed silently so existence does not leak.
func (e *Engine) RequestPasswordReset(ctx context.Context, username string) error {
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
	if acct.Email() == "" {
		return nil
	}

	rec := auditRecord{AccountID: acct.ID}
	if err := e.limit(ctx, e.limits.ResetRequest, acct.ID); err != nil {
		e.observeFailure(ctx, auditPasswordReset, rec, err)
		return err
	}

	token, _, err := e.issueStandalone(PurposePasswordReset, acct.ID, e.config.Flows.PasswordResetTTL, nil)
	if err != nil {
		return err
	}
	e.notify(ctx, acct, PurposePasswordReset, map[string]string{"token": token})
	e.metricInc(MetricPasswordResetRequest)
	return nil
}

// ConfirmPasswordReset sets a new password with a token from
// RequestPasswordReset and signs the account out everywhere.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.validPassword(newPassword) {
		return ErrMalformedInput
	}
	p, err := e.authorizeStandalone(ctx, token, Requirement{
		Purpose:         PurposePasswordReset,
		Consume:         true,
		AllowUnapproved: true,
	})
	if err != nil {
		return err
	}
	if err := e.setPassword(ctx, p.AccountID, newPassword); err != nil {
		return err
	}
	if _, err := e.DeleteAccountSessions(ctx, p.AccountID); err != nil {
		return err
	}
	e.metricInc(MetricPasswordResetConfirm)
	e.emitAudit(ctx, auditPasswordReset, auditRecord{AccountID: p.AccountID}, nil)
	return nil
}

// ChangePassword replaces the password of a signed-in account after checking
// the current one. Other sessions are signed out.
func (e *Engine) ChangePassword(ctx context.Context, p *Principal, current, next string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := requireFoundation(p); err != nil {
		return err
	}
	if !e.validPassword(next) {
		return ErrMalformedInput
	}
	if err := e.limit(ctx, e.limits.CheckPassword, p.AccountID); err != nil {
		return err
	}
	acct, err := e.loadAccount(ctx, p.AccountID)
	if err != nil {
		return err
	}
	if err := e.verifyPassword(ctx, acct, current); err != nil {
		if errors.Is(err, ErrInvalidCredential) {
			_ = e.limit(ctx, e.limits.RecordPasswordFailure, acct.ID)
		}
		return err
	}
	if err := e.setPassword(ctx, acct.ID, next); err != nil {
		return err
	}

	rctx, cancel := e.readCtx(ctx)
	list, err := e.sessions.ListByAccount(rctx, acct.ID)
	cancel()
	if err != nil {
		return translate(err)
	}
	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	for _, sess := range list {
		if sess.ID == p.SessionID {
			continue
		}
		if err := e.sessions.Delete(wctx, sess.ID); err != nil {
			return translate(err)
		}
	}
	return nil
}

func (e *Engine) setPassword(ctx context.Context, accountID, pw string) error {
	scheme, material, err := e.hasher.Hash(pw)
	if err != nil {
		return err
	}
	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	return storeErr(e.accounts.UpdatePassword(wctx, accountID, string(scheme), material))
}
