package meowauth

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/meowauth/internal"
	"github.com/MrEthical07/meowauth/session"
)

// BeginDeviceLogin starts a login on a device that cannot type a password.
// The device keeps Token and shows Code; a signed-in session approves the
// code with ApproveDevice, after which CompleteDeviceLogin yields a
// foundation pair.
func (e *Engine) BeginDeviceLogin(ctx context.Context, username string) (*DeviceLogin, error) {
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
	if err := e.checkStanding(acct); err != nil {
		return nil, err
	}
	if err := e.limit(ctx, e.limits.EmailCode, acct.ID); err != nil {
		e.observeFailure(ctx, auditLoginFailure, auditRecord{AccountID: acct.ID}, err)
		return nil, err
	}

	sess, token, code, err := e.createWithCode(ctx, e.config.Flows.DeviceCodeLength, session.CreateParams{
		Kind:      session.KindDeviceLink,
		AccountID: acct.ID,
	})
	if err != nil {
		return nil, err
	}
	return &DeviceLogin{Code: code, Token: token, ExpiresAt: sess.AccessExpiresAt}, nil
}

// ApproveDevice marks the pending device login behind code as verified. The
// code must belong to a pending device login of the same account.
func (e *Engine) ApproveDevice(ctx context.Context, p *Principal, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := requireFoundation(p); err != nil {
		return err
	}
	canonical := internal.CanonicalCode(strings.TrimSpace(code))
	if canonical == "" || len(canonical) > maxCodeInput {
		return ErrMalformedInput
	}
	rec := auditRecord{AccountID: p.AccountID, SessionID: p.SessionID}
	if err := e.limit(ctx, e.limits.CheckPassword, p.AccountID); err != nil {
		e.observeFailure(ctx, auditDeviceApproved, rec, err)
		return err
	}

	rctx, cancel := e.readCtx(ctx)
	sess, err := e.sessions.FindByCode(rctx, session.KindDeviceLink, internal.Digest(canonical))
	cancel()
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			_ = e.limit(ctx, e.limits.RecordPasswordFailure, p.AccountID)
			return ErrInvalidCredential
		}
		return translate(err)
	}
	if sess.AccountID != p.AccountID || sess.Verified {
		_ = e.limit(ctx, e.limits.RecordPasswordFailure, p.AccountID)
		return ErrInvalidCredential
	}

	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	flipped, err := e.sessions.MarkVerified(wctx, sess.ID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrInvalidCredential
		}
		return translate(err)
	}
	if !flipped {
		return ErrInvalidCredential
	}
	rec.Metadata = map[string]string{"device_session_id": sess.ID}
	e.metricInc(MetricDeviceApproved)
	e.emitAudit(ctx, auditDeviceApproved, rec, nil)
	return nil
}

// CompleteDeviceLogin redeems an approved device token for a foundation
// pair. It works once; an unapproved token returns ErrUnverified.
func (e *Engine) CompleteDeviceLogin(ctx context.Context, deviceToken string) (*LoginResult, error) {
	p, err := e.authorize(ctx, deviceToken, Requirement{
		Kinds:           []session.Kind{session.KindDeviceLink},
		AllowUnapproved: true,
	})
	if err != nil {
		return nil, err
	}
	wctx, cancel := e.writeCtx(ctx)
	removed, err := e.sessions.Consume(wctx, p.SessionID)
	cancel()
	if err != nil {
		return nil, translate(err)
	}
	if !removed {
		return nil, ErrRevokedToken
	}
	return e.finishLogin(ctx, p.Account, auditRecord{
		AccountID: p.AccountID,
		Metadata:  map[string]string{"method": "device"},
	})
}
