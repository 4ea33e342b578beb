package meowauth

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/MrEthical07/meowauth/internal"
	"github.com/MrEthical07/meowauth/jwt"
	"github.com/MrEthical07/meowauth/session"
)

var defaultKinds = []session.Kind{session.KindFoundation, session.KindOAuthFull}

// Authorize resolves a bearer credential to a Principal, or rejects it with
// one of the engine sentinels. The first failing check wins, in order:
// decode, session lookup, kind, expiry, version, scopes, account standing,
// device verification, age gate.
//
// A superseded refresh token destroys its session and returns
// ErrReuseDetected.
func (e *Engine) Authorize(ctx context.Context, bearer string, req Requirement) (*Principal, error) {
	start := time.Now()
	p, err := e.authorize(ctx, bearer, req)
	if e.metrics != nil {
		e.metrics.Observe(MetricAuthorizeLatency, time.Since(start))
	}
	if err != nil {
		e.metricInc(MetricAuthorizeFailure)
		e.observeFailure(ctx, auditAuthorizeFailure, auditRecord{}, err)
		return nil, err
	}
	e.metricInc(MetricAuthorizeSuccess)
	e.emitAudit(ctx, auditAuthorizeSuccess, auditRecord{
		AccountID: p.AccountID,
		SessionID: p.SessionID,
		AppID:     p.AppID,
	}, nil)
	return p, nil
}

func (e *Engine) authorize(ctx context.Context, bearer string, req Requirement) (*Principal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return nil, ErrInvalidToken
	}
	if req.Purpose != "" {
		return e.authorizeStandalone(ctx, bearer, req)
	}

	claims, err := e.parseSessionToken(bearer)
	if err != nil {
		return nil, err
	}
	refresh := claims.Type == jwt.TypeRefresh
	if refresh != req.Refresh {
		return nil, ErrInvalidToken
	}

	sess, err := e.lookupSession(ctx, bearer, claims)
	if err != nil {
		return nil, err
	}

	kinds := req.Kinds
	if len(kinds) == 0 {
		kinds = defaultKinds
	}
	if !slices.Contains(kinds, sess.Kind) {
		return nil, ErrInvalidToken
	}

	now := e.now()
	if refresh {
		if !sess.RefreshValid(now) {
			return nil, ErrExpiredToken
		}
	} else if !sess.AccessValid(now) {
		return nil, ErrExpiredToken
	}
	if claims.Version != sess.Version {
		return nil, ErrRevokedToken
	}

	p := principalFor(sess)
	if len(req.Scopes) > 0 && !p.AllScopes && !containsAll(p.Scopes, req.Scopes) {
		return nil, ErrInsufficientScope
	}

	acct, err := e.loadAccount(ctx, sess.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrRevokedToken
		}
		return nil, err
	}
	if err := e.checkStanding(acct); err != nil {
		return nil, err
	}
	if sess.Kind == session.KindDeviceLink && !sess.Verified && !req.AllowUnverified {
		return nil, ErrUnverified
	}
	if acct.PendingApproval && !req.AllowUnapproved {
		return nil, blocked(ReasonUnapproved, time.Time{})
	}

	p.Account = acct
	return p, nil
}

// lookupSession loads the record a session token points at. Refresh tokens
// are classified against the digest history; a reused one tears the session
// down inside the store.
func (e *Engine) lookupSession(ctx context.Context, bearer string, claims *jwt.SessionClaims) (*session.Session, error) {
	rctx, cancel := e.readCtx(ctx)
	defer cancel()

	if claims.Type != jwt.TypeRefresh {
		sess, err := e.sessions.Find(rctx, claims.SessionID)
		if err != nil {
			return nil, translate(err)
		}
		return sess, nil
	}

	sess, status, err := e.sessions.FindByRefresh(rctx, claims.SessionID, internal.Digest(bearer), claims.Version)
	if err != nil {
		return nil, translate(err)
	}
	switch status {
	case session.RefreshCurrent:
		return sess, nil
	case session.RefreshReused:
		e.metricInc(MetricRefreshReuseDetected)
		e.emitAudit(ctx, auditRefreshReuse, auditRecord{SessionID: claims.SessionID}, ErrReuseDetected)
		return nil, ErrReuseDetected
	default:
		return nil, ErrRevokedToken
	}
}

func (e *Engine) authorizeStandalone(ctx context.Context, bearer string, req Requirement) (*Principal, error) {
	claims, err := e.parseStandalone(ctx, bearer, req.Purpose)
	if err != nil {
		return nil, err
	}
	acct, err := e.loadAccount(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrRevokedToken
		}
		return nil, err
	}
	if err := e.checkStanding(acct); err != nil {
		return nil, err
	}
	if acct.PendingApproval && !req.AllowUnapproved {
		return nil, blocked(ReasonUnapproved, time.Time{})
	}
	if req.Consume {
		if err := e.consumeStandalone(ctx, claims); err != nil {
			return nil, err
		}
	}
	return &Principal{
		AccountID: acct.ID,
		Claims:    claims,
		Account:   acct,
	}, nil
}

func principalFor(sess *session.Session) *Principal {
	return &Principal{
		AccountID: sess.AccountID,
		SessionID: sess.ID,
		Kind:      sess.Kind,
		AppID:     sess.AppID,
		Scopes:    append([]string(nil), sess.Scopes...),
		AllScopes: sess.Kind == session.KindFoundation,
		Version:   sess.Version,
	}
}

// requireFoundation rejects principals that are not first-party sessions.
func requireFoundation(p *Principal) error {
	if p == nil || p.SessionID == "" || p.Kind != session.KindFoundation {
		return ErrInvalidToken
	}
	return nil
}
