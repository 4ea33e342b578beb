package meowauth

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/meowauth/internal"
	"github.com/MrEthical07/meowauth/jwt"
	"github.com/MrEthical07/meowauth/session"
)

// Refresh rotates a foundation or oauth-full session. The presented token
// must be the live refresh token at the live version; on success the
// session keeps its id, its version is bumped and both expiries extend.
//
// Presenting a superseded refresh token destroys the session and returns
// ErrReuseDetected. Every token of that session is then ErrRevokedToken.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrInvalidToken
	}
	claims, err := e.parseSessionToken(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}
	if claims.Type != jwt.TypeRefresh {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrInvalidToken
	}
	rec := auditRecord{SessionID: claims.SessionID}

	next, err := e.tokens.CreateSessionToken(claims.SessionID, jwt.TypeRefresh, claims.Version+1)
	if err != nil {
		return nil, err
	}

	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	sess, err := e.sessions.Rotate(wctx, session.RotateParams{
		SID:              claims.SessionID,
		PresentedDigest:  internal.Digest(refreshToken),
		PresentedVersion: claims.Version,
		NextDigest:       internal.Digest(next),
		Now:              e.now(),
	})
	if err != nil {
		err = translate(err)
		if errors.Is(err, ErrReuseDetected) {
			e.metricInc(MetricRefreshReuseDetected)
			e.logger.WarnContext(ctx, "refresh token reuse, session destroyed", "session_id", claims.SessionID)
			e.emitAudit(ctx, auditRefreshReuse, rec, err)
		} else {
			e.metricInc(MetricRefreshFailure)
		}
		return nil, err
	}

	if err := e.refreshStanding(ctx, sess); err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	access, err := e.tokens.CreateSessionToken(sess.ID, jwt.TypeAccess, sess.Version)
	if err != nil {
		return nil, err
	}
	rec.AccountID = sess.AccountID
	rec.AppID = sess.AppID
	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditRefreshSuccess, rec, nil)
	return pairFor(sess, access, next), nil
}

// refreshStanding destroys sessions of accounts that were deleted or banned
// since the session was issued.
func (e *Engine) refreshStanding(ctx context.Context, sess *session.Session) error {
	acct, err := e.loadAccount(ctx, sess.AccountID)
	if err == nil {
		err = e.checkStanding(acct)
	} else if errors.Is(err, ErrAccountNotFound) {
		err = ErrRevokedToken
	}
	if err != nil && !errors.Is(err, ErrStorageUnavailable) {
		wctx, cancel := e.writeCtx(ctx)
		defer cancel()
		_ = e.sessions.Delete(wctx, sess.ID)
	}
	return err
}
