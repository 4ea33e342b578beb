package meowauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/meowauth/internal"
	"github.com/MrEthical07/meowauth/jwt"
	"github.com/MrEthical07/meowauth/session"
)

// issuePair creates a rotating session and signs its first access and
// refresh tokens. The sid is allocated up front so the refresh digest can be
// written with the record.
func (e *Engine) issuePair(ctx context.Context, kind session.Kind, accountID, appID string, scopes []string) (*TokenPair, error) {
	sid := internal.NewID()
	refresh, err := e.tokens.CreateSessionToken(sid, jwt.TypeRefresh, 1)
	if err != nil {
		return nil, err
	}

	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	sess, err := e.sessions.Create(wctx, session.CreateParams{
		ID:          sid,
		Kind:        kind,
		AccountID:   accountID,
		AppID:       appID,
		Scopes:      scopes,
		RefreshHash: internal.Digest(refresh),
	})
	if err != nil {
		return nil, translate(err)
	}

	access, err := e.tokens.CreateSessionToken(sid, jwt.TypeAccess, sess.Version)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricSessionCreated)
	return pairFor(sess, access, refresh), nil
}

// createBound creates a non-rotating session and signs its access token.
func (e *Engine) createBound(ctx context.Context, p session.CreateParams) (*session.Session, string, error) {
	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	sess, err := e.sessions.Create(wctx, p)
	if err != nil {
		return nil, "", translate(err)
	}
	token, err := e.tokens.CreateSessionToken(sess.ID, jwt.TypeAccess, sess.Version)
	if err != nil {
		_ = e.sessions.Delete(wctx, sess.ID)
		return nil, "", err
	}
	e.metricInc(MetricSessionCreated)
	return sess, token, nil
}

// codeAttempts bounds how often a colliding one-time code is redrawn.
const codeAttempts = 5

// createWithCode creates a bound session indexed by a fresh code of length
// characters, drawing again while the code belongs to another live session.
func (e *Engine) createWithCode(ctx context.Context, length int, p session.CreateParams) (*session.Session, string, string, error) {
	for range codeAttempts {
		code, err := internal.NewCode(length)
		if err != nil {
			return nil, "", "", err
		}
		p.CodeHash = internal.Digest(code)
		sess, token, err := e.createBound(ctx, p)
		if errors.Is(err, session.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return nil, "", "", err
		}
		return sess, token, code, nil
	}
	return nil, "", "", fmt.Errorf("%w: no free %s code", ErrStorageUnavailable, p.Kind)
}

func pairFor(sess *session.Session, access, refresh string) *TokenPair {
	return &TokenPair{
		SessionID:        sess.ID,
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  sess.AccessExpiresAt,
		RefreshExpiresAt: sess.RefreshExpiresAt,
		Scopes:           append([]string(nil), sess.Scopes...),
	}
}

// parseSessionToken verifies signature and shape only.
func (e *Engine) parseSessionToken(token string) (*jwt.SessionClaims, error) {
	claims, err := e.tokens.ParseSessionToken(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// issueStandalone signs a self-expiring flow token for accountID.
func (e *Engine) issueStandalone(purpose Purpose, accountID string, ttl time.Duration, payload map[string]string) (string, time.Time, error) {
	token, _, exp, err := e.tokens.CreateStandalone(string(purpose), accountID, ttl, payload)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// parseStandalone verifies a flow token and rejects spent ones.
func (e *Engine) parseStandalone(ctx context.Context, token string, purpose Purpose) (*jwt.StandaloneClaims, error) {
	claims, err := e.tokens.ParseStandalone(token, string(purpose))
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	rctx, cancel := e.readCtx(ctx)
	defer cancel()
	spent, err := e.consumed.Consumed(rctx, claims.ID)
	if err != nil {
		return nil, translate(err)
	}
	if spent {
		return nil, ErrRevokedToken
	}
	return claims, nil
}

// consumeStandalone spends the token's jti. Only the first caller succeeds.
func (e *Engine) consumeStandalone(ctx context.Context, claims *jwt.StandaloneClaims) error {
	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	return translate(e.consumed.Consume(wctx, claims.ID, claims.ExpiresAt.Time))
}

// pendingClaim spends a standalone token at most once while a second factor
// is checked. A nil *pendingClaim does nothing.
type pendingClaim struct {
	engine *Engine
	claims *jwt.StandaloneClaims
	taken  bool
}

func (c *pendingClaim) take(ctx context.Context) error {
	if c == nil || c.taken {
		return nil
	}
	if err := c.engine.consumeStandalone(ctx, c.claims); err != nil {
		return err
	}
	c.taken = true
	return nil
}

// release undoes a take whose guarded action did not happen.
func (c *pendingClaim) release(ctx context.Context) {
	if c == nil || !c.taken {
		return
	}
	wctx, cancel := c.engine.writeCtx(ctx)
	defer cancel()
	if err := c.engine.consumed.Release(wctx, c.claims.ID); err != nil {
		c.engine.logger.WarnContext(ctx, "releasing pending token", "error", err)
		return
	}
	c.taken = false
}

// storeErr passes through the collaborator sentinels and folds every other
// store failure into ErrStorageUnavailable.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrAccountExists),
		errors.Is(err, ErrAppNotFound):
		return err
	case errors.Is(err, ErrStorageUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
}
