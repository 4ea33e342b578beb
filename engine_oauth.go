package meowauth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/meowauth/internal/limiters"
	"github.com/MrEthical07/meowauth/jwt"
	"github.com/MrEthical07/meowauth/session"
)

// PrepareAuthorization previews a third-party authorization request for the
// consent screen. When the request could be approved the preview carries a
// short-lived ticket for ApproveAuthorization.
func (e *Engine) PrepareAuthorization(ctx context.Context, p *Principal, appID string, requested []string, redirect string) (*AuthorizationPreview, error) {
	app, err := e.authorizationTarget(ctx, p, appID, requested)
	if err != nil {
		return nil, err
	}
	scopes := ResolveScopes(requested, app, e.config.OAuth)
	preview := &AuthorizationPreview{
		App:             infoForApp(app),
		Scopes:          scopes,
		Banned:          app.BannedAccount(p.AccountID),
		RedirectAllowed: app.RedirectAllowed(redirect),
	}

	grant, ok, err := e.getGrant(ctx, p.AccountID, app.ID)
	if err != nil {
		return nil, err
	}
	preview.Authorized = ok && sameScopes(grant.Scopes, scopes)

	if preview.Banned || !preview.RedirectAllowed || len(scopes) == 0 {
		return preview, nil
	}
	sess, ticket, err := e.createBound(ctx, session.CreateParams{
		Kind:      session.KindOAuthAuthorize,
		AccountID: p.AccountID,
		AppID:     app.ID,
		Scopes:    scopes,
		Redirect:  redirect,
	})
	if err != nil {
		return nil, err
	}
	preview.Ticket = ticket
	preview.ExpiresAt = sess.AccessExpiresAt
	return preview, nil
}

// ApproveAuthorization redeems a ticket from PrepareAuthorization with the
// scopes and redirect fixed at preview time.
func (e *Engine) ApproveAuthorization(ctx context.Context, p *Principal, ticket string) (*AuthorizationCode, error) {
	if err := requireFoundation(p); err != nil {
		return nil, err
	}
	tp, err := e.authorize(ctx, ticket, Requirement{
		Kinds:           []session.Kind{session.KindOAuthAuthorize},
		AllowUnapproved: true,
	})
	if err != nil {
		return nil, err
	}
	if tp.AccountID != p.AccountID {
		return nil, ErrInvalidToken
	}

	rctx, cancel := e.readCtx(ctx)
	sess, err := e.sessions.Find(rctx, tp.SessionID)
	cancel()
	if err != nil {
		return nil, translate(err)
	}
	wctx, cancel := e.writeCtx(ctx)
	removed, err := e.sessions.Consume(wctx, sess.ID)
	cancel()
	if err != nil {
		return nil, translate(err)
	}
	if !removed {
		return nil, ErrRevokedToken
	}
	return e.AuthorizeApp(ctx, p, AuthorizeRequest{
		AppID:    sess.AppID,
		Scopes:   sess.Scopes,
		Redirect: sess.Redirect,
	})
}

// AuthorizeApp records the account's consent for an app and returns an
// authorization code. The code is an access token to a short oauth-exchange
// session that the app redeems with Exchange.
//
// Consent only grows: the stored grant becomes the union of the previous
// grant and the resolved scopes.
func (e *Engine) AuthorizeApp(ctx context.Context, p *Principal, req AuthorizeRequest) (*AuthorizationCode, error) {
	app, err := e.authorizationTarget(ctx, p, req.AppID, req.Scopes)
	if err != nil {
		return nil, err
	}
	rec := auditRecord{AccountID: p.AccountID, SessionID: p.SessionID, AppID: app.ID}
	if app.BannedAccount(p.AccountID) {
		err := blocked(ReasonBanned, time.Time{})
		e.emitAudit(ctx, auditOAuthAuthorized, rec, err)
		return nil, err
	}
	if !app.RedirectAllowed(req.Redirect) {
		e.emitAudit(ctx, auditOAuthAuthorized, rec, ErrRedirectNotAllowed)
		return nil, ErrRedirectNotAllowed
	}
	scopes := ResolveScopes(req.Scopes, app, e.config.OAuth)
	if len(scopes) == 0 {
		return nil, ErrMalformedInput
	}

	grant, ok, err := e.getGrant(ctx, p.AccountID, app.ID)
	if err != nil {
		return nil, err
	}
	if !ok || !containsAll(grant.Scopes, scopes) {
		wctx, cancel := e.writeCtx(ctx)
		err := e.accounts.PutGrant(wctx, Grant{
			AccountID: p.AccountID,
			AppID:     app.ID,
			Scopes:    unionScopes(grant.Scopes, scopes),
			UpdatedAt: e.now(),
		})
		cancel()
		if err != nil {
			return nil, storeErr(err)
		}
	}

	sess, code, err := e.createBound(ctx, session.CreateParams{
		Kind:      session.KindOAuthExchange,
		AccountID: p.AccountID,
		AppID:     app.ID,
		Scopes:    scopes,
		Redirect:  req.Redirect,
	})
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricOAuthAuthorized)
	rec.Metadata = map[string]string{"scopes": strings.Join(scopes, " ")}
	e.emitAudit(ctx, auditOAuthAuthorized, rec, nil)
	return &AuthorizationCode{
		Code:      code,
		Redirect:  req.Redirect,
		Scopes:    scopes,
		ExpiresAt: sess.AccessExpiresAt,
	}, nil
}

// Exchange redeems an authorization code for an oauth-full pair. The app
// authenticates with its secret; the code works once.
func (e *Engine) Exchange(ctx context.Context, req ExchangeRequest) (*TokenPair, error) {
	pair, err := e.exchange(ctx, req)
	if err != nil {
		e.metricInc(MetricOAuthExchangeFailure)
		e.observeFailure(ctx, auditOAuthExchanged, auditRecord{AppID: req.AppID}, err)
		return nil, err
	}
	e.metricInc(MetricOAuthExchanged)
	return pair, nil
}

func (e *Engine) exchange(ctx context.Context, req ExchangeRequest) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.apps == nil {
		return nil, ErrEngineNotReady
	}
	req.AppID = strings.TrimSpace(req.AppID)
	req.Code = strings.TrimSpace(req.Code)
	if req.AppID == "" || req.Code == "" || req.Secret == "" {
		return nil, ErrMalformedInput
	}
	key := limiters.ExchangeKey(req.AppID, clientIPFromContext(ctx))
	if err := e.limit(ctx, e.limits.CheckExchange, key); err != nil {
		return nil, err
	}
	pair, err := e.redeemCode(ctx, req)
	if err != nil {
		if !errors.Is(err, ErrStorageUnavailable) {
			if lerr := e.limit(ctx, e.limits.RecordExchangeFailure, key); lerr != nil {
				e.logger.WarnContext(ctx, "recording exchange failure", "app_id", req.AppID, "error", lerr)
			}
		}
		return nil, err
	}
	_ = e.limit(ctx, e.limits.ResetExchange, key)
	return pair, nil
}

// redeemCode authenticates the app and spends the code's exchange session.
func (e *Engine) redeemCode(ctx context.Context, req ExchangeRequest) (*TokenPair, error) {
	claims, err := e.parseSessionToken(req.Code)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	if claims.Type != jwt.TypeAccess {
		return nil, ErrInvalidCredential
	}
	rctx, cancel := e.readCtx(ctx)
	sess, err := e.sessions.Find(rctx, claims.SessionID)
	cancel()
	if err != nil {
		return nil, translate(err)
	}
	if sess.Kind != session.KindOAuthExchange || sess.AppID != req.AppID || sess.Version != claims.Version {
		return nil, ErrInvalidCredential
	}
	if !sess.AccessValid(e.now()) {
		return nil, ErrExpiredToken
	}

	app, err := e.loadApp(ctx, req.AppID)
	if err != nil {
		if errors.Is(err, ErrAppNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(app.SecretHash), []byte(req.Secret)) != nil {
		return nil, ErrInvalidCredential
	}
	if app.BannedAccount(sess.AccountID) {
		return nil, blocked(ReasonBanned, time.Time{})
	}
	grant, ok, err := e.getGrant(ctx, sess.AccountID, app.ID)
	if err != nil {
		return nil, err
	}
	if !ok || !containsAll(grant.Scopes, sess.Scopes) {
		return nil, ErrInvalidCredential
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

	wctx, cancel := e.writeCtx(ctx)
	removed, err := e.sessions.Consume(wctx, sess.ID)
	cancel()
	if err != nil {
		return nil, translate(err)
	}
	if !removed {
		return nil, ErrRevokedToken
	}

	pair, err := e.issuePair(ctx, session.KindOAuthFull, acct.ID, app.ID, sess.Scopes)
	if err != nil {
		return nil, err
	}
	e.emitAudit(ctx, auditOAuthExchanged, auditRecord{AccountID: acct.ID, SessionID: pair.SessionID, AppID: app.ID}, nil)
	return pair, nil
}

// RevokeAppAuthorization withdraws the account's consent for appID and ends
// every session the app holds for it. It returns the number of sessions
// removed.
func (e *Engine) RevokeAppAuthorization(ctx context.Context, p *Principal, appID string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := requireFoundation(p); err != nil {
		return 0, err
	}
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return 0, ErrMalformedInput
	}
	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	if _, err := e.accounts.DeleteGrant(wctx, p.AccountID, appID); err != nil {
		return 0, storeErr(err)
	}
	n, err := e.sessions.DeleteByAccountApp(wctx, p.AccountID, appID)
	if err != nil {
		return n, translate(err)
	}
	if e.metrics != nil {
		e.metrics.Add(MetricSessionInvalidated, uint64(n))
	}
	e.emitAudit(ctx, auditOAuthRevoked, auditRecord{
		AccountID: p.AccountID,
		AppID:     appID,
		Metadata:  map[string]string{"sessions": strconv.Itoa(n)},
	}, nil)
	return n, nil
}

// ListAuthorizations returns the apps the account has granted access to.
func (e *Engine) ListAuthorizations(ctx context.Context, p *Principal) ([]Grant, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireFoundation(p); err != nil {
		return nil, err
	}
	rctx, cancel := e.readCtx(ctx)
	defer cancel()
	grants, err := e.accounts.ListGrants(rctx, p.AccountID)
	if err != nil {
		return nil, storeErr(err)
	}
	return grants, nil
}

// authorizationTarget validates the consent request shape and loads its app.
func (e *Engine) authorizationTarget(ctx context.Context, p *Principal, appID string, requested []string) (App, error) {
	if err := e.ready(); err != nil {
		return App{}, err
	}
	if err := requireFoundation(p); err != nil {
		return App{}, err
	}
	appID = strings.TrimSpace(appID)
	if appID == "" || len(requested) == 0 || len(requested) > e.config.OAuth.MaxScopes {
		return App{}, ErrMalformedInput
	}
	return e.loadApp(ctx, appID)
}

func (e *Engine) getGrant(ctx context.Context, accountID, appID string) (Grant, bool, error) {
	rctx, cancel := e.readCtx(ctx)
	defer cancel()
	grant, ok, err := e.accounts.GetGrant(rctx, accountID, appID)
	if err != nil {
		return Grant{}, false, storeErr(err)
	}
	return grant, ok, nil
}
