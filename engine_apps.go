package meowauth

import (
	"context"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/meowauth/internal"
)

const (
	maxAppName        = 20
	maxAppDescription = 200
	maxRedirects      = 16
	maxRedirectLength = 2048
	redirectAny       = "*"
)

func infoForApp(app App) AppInfo {
	return AppInfo{
		ID:          app.ID,
		OwnerID:     app.OwnerID,
		Name:        app.Name,
		Description: app.Description,
		FirstParty:  app.FirstParty,
	}
}

// public strips the secret digest from an app handed to callers.
func public(app App) App {
	app.SecretHash = ""
	return app
}

func (e *Engine) loadApp(ctx context.Context, id string) (App, error) {
	if e.apps == nil {
		return App{}, ErrEngineNotReady
	}
	rctx, cancel := e.readCtx(ctx)
	defer cancel()
	app, err := e.apps.GetApp(rctx, id)
	if err != nil {
		return App{}, storeErr(err)
	}
	return app, nil
}

// ownedApp loads appID and checks that the principal owns it.
func (e *Engine) ownedApp(ctx context.Context, p *Principal, appID string) (App, error) {
	if err := e.ready(); err != nil {
		return App{}, err
	}
	if err := requireFoundation(p); err != nil {
		return App{}, err
	}
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return App{}, ErrMalformedInput
	}
	app, err := e.loadApp(ctx, appID)
	if err != nil {
		return App{}, err
	}
	if app.OwnerID != p.AccountID {
		return App{}, ErrNotOwner
	}
	return app, nil
}

func (e *Engine) saveApp(ctx context.Context, app App) error {
	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	return storeErr(e.apps.UpdateApp(wctx, app))
}

func validAppName(name string) bool {
	n := utf8.RuneCountInString(name)
	return n >= 1 && n <= maxAppName
}

func validAppDescription(desc string) bool {
	return utf8.RuneCountInString(desc) < maxAppDescription
}

// validRedirect accepts "*" or an absolute URL with a host.
func validRedirect(redirect string) bool {
	if redirect == redirectAny {
		return true
	}
	if redirect == "" || len(redirect) > maxRedirectLength {
		return false
	}
	u, err := url.Parse(redirect)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != "" && u.Fragment == ""
}

func newSecretHash() (string, string, error) {
	secret, err := internal.NewAppSecret()
	if err != nil {
		return "", "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}
	return secret, string(hash), nil
}

// CreateApp registers a third-party app owned by the principal. The plain
// secret is returned only here and from RotateAppSecret.
func (e *Engine) CreateApp(ctx context.Context, p *Principal, req CreateAppRequest) (*CreatedApp, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.apps == nil {
		return nil, ErrEngineNotReady
	}
	if err := requireFoundation(p); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if !validAppName(req.Name) || !validAppDescription(req.Description) || len(req.Redirects) > maxRedirects {
		return nil, ErrMalformedInput
	}
	for _, r := range req.Redirects {
		if !validRedirect(r) {
			return nil, ErrMalformedInput
		}
	}
	if err := e.checkAppLimit(ctx, p.AccountID); err != nil {
		return nil, err
	}

	secret, hash, err := newSecretHash()
	if err != nil {
		return nil, err
	}
	redirects := slices.Compact(slices.Sorted(slices.Values(req.Redirects)))
	app := App{
		ID:               internal.NewID(),
		OwnerID:          p.AccountID,
		Name:             req.Name,
		Description:      req.Description,
		SecretHash:       hash,
		AllowedRedirects: redirects,
		CreatedAt:        e.now(),
	}
	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	if err := e.apps.CreateApp(wctx, app); err != nil {
		return nil, storeErr(err)
	}
	e.metricInc(MetricAppCreated)
	e.emitAudit(ctx, auditAppCreated, auditRecord{AccountID: p.AccountID, AppID: app.ID}, nil)
	return &CreatedApp{App: public(app), Secret: secret}, nil
}

func (e *Engine) checkAppLimit(ctx context.Context, ownerID string) error {
	rctx, cancel := e.readCtx(ctx)
	defer cancel()
	n, err := e.apps.CountAppsByOwner(rctx, ownerID)
	if err != nil {
		return storeErr(err)
	}
	if n >= e.config.OAuth.MaxAppsPerOwner {
		return ErrAppLimitReached
	}
	return nil
}

// GetApp returns the owner's view of an app.
func (e *Engine) GetApp(ctx context.Context, p *Principal, appID string) (*App, error) {
	app, err := e.ownedApp(ctx, p, appID)
	if err != nil {
		return nil, err
	}
	app = public(app)
	return &app, nil
}

// AppInfo returns the display data of any app, for consent screens.
func (e *Engine) AppInfo(ctx context.Context, appID string) (*AppInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	app, err := e.loadApp(ctx, strings.TrimSpace(appID))
	if err != nil {
		return nil, err
	}
	info := infoForApp(app)
	return &info, nil
}

// ListApps returns the apps owned by the principal.
func (e *Engine) ListApps(ctx context.Context, p *Principal) ([]App, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.apps == nil {
		return nil, ErrEngineNotReady
	}
	if err := requireFoundation(p); err != nil {
		return nil, err
	}
	rctx, cancel := e.readCtx(ctx)
	defer cancel()
	apps, err := e.apps.ListAppsByOwner(rctx, p.AccountID)
	if err != nil {
		return nil, storeErr(err)
	}
	for i := range apps {
		apps[i] = public(apps[i])
	}
	return apps, nil
}

// UpdateApp changes the name, description or scope narrowing of an app.
// Narrowing does not touch sessions already issued.
func (e *Engine) UpdateApp(ctx context.Context, p *Principal, appID string, req UpdateAppRequest) (*App, error) {
	app, err := e.ownedApp(ctx, p, appID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if !validAppName(name) {
			return nil, ErrMalformedInput
		}
		app.Name = name
	}
	if req.Description != nil {
		if !validAppDescription(*req.Description) {
			return nil, ErrMalformedInput
		}
		app.Description = *req.Description
	}
	if req.AllowedScopes != nil {
		universe := scopeUniverse(App{FirstParty: app.FirstParty}, e.config.OAuth)
		if !containsAll(universe, req.AllowedScopes) {
			return nil, ErrMalformedInput
		}
		app.AllowedScopes = unionScopes(nil, req.AllowedScopes)
	}
	if err := e.saveApp(ctx, app); err != nil {
		return nil, err
	}
	app = public(app)
	return &app, nil
}

// DeleteApp removes an app together with every session and grant it holds.
func (e *Engine) DeleteApp(ctx context.Context, p *Principal, appID string) error {
	app, err := e.ownedApp(ctx, p, appID)
	if err != nil {
		return err
	}
	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	n, err := e.sessions.DeleteByApp(wctx, app.ID)
	if err != nil {
		return translate(err)
	}
	if err := e.accounts.DeleteAppGrants(wctx, app.ID); err != nil {
		return storeErr(err)
	}
	if err := e.apps.DeleteApp(wctx, app.ID); err != nil {
		return storeErr(err)
	}
	if e.metrics != nil {
		e.metrics.Add(MetricSessionInvalidated, uint64(n))
	}
	e.metricInc(MetricAppDeleted)
	e.emitAudit(ctx, auditAppDeleted, auditRecord{
		AccountID: p.AccountID,
		AppID:     app.ID,
		Metadata:  map[string]string{"sessions": strconv.Itoa(n)},
	}, nil)
	return nil
}

// RotateAppSecret replaces the app secret. Issued sessions stay valid; only
// future exchanges need the new secret.
func (e *Engine) RotateAppSecret(ctx context.Context, p *Principal, appID string) (*CreatedApp, error) {
	app, err := e.ownedApp(ctx, p, appID)
	if err != nil {
		return nil, err
	}
	secret, hash, err := newSecretHash()
	if err != nil {
		return nil, err
	}
	app.SecretHash = hash
	if err := e.saveApp(ctx, app); err != nil {
		return nil, err
	}
	e.emitAudit(ctx, auditAppSecretRotated, auditRecord{AccountID: p.AccountID, AppID: app.ID}, nil)
	return &CreatedApp{App: public(app), Secret: secret}, nil
}

// AddRedirect registers an allowed redirect. Adding an existing one is a
// no-op.
func (e *Engine) AddRedirect(ctx context.Context, p *Principal, appID, redirect string) error {
	redirect = strings.TrimSpace(redirect)
	if !validRedirect(redirect) {
		return ErrMalformedInput
	}
	app, err := e.ownedApp(ctx, p, appID)
	if err != nil {
		return err
	}
	if slices.Contains(app.AllowedRedirects, redirect) {
		return nil
	}
	if len(app.AllowedRedirects) >= maxRedirects {
		return ErrMalformedInput
	}
	app.AllowedRedirects = append(app.AllowedRedirects, redirect)
	slices.Sort(app.AllowedRedirects)
	return e.saveApp(ctx, app)
}

// RemoveRedirect unregisters a redirect. Removing an unknown one is a no-op.
func (e *Engine) RemoveRedirect(ctx context.Context, p *Principal, appID, redirect string) error {
	app, err := e.ownedApp(ctx, p, appID)
	if err != nil {
		return err
	}
	redirect = strings.TrimSpace(redirect)
	if !slices.Contains(app.AllowedRedirects, redirect) {
		return nil
	}
	app.AllowedRedirects = slices.DeleteFunc(app.AllowedRedirects, func(r string) bool { return r == redirect })
	return e.saveApp(ctx, app)
}

// BanFromApp bars accountID from the app and ends the sessions the app
// holds for it. It returns the number of sessions removed.
func (e *Engine) BanFromApp(ctx context.Context, p *Principal, appID, accountID string) (int, error) {
	app, err := e.ownedApp(ctx, p, appID)
	if err != nil {
		return 0, err
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" || accountID == app.OwnerID {
		return 0, ErrMalformedInput
	}
	if !app.BannedAccount(accountID) {
		app.Bans = append(app.Bans, accountID)
		if err := e.saveApp(ctx, app); err != nil {
			return 0, err
		}
	}
	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	n, err := e.sessions.DeleteByAccountApp(wctx, accountID, app.ID)
	if err != nil {
		return n, translate(err)
	}
	if e.metrics != nil {
		e.metrics.Add(MetricSessionInvalidated, uint64(n))
	}
	e.emitAudit(ctx, auditAppBan, auditRecord{
		AccountID: p.AccountID,
		AppID:     app.ID,
		Metadata:  map[string]string{"banned_account_id": accountID, "sessions": strconv.Itoa(n)},
	}, nil)
	return n, nil
}

// UnbanFromApp lifts a ban. The account has to authorize the app again.
func (e *Engine) UnbanFromApp(ctx context.Context, p *Principal, appID, accountID string) error {
	app, err := e.ownedApp(ctx, p, appID)
	if err != nil {
		return err
	}
	accountID = strings.TrimSpace(accountID)
	if !app.BannedAccount(accountID) {
		return nil
	}
	app.Bans = slices.DeleteFunc(app.Bans, func(id string) bool { return id == accountID })
	return e.saveApp(ctx, app)
}

// TransferApp hands ownership to another account, subject to that
// account's app limit.
func (e *Engine) TransferApp(ctx context.Context, p *Principal, appID, newOwnerID string) error {
	app, err := e.ownedApp(ctx, p, appID)
	if err != nil {
		return err
	}
	newOwnerID = strings.TrimSpace(newOwnerID)
	if newOwnerID == "" || newOwnerID == app.OwnerID {
		return ErrMalformedInput
	}
	owner, err := e.loadAccount(ctx, newOwnerID)
	if err != nil {
		return err
	}
	if err := e.checkStanding(owner); err != nil {
		return err
	}
	if err := e.checkAppLimit(ctx, owner.ID); err != nil {
		return err
	}
	app.OwnerID = owner.ID
	app.Bans = slices.DeleteFunc(app.Bans, func(id string) bool { return id == owner.ID })
	if err := e.saveApp(ctx, app); err != nil {
		return err
	}
	e.emitAudit(ctx, auditAppTransferred, auditRecord{
		AccountID: p.AccountID,
		AppID:     app.ID,
		Metadata:  map[string]string{"new_owner_id": owner.ID},
	}, nil)
	return nil
}

// DestroyAppSessions ends every session of the app without touching grants.
func (e *Engine) DestroyAppSessions(ctx context.Context, p *Principal, appID string) (int, error) {
	app, err := e.ownedApp(ctx, p, appID)
	if err != nil {
		return 0, err
	}
	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	n, err := e.sessions.DeleteByApp(wctx, app.ID)
	if err != nil {
		return n, translate(err)
	}
	if e.metrics != nil {
		e.metrics.Add(MetricSessionInvalidated, uint64(n))
	}
	return n, nil
}
