package meowauth

import (
	"context"
	"sort"
	"strconv"

	"github.com/MrEthical07/meowauth/session"
)

func infoFor(sess *session.Session, currentID string) SessionInfo {
	return SessionInfo{
		ID:               sess.ID,
		Kind:             sess.Kind,
		AppID:            sess.AppID,
		Scopes:           append([]string(nil), sess.Scopes...),
		CreatedAt:        sess.CreatedAt,
		AccessExpiresAt:  sess.AccessExpiresAt,
		RefreshExpiresAt: sess.RefreshExpiresAt,
		Current:          sess.ID == currentID,
	}
}

// CurrentSession describes the session behind p.
func (e *Engine) CurrentSession(ctx context.Context, p *Principal) (*SessionInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if p == nil || p.SessionID == "" {
		return nil, ErrInvalidToken
	}
	rctx, cancel := e.readCtx(ctx)
	defer cancel()
	sess, err := e.sessions.Find(rctx, p.SessionID)
	if err != nil {
		return nil, translate(err)
	}
	info := infoFor(sess, p.SessionID)
	return &info, nil
}

// ListSessions returns the live sessions of accountID, newest first.
func (e *Engine) ListSessions(ctx context.Context, accountID string) ([]SessionInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	rctx, cancel := e.readCtx(ctx)
	defer cancel()
	list, err := e.sessions.ListByAccount(rctx, accountID)
	if err != nil {
		return nil, translate(err)
	}
	out := make([]SessionInfo, 0, len(list))
	for _, sess := range list {
		out = append(out, infoFor(sess, ""))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Logout deletes the session behind p. Logging out twice is not an error.
func (e *Engine) Logout(ctx context.Context, p *Principal) error {
	if err := e.ready(); err != nil {
		return err
	}
	if p == nil || p.SessionID == "" {
		return ErrInvalidToken
	}
	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	if err := e.sessions.Delete(wctx, p.SessionID); err != nil {
		return translate(err)
	}
	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditLogout, auditRecord{AccountID: p.AccountID, SessionID: p.SessionID, AppID: p.AppID}, nil)
	return nil
}

// LogoutAll deletes every session of accountID and returns how many were
// removed.
func (e *Engine) LogoutAll(ctx context.Context, accountID string) (int, error) {
	n, err := e.DeleteAccountSessions(ctx, accountID)
	if err != nil {
		return 0, err
	}
	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditLogoutAll, auditRecord{AccountID: accountID, Metadata: map[string]string{"count": strconv.Itoa(n)}}, nil)
	return n, nil
}

// DeleteAccountSessions is the hook for account deletion. It removes every
// session of the account, of every kind.
func (e *Engine) DeleteAccountSessions(ctx context.Context, accountID string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if accountID == "" {
		return 0, ErrMalformedInput
	}
	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	n, err := e.sessions.DeleteByAccount(wctx, accountID)
	if err != nil {
		return n, translate(err)
	}
	if e.metrics != nil {
		e.metrics.Add(MetricSessionInvalidated, uint64(n))
	}
	return n, nil
}
