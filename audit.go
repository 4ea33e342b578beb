package meowauth

import (
	"context"
	"errors"
	"io"

	"github.com/MrEthical07/meowauth/internal/audit"
)

// AuditEvent is one security-relevant outcome delivered to an AuditSink.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards events.
type NoOpSink = audit.NoOpSink

// NewChannelSink buffers events on a channel, mostly for tests.
func NewChannelSink(buffer int) *audit.ChannelSink { return audit.NewChannelSink(buffer) }

// NewJSONWriterSink writes one JSON object per event line to w.
func NewJSONWriterSink(w io.Writer) *audit.JSONWriterSink { return audit.NewJSONWriterSink(w) }

const (
	auditAuthorizeSuccess   = "authorize_success"
	auditAuthorizeFailure   = "authorize_failure"
	auditRegister           = "register"
	auditLoginSuccess       = "login_success"
	auditLoginFailure       = "login_failure"
	auditTOTPRequired       = "totp_required"
	auditEmailCodeSent      = "email_code_sent"
	auditDeviceApproved     = "device_approved"
	auditRefreshSuccess     = "refresh_success"
	auditRefreshReuse       = "refresh_reuse_detected"
	auditLogout             = "logout"
	auditLogoutAll          = "logout_all"
	auditPasswordReset      = "password_reset"
	auditEmailConfirmed     = "email_confirmed"
	auditTOTPEnabled        = "totp_enabled"
	auditTOTPDisabled       = "totp_disabled"
	auditRecoveryCodeUsed   = "recovery_code_used"
	auditOAuthAuthorized    = "oauth_authorized"
	auditOAuthExchanged     = "oauth_exchanged"
	auditOAuthRevoked       = "oauth_revoked"
	auditAppCreated         = "app_created"
	auditAppDeleted         = "app_deleted"
	auditAppSecretRotated   = "app_secret_rotated"
	auditAppBan             = "app_ban"
	auditAppTransferred     = "app_transferred"
	auditRateLimitTriggered = "rate_limit_triggered"
)

// auditRecord is the per-call subject of an event.
type auditRecord struct {
	AccountID string
	SessionID string
	AppID     string
	Metadata  map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, rec auditRecord, err error) {
	if e == nil || e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: e.now().UTC(),
		Type:      eventType,
		AccountID: rec.AccountID,
		SessionID: rec.SessionID,
		AppID:     rec.AppID,
		IP:        clientIPFromContext(ctx),
		Success:   err == nil,
		Metadata:  rec.Metadata,
	}
	if err != nil {
		event.Reason = string(ReasonOf(err))
	}
	e.audit.Emit(ctx, event)
}

// observeFailure audits a failed call. Rate limit hits get
// their own event so they can be alerted on.
func (e *Engine) observeFailure(ctx context.Context, eventType string, rec auditRecord, err error) {
	var limited *RateLimitError
	if errors.As(err, &limited) {
		e.metricInc(MetricRateLimitHit)
		e.emitAudit(ctx, auditRateLimitTriggered, rec, err)
		return
	}
	e.emitAudit(ctx, eventType, rec, err)
}
