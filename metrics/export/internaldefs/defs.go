package internaldefs

import (
	"github.com/MrEthical07/meowauth"
)

// Def names one engine metric for export.
type Def struct {
	ID   meowauth.MetricID
	Name string
	Help string
}

// Counters lists every exported counter in exposition order.
var Counters = []Def{
	{meowauth.MetricAuthorizeSuccess, "meowauth_authorize_success_total", "Bearers resolved to a principal."},
	{meowauth.MetricAuthorizeFailure, "meowauth_authorize_failure_total", "Bearers rejected by Authorize."},
	{meowauth.MetricLoginSuccess, "meowauth_login_success_total", "Completed logins."},
	{meowauth.MetricLoginFailure, "meowauth_login_failure_total", "Rejected login attempts."},
	{meowauth.MetricTOTPRequired, "meowauth_totp_required_total", "Logins that stopped at the second factor."},
	{meowauth.MetricTOTPFailure, "meowauth_totp_failure_total", "Rejected TOTP or recovery codes."},
	{meowauth.MetricRecoveryCodeUsed, "meowauth_recovery_code_used_total", "Recovery codes spent."},
	{meowauth.MetricEmailCodeSent, "meowauth_email_code_sent_total", "Email login codes handed to the notifier."},
	{meowauth.MetricDeviceApproved, "meowauth_device_approved_total", "Device-link sessions approved."},
	{meowauth.MetricRefreshSuccess, "meowauth_refresh_success_total", "Token pairs rotated."},
	{meowauth.MetricRefreshFailure, "meowauth_refresh_failure_total", "Rejected refresh attempts."},
	{meowauth.MetricRefreshReuseDetected, "meowauth_refresh_reuse_detected_total", "Superseded refresh tokens presented."},
	{meowauth.MetricRateLimitHit, "meowauth_rate_limit_hit_total", "Calls denied by a rate policy."},
	{meowauth.MetricSessionCreated, "meowauth_session_created_total", "Sessions created."},
	{meowauth.MetricSessionInvalidated, "meowauth_session_invalidated_total", "Sessions deleted before expiry."},
	{meowauth.MetricLogout, "meowauth_logout_total", "Single-session logouts."},
	{meowauth.MetricLogoutAll, "meowauth_logout_all_total", "Logout-all operations."},
	{meowauth.MetricRegisterSuccess, "meowauth_register_success_total", "Accounts registered."},
	{meowauth.MetricRegisterDuplicate, "meowauth_register_duplicate_total", "Registrations rejected as duplicate."},
	{meowauth.MetricPasswordResetRequest, "meowauth_password_reset_request_total", "Password reset mails requested."},
	{meowauth.MetricPasswordResetConfirm, "meowauth_password_reset_confirm_total", "Password resets completed."},
	{meowauth.MetricPasswordUpgraded, "meowauth_password_upgraded_total", "Legacy password hashes rewritten on login."},
	{meowauth.MetricOAuthAuthorized, "meowauth_oauth_authorized_total", "Authorization codes issued."},
	{meowauth.MetricOAuthExchanged, "meowauth_oauth_exchanged_total", "Authorization codes exchanged for tokens."},
	{meowauth.MetricOAuthExchangeFailure, "meowauth_oauth_exchange_failure_total", "Rejected code exchanges."},
	{meowauth.MetricAppCreated, "meowauth_app_created_total", "Applications created."},
	{meowauth.MetricAppDeleted, "meowauth_app_deleted_total", "Applications deleted."},
	{meowauth.MetricSessionsSwept, "meowauth_sessions_swept_total", "Expired session records removed by the sweeper."},
}

// AuthorizeLatency is the only exported histogram.
var AuthorizeLatency = Def{
	meowauth.MetricAuthorizeLatency,
	"meowauth_authorize_latency_seconds",
	"Authorize latency.",
}

// AuditDropped counts events the audit dispatcher discarded.
var AuditDropped = Def{Name: "meowauth_audit_dropped_total", Help: "Audit events dropped under backpressure."}

// Bounds are the upper bucket edges in seconds, matching the engine's
// eight latency buckets.
var Bounds = [8]string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// Buckets copies raw into the fixed bucket layout, padding short input.
func Buckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// Cumulative turns per-bucket counts into running totals.
func Cumulative(raw [8]uint64) [8]uint64 {
	var running uint64
	for i, v := range raw {
		running += v
		raw[i] = running
	}
	return raw
}
