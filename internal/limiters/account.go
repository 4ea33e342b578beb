package limiters

import "context"

// Password, TOTP and exchange budgets count failures only. A success resets
// the bucket.

// CheckPassword rejects a login attempt while the account is cooling down.
func (l *Limiters) CheckPassword(ctx context.Context, accountID string) error {
	return l.check(ctx, l.Config().Password, accountID)
}

// RecordPasswordFailure counts a failed password check.
func (l *Limiters) RecordPasswordFailure(ctx context.Context, accountID string) error {
	return l.record(ctx, l.Config().Password, accountID)
}

// ResetPassword clears the password budget after a successful login.
func (l *Limiters) ResetPassword(ctx context.Context, accountID string) error {
	return l.reset(ctx, l.Config().Password, accountID)
}

// CheckTOTP rejects a second-factor attempt while the account is cooling down.
func (l *Limiters) CheckTOTP(ctx context.Context, accountID string) error {
	return l.check(ctx, l.Config().TOTP, accountID)
}

// RecordTOTPFailure counts a failed TOTP or recovery code.
func (l *Limiters) RecordTOTPFailure(ctx context.Context, accountID string) error {
	return l.record(ctx, l.Config().TOTP, accountID)
}

// ResetTOTP clears the second-factor budget.
func (l *Limiters) ResetTOTP(ctx context.Context, accountID string) error {
	return l.reset(ctx, l.Config().TOTP, accountID)
}

// ExchangeKey scopes an exchange budget to one application as seen from one
// client address.
func ExchangeKey(appID, clientIP string) string {
	return appID + "@" + clientIP
}

// CheckExchange rejects a code exchange while key is cooling down.
func (l *Limiters) CheckExchange(ctx context.Context, key string) error {
	return l.check(ctx, l.Config().Exchange, key)
}

// RecordExchangeFailure counts a rejected code exchange.
func (l *Limiters) RecordExchangeFailure(ctx context.Context, key string) error {
	return l.record(ctx, l.Config().Exchange, key)
}

// ResetExchange clears the exchange budget after a redeemed code.
func (l *Limiters) ResetExchange(ctx context.Context, key string) error {
	return l.reset(ctx, l.Config().Exchange, key)
}
