package limiters

import "context"

// These budgets count every request, successful or not.

// EmailCode throttles login-code emails per account.
func (l *Limiters) EmailCode(ctx context.Context, accountID string) error {
	return l.hit(ctx, l.Config().EmailCode, accountID)
}

// ResetRequest throttles password-reset emails per account.
func (l *Limiters) ResetRequest(ctx context.Context, accountID string) error {
	return l.hit(ctx, l.Config().ResetRequest, accountID)
}

// Register throttles account creation per client IP.
func (l *Limiters) Register(ctx context.Context, clientIP string) error {
	return l.hit(ctx, l.Config().Register, clientIP)
}
