package meowauth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/meowauth/internal"
)

const maxUsernameLength = 20

func (e *Engine) loadAccount(ctx context.Context, id string) (Account, error) {
	if id == "" {
		return Account{}, ErrAccountNotFound
	}
	rctx, cancel := e.readCtx(ctx)
	defer cancel()
	acct, err := e.accounts.GetAccount(rctx, id)
	if err != nil {
		return Account{}, storeErr(err)
	}
	return acct, nil
}

func (e *Engine) loadAccountByUsername(ctx context.Context, username string) (Account, error) {
	rctx, cancel := e.readCtx(ctx)
	defer cancel()
	acct, err := e.accounts.GetAccountByUsername(rctx, username)
	if err != nil {
		return Account{}, storeErr(err)
	}
	return acct, nil
}

// checkStanding rejects deleted accounts and accounts under an active ban.
func (e *Engine) checkStanding(acct Account) error {
	if acct.Deleted {
		return blocked(ReasonBanned, time.Time{})
	}
	if acct.Banned(e.now()) {
		return blocked(ReasonBanned, acct.BannedUntil)
	}
	return nil
}

// ValidUsername reports whether name is 1..20 characters of [A-Za-z0-9._-].
func ValidUsername(name string) bool {
	if name == "" || len(name) > maxUsernameLength {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

func (e *Engine) validPassword(pw string) bool {
	return len(pw) >= e.config.Password.MinLength && len(pw) <= e.config.Password.MaxLength
}

// Register creates a password account. It is rate limited per client IP as
// set by WithClientIP. When Email is set and a Notifier is configured, an
// email-confirm token is sent.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if !ValidUsername(req.Username) || !e.validPassword(req.Password) || len(req.Email) > 254 {
		return nil, ErrMalformedInput
	}

	if err := e.limit(ctx, e.limits.Register, clientIPFromContext(ctx)); err != nil {
		e.observeFailure(ctx, auditRegister, auditRecord{}, err)
		return nil, err
	}

	scheme, material, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	acct := Account{
		ID:       internal.NewID(),
		Username: req.Username,
		Methods: []AuthMethod{
			{Type: MethodPassword, Scheme: string(scheme), Material: material},
		},
		CreatedAt: e.now().UTC(),
	}
	if req.Email != "" {
		acct.Methods = append(acct.Methods, AuthMethod{Type: MethodEmail, Scheme: EmailUnverified, Material: req.Email})
	}

	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	if err := e.accounts.CreateAccount(wctx, acct); err != nil {
		err = storeErr(err)
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricRegisterDuplicate)
		}
		e.emitAudit(ctx, auditRegister, auditRecord{}, err)
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditRegister, auditRecord{AccountID: acct.ID}, nil)

	if req.Email != "" {
		e.sendEmailConfirmation(ctx, acct)
	}
	return &acct, nil
}

func (e *Engine) sendEmailConfirmation(ctx context.Context, acct Account) {
	if e.notifier == nil {
		return
	}
	token, _, err := e.issueStandalone(PurposeEmailConfirm, acct.ID, e.config.Flows.EmailConfirmTTL, map[string]string{
		"email": acct.Email(),
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "email confirmation token failed", "account_id", acct.ID, "error", err)
		return
	}
	e.notify(ctx, acct, PurposeEmailConfirm, map[string]string{"token": token})
}

// ConfirmEmail marks the email method verified. The token is single-use and
// only confirms the address it was issued for.
func (e *Engine) ConfirmEmail(ctx context.Context, token string) error {
	if err := e.ready(); err != nil {
		return err
	}
	p, err := e.authorizeStandalone(ctx, token, Requirement{Purpose: PurposeEmailConfirm, AllowUnapproved: true})
	if err != nil {
		return err
	}
	m, ok := p.Account.Method(MethodEmail)
	if !ok || m.Material != p.Claims.Payload["email"] {
		return ErrInvalidToken
	}
	if err := e.consumeStandalone(ctx, p.Claims); err != nil {
		return err
	}

	m.Scheme = EmailVerified
	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	if err := e.accounts.SetMethod(wctx, p.AccountID, m); err != nil {
		return storeErr(err)
	}
	e.emitAudit(ctx, auditEmailConfirmed, auditRecord{AccountID: p.AccountID}, nil)
	return nil
}

// notify delivers through the Notifier. Failures are logged only.
func (e *Engine) notify(ctx context.Context, acct Account, purpose Purpose, data map[string]string) bool {
	if e.notifier == nil {
		return false
	}
	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	if err := e.notifier.Send(wctx, acct, purpose, data); err != nil {
		e.logger.WarnContext(ctx, "notification failed", "account_id", acct.ID, "purpose", string(purpose), "error", err)
		return false
	}
	return true
}

// upgradePassword rewrites legacy or weak material with the current scheme.
// Failures are logged and never fail the login.
func (e *Engine) upgradePassword(ctx context.Context, accountID, presented string) {
	scheme, material, err := e.hasher.Hash(presented)
	if err == nil {
		wctx, cancel := e.writeCtx(ctx)
		err = e.accounts.UpdatePassword(wctx, accountID, string(scheme), material)
		cancel()
	}
	if err != nil {
		e.logger.WarnContext(ctx, "password upgrade failed", "account_id", accountID, "error", err)
		return
	}
	e.metricInc(MetricPasswordUpgraded)
}
