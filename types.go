package meowauth

import (
	"context"
	"slices"
	"time"

	"github.com/MrEthical07/meowauth/jwt"
	"github.com/MrEthical07/meowauth/session"
)

// MethodType names an authentication factor attached to an account.
type MethodType string

const (
	MethodPassword MethodType = "password"
	MethodEmail    MethodType = "email"
	MethodTOTP     MethodType = "totp"
	MethodWebAuthn MethodType = "webauthn"
)

// AuthMethod is one factor. Material holds the password hash, the email
// address or the base32 TOTP secret depending on Type.
type AuthMethod struct {
	Type     MethodType
	Scheme   string
	Material string
}

// Email method schemes track whether the address has been confirmed.
const (
	EmailUnverified = "unverified"
	EmailVerified   = "verified"
)

// Account is the persisted identity record.
type Account struct {
	ID       string
	Username string
	Methods  []AuthMethod
	// RecoveryCodes are sha256 hex digests of unused TOTP recovery codes.
	RecoveryCodes   []string
	BannedUntil     time.Time
	BanReason       string
	Deleted         bool
	PendingApproval bool
	CreatedAt       time.Time
}

// Method returns the first factor of type t.
func (a Account) Method(t MethodType) (AuthMethod, bool) {
	for _, m := range a.Methods {
		if m.Type == t {
			return m, true
		}
	}
	return AuthMethod{}, false
}

// TOTPEnabled reports whether a TOTP secret is enrolled.
func (a Account) TOTPEnabled() bool {
	m, ok := a.Method(MethodTOTP)
	return ok && m.Material != ""
}

// Email returns the registered address, or "".
func (a Account) Email() string {
	m, _ := a.Method(MethodEmail)
	return m.Material
}

// Banned reports whether a ban is active at now.
func (a Account) Banned(now time.Time) bool {
	return !a.BannedUntil.IsZero() && now.Before(a.BannedUntil)
}

// App is a registered third-party (or first-party) OAuth application.
type App struct {
	ID               string
	OwnerID          string
	Name             string
	Description      string
	SecretHash       string
	FirstParty       bool
	AllowedRedirects []string
	Bans             []string
	AllowedScopes    []string
	CreatedAt        time.Time
}

// RedirectAllowed reports whether redirect is registered. "*" allows any.
func (a App) RedirectAllowed(redirect string) bool {
	return slices.Contains(a.AllowedRedirects, "*") || slices.Contains(a.AllowedRedirects, redirect)
}

// BannedAccount reports whether the owner has banned accountID from the app.
func (a App) BannedAccount(accountID string) bool {
	return slices.Contains(a.Bans, accountID)
}

// Grant is the set of scopes an account has approved for an app.
type Grant struct {
	AccountID string
	AppID     string
	Scopes    []string
	UpdatedAt time.Time
}

// Purpose tags standalone tokens and outbound notifications.
type Purpose string

const (
	PurposeTOTPPending   Purpose = "totp-pending"
	PurposePasswordReset Purpose = "password-reset"
	PurposeEmailConfirm  Purpose = "email-confirm"
	PurposeTOTPEnroll    Purpose = "totp-enroll"
	PurposeLoginCode     Purpose = "login-code"
)

// AccountStore persists accounts, recovery codes and app grants.
//
// Lookups return ErrAccountNotFound when no row matches. ConsumeRecoveryCode
// must be atomic: it reports true only to the caller that removed the code.
type AccountStore interface {
	CreateAccount(ctx context.Context, account Account) error
	GetAccount(ctx context.Context, id string) (Account, error)
	GetAccountByUsername(ctx context.Context, username string) (Account, error)
	UpdatePassword(ctx context.Context, accountID, scheme, material string) error
	SetMethod(ctx context.Context, accountID string, method AuthMethod) error
	RemoveMethod(ctx context.Context, accountID string, method MethodType) error
	SetRecoveryCodes(ctx context.Context, accountID string, hashes []string) error
	ConsumeRecoveryCode(ctx context.Context, accountID, hash string) (bool, error)

	GetGrant(ctx context.Context, accountID, appID string) (Grant, bool, error)
	PutGrant(ctx context.Context, grant Grant) error
	DeleteGrant(ctx context.Context, accountID, appID string) (bool, error)
	DeleteAppGrants(ctx context.Context, appID string) error
	ListGrants(ctx context.Context, accountID string) ([]Grant, error)
}

// AppStore persists OAuth applications. GetApp returns ErrAppNotFound when
// no row matches.
type AppStore interface {
	CreateApp(ctx context.Context, app App) error
	GetApp(ctx context.Context, id string) (App, error)
	ListAppsByOwner(ctx context.Context, ownerID string) ([]App, error)
	CountAppsByOwner(ctx context.Context, ownerID string) (int, error)
	UpdateApp(ctx context.Context, app App) error
	DeleteApp(ctx context.Context, id string) error
}

// Notifier delivers out-of-band messages such as login codes and reset
// links. Rendering and transport belong to the implementation.
type Notifier interface {
	Send(ctx context.Context, account Account, purpose Purpose, data map[string]string) error
}

// Requirement describes what Authorize must establish about a bearer.
type Requirement struct {
	// Kinds lists the accepted session kinds. Empty accepts foundation and
	// oauth-full.
	Kinds []session.Kind
	// Purpose selects a standalone token of that purpose instead of a
	// session-bound token.
	Purpose Purpose
	// Consume spends a standalone token's jti on success.
	Consume bool
	// Refresh expects a refresh token instead of an access token.
	Refresh bool
	// Scopes must all be held by oauth-full principals.
	Scopes          []string
	AllowUnapproved bool
	AllowUnverified bool
}

// Principal is the resolved identity behind a bearer credential.
type Principal struct {
	AccountID string
	SessionID string
	Kind      session.Kind
	AppID     string
	Scopes    []string
	// AllScopes is set for first-party foundation sessions.
	AllScopes bool
	Version   uint64
	// Claims is set for standalone tokens only.
	Claims  *jwt.StandaloneClaims
	Account Account
}

// HasScope reports whether p may act under scope.
func (p *Principal) HasScope(scope string) bool {
	if p == nil {
		return false
	}
	return p.AllScopes || slices.Contains(p.Scopes, scope)
}

// TokenPair is an access token and, for rotating kinds, a refresh token
// bound to the same session.
type TokenPair struct {
	SessionID        string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Scopes           []string
}

// LoginResult is either a token pair or a pending second-factor challenge.
type LoginResult struct {
	TOTPRequired bool
	PendingToken string
	Tokens       *TokenPair
}

// DeviceLogin is handed to a new device. The user types Code on a signed-in
// device; the new device polls with Token.
type DeviceLogin struct {
	Code      string
	Token     string
	ExpiresAt time.Time
}

// SessionInfo is the public view of a session.
type SessionInfo struct {
	ID               string
	Kind             session.Kind
	AppID            string
	Scopes           []string
	CreatedAt        time.Time
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Current          bool
}

// TOTPEnrollment is a secret awaiting confirmation.
type TOTPEnrollment struct {
	Secret    string
	URI       string
	Token     string
	ExpiresAt time.Time
}

// AppInfo is the display data of an app shown on the consent screen.
type AppInfo struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	FirstParty  bool
}

// AuthorizationPreview answers what would happen if the user approved.
// Ticket is set when the request could be approved; ApproveAuthorization
// redeems it once before ExpiresAt.
type AuthorizationPreview struct {
	App             AppInfo
	Scopes          []string
	Authorized      bool
	Banned          bool
	RedirectAllowed bool
	Ticket          string
	ExpiresAt       time.Time
}

type AuthorizeRequest struct {
	AppID    string
	Scopes   []string
	Redirect string
}

// AuthorizationCode is the short-lived exchange credential for an app.
type AuthorizationCode struct {
	Code      string
	Redirect  string
	Scopes    []string
	ExpiresAt time.Time
}

type ExchangeRequest struct {
	Code   string
	AppID  string
	Secret string
}

type RegisterRequest struct {
	Username string
	Password string
	Email    string
}

type CreateAppRequest struct {
	Name        string
	Description string
	Redirects   []string
}

// UpdateAppRequest changes the fields that are set. A nil AllowedScopes
// leaves the scopes unchanged; an empty non-nil slice clears the narrowing.
type UpdateAppRequest struct {
	Name          *string
	Description   *string
	AllowedScopes []string
}

// CreatedApp is returned once from CreateApp and RotateAppSecret. Secret
// is never stored in plain text.
type CreatedApp struct {
	App    App
	Secret string
}
