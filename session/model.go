package session

import "time"

// Kind identifies the lifecycle a session follows.
type Kind string

const (
	// KindEmailCode backs a one-time code delivered by email.
	KindEmailCode Kind = "email-code"
	// KindDeviceLink backs a login started on one device and approved on another.
	KindDeviceLink Kind = "device-link"
	// KindFoundation is a first-party login with refresh rotation.
	KindFoundation Kind = "foundation"
	// KindOAuthAuthorize records an authorization prompt shown to the user.
	KindOAuthAuthorize Kind = "oauth-authorize"
	// KindOAuthExchange backs the single-use code handed to a third-party app.
	KindOAuthExchange Kind = "oauth-exchange"
	// KindOAuthFull is a third-party app session with refresh rotation.
	KindOAuthFull Kind = "oauth-full"
)

// Kinds lists every supported kind.
var Kinds = []Kind{
	KindEmailCode,
	KindDeviceLink,
	KindFoundation,
	KindOAuthAuthorize,
	KindOAuthExchange,
	KindOAuthFull,
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// OAuth reports whether sessions of kind k are bound to an application.
func (k Kind) OAuth() bool {
	return k == KindOAuthAuthorize || k == KindOAuthExchange || k == KindOAuthFull
}

// Session is the persisted state behind every session-bound token.
//
// Tokens reference a session by ID and carry the Version they were minted at.
// Expiry is enforced against AccessExpiresAt and RefreshExpiresAt, never
// against a claim in the token.
type Session struct {
	ID        string
	Kind      Kind
	AccountID string
	AppID     string
	Scopes    []string

	CreatedAt time.Time
	Version   uint64

	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time

	// RefreshHash is the digest of the refresh token currently accepted.
	RefreshHash string
	// History holds digests of superseded refresh tokens, newest first.
	History []string

	Verified bool
	CodeHash string
	Redirect string
	Action   string
}

// Rotating reports whether the session carries a refresh window.
func (s *Session) Rotating() bool {
	return !s.RefreshExpiresAt.IsZero()
}

// ExpiresAt returns the instant after which the record is dead: the refresh
// expiry for rotating kinds, otherwise the access expiry.
func (s *Session) ExpiresAt() time.Time {
	if s.Rotating() {
		return s.RefreshExpiresAt
	}
	return s.AccessExpiresAt
}

// AccessValid reports whether access tokens for the session are usable at now.
func (s *Session) AccessValid(now time.Time) bool {
	return now.Before(s.AccessExpiresAt)
}

// RefreshValid reports whether the refresh window is still open at now.
func (s *Session) RefreshValid(now time.Time) bool {
	return s.Rotating() && now.Before(s.RefreshExpiresAt)
}

// CreateParams describes a session to be created.
type CreateParams struct {
	// ID is optional. Callers that must sign a refresh token before the
	// record exists pre-allocate it.
	ID        string
	Kind      Kind
	AccountID string
	AppID     string
	Scopes    []string
	// TTL overrides the access lifetime. Rejected for rotating kinds.
	TTL         time.Duration
	RefreshHash string
	CodeHash    string
	Redirect    string
	Action      string
	Verified    bool
}

// RotateParams carries one refresh rotation attempt.
type RotateParams struct {
	SID              string
	PresentedDigest  string
	PresentedVersion uint64
	NextDigest       string
	// AccessTTL and RefreshTTL default to the kind's policy when zero.
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        time.Time
}

// RefreshStatus classifies a presented refresh digest.
type RefreshStatus int

const (
	// RefreshUnknown means the digest was never issued for the session.
	RefreshUnknown RefreshStatus = iota
	// RefreshCurrent means the digest and version are the live pair.
	RefreshCurrent
	// RefreshReused means the digest was superseded; the session is gone.
	RefreshReused
)

func (s RefreshStatus) String() string {
	switch s {
	case RefreshCurrent:
		return "current"
	case RefreshReused:
		return "reused"
	default:
		return "unknown"
	}
}
