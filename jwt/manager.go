package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the signature algorithm for issued tokens.
type SigningMethod string

const (
	// MethodHS256 signs with a shared HMAC key.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

const (
	shapeStandalone = "standalone"
	shapeSession    = "session"
)

// TokenType distinguishes the two halves of a session-bound pair.
type TokenType string

const (
	// TypeAccess authorizes requests until the session's access expiry.
	TypeAccess TokenType = "access"
	// TypeRefresh is exchanged for a new pair until the refresh expiry.
	TypeRefresh TokenType = "refresh"
)

var (
	// ErrMalformed is returned when a token cannot be parsed or its signature fails.
	ErrMalformed = errors.New("malformed token")
	// ErrExpired is returned when a standalone token is past its exp claim.
	ErrExpired = errors.New("token expired")
	// ErrWrongShape is returned when a standalone token is presented where a
	// session-bound one is expected, or the reverse.
	ErrWrongShape = errors.New("unexpected token shape")
	// ErrWrongPurpose is returned when a standalone token carries a different purpose tag.
	ErrWrongPurpose = errors.New("unexpected token purpose")
)

// Config controls signing keys and validation strictness.
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
	Now           func() time.Time
}

// Manager issues and verifies both token shapes.
type Manager struct {
	config Config
}

// StandaloneClaims carry everything a one-shot flow needs without storage.
type StandaloneClaims struct {
	Shape   string            `json:"typ"`
	Purpose string            `json:"pur"`
	Payload map[string]string `json:"pld,omitempty"`
	jwt.RegisteredClaims
}

// SessionClaims reference a persisted session record. Expiry is enforced
// against that record, so no exp claim is embedded.
type SessionClaims struct {
	Shape     string    `json:"typ"`
	SessionID string    `json:"sid"`
	Type      TokenType `json:"tt"`
	Version   uint64    `json:"ver"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager bound to it.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 16 {
			return nil, errors.New("hs256 requires a key of at least 16 bytes")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return &Manager{config: cfg}, nil
}

// CreateStandalone signs a self-expiring token for purpose. The returned jti
// identifies the token on the consumed-token deny-list.
func (j *Manager) CreateStandalone(
	purpose string,
	subject string,
	ttl time.Duration,
	payload map[string]string,
) (token string, jti string, expiresAt time.Time, err error) {
	if purpose == "" || subject == "" || ttl <= 0 {
		return "", "", time.Time{}, errors.New("standalone token requires purpose, subject and ttl")
	}

	now := j.config.Now()
	expiresAt = now.Add(ttl)
	jti = uuid.NewString()

	claims := StandaloneClaims{
		Shape:   shapeStandalone,
		Purpose: purpose,
		Payload: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    j.config.Issuer,
		},
	}

	token, err = j.sign(claims)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, jti, expiresAt, nil
}

// ParseStandalone verifies signature, expiry and purpose.
func (j *Manager) ParseStandalone(tokenStr string, purpose string) (*StandaloneClaims, error) {
	claims := &StandaloneClaims{}
	if err := j.parse(tokenStr, claims, true); err != nil {
		return nil, err
	}
	if claims.Shape != shapeStandalone {
		return nil, ErrWrongShape
	}
	if claims.Purpose != purpose {
		return nil, ErrWrongPurpose
	}
	if claims.Subject == "" || claims.ID == "" || claims.ExpiresAt == nil {
		return nil, ErrMalformed
	}
	return claims, nil
}

// CreateSessionToken signs a token bound to sid at version.
func (j *Manager) CreateSessionToken(sid string, tokenType TokenType, version uint64) (string, error) {
	if sid == "" || version == 0 {
		return "", errors.New("session token requires sid and version")
	}
	if tokenType != TypeAccess && tokenType != TypeRefresh {
		return "", errors.New("unsupported session token type")
	}

	claims := SessionClaims{
		Shape:     shapeSession,
		SessionID: sid,
		Type:      tokenType,
		Version:   version,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(j.config.Now()),
			Issuer:   j.config.Issuer,
		},
	}
	return j.sign(claims)
}

// ParseSessionToken verifies the signature and shape of a session-bound token.
// Existence, expiry and version are checked by the caller against the store.
func (j *Manager) ParseSessionToken(tokenStr string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := j.parse(tokenStr, claims, false); err != nil {
		return nil, err
	}
	if claims.Shape != shapeSession {
		return nil, ErrWrongShape
	}
	if claims.SessionID == "" || claims.Version == 0 {
		return nil, ErrMalformed
	}
	if claims.Type != TypeAccess && claims.Type != TypeRefresh {
		return nil, ErrMalformed
	}
	return claims, nil
}

func (j *Manager) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(j.getMethod(), claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}

	signKey, err := j.getSignKey()
	if err != nil {
		return "", err
	}
	return token.SignedString(signKey)
}

func (j *Manager) parse(tokenStr string, claims jwt.Claims, requireExp bool) error {
	if tokenStr == "" {
		return ErrMalformed
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.getMethod().Alg()}),
		jwt.WithTimeFunc(j.config.Now),
		jwt.WithIssuedAt(),
	}
	if requireExp {
		options = append(options, jwt.WithExpirationRequired())
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, j.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpired
		}
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !token.Valid {
		return ErrMalformed
	}

	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return ErrMalformed
	}
	if iat.Time.After(j.config.Now().Add(j.config.MaxFutureIAT)) {
		return fmt.Errorf("%w: iat too far in the future", ErrMalformed)
	}
	return nil
}

func (j *Manager) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != j.getMethod().Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(j.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := j.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return j.keyBytesToVerifyKey(key)
	}

	if j.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != j.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	return j.getVerifyKey()
}

func (j *Manager) getMethod() jwt.SigningMethod {
	switch j.config.SigningMethod {
	case MethodEd25519:
		return jwt.SigningMethodEdDSA
	default:
		return jwt.SigningMethodHS256
	}
}

func (j *Manager) getSignKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodEd25519:
		return parseEdPrivateKey(j.config.PrivateKey)
	default:
		return j.config.PrivateKey, nil
	}
}

func (j *Manager) getVerifyKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodEd25519:
		return parseEdPublicKey(j.config.PublicKey)
	default:
		return j.config.PrivateKey, nil
	}
}

func (j *Manager) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodEd25519:
		return parseEdPublicKey(key)
	default:
		return key, nil
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
