package meowauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/meowauth/internal/limiters"
	"github.com/MrEthical07/meowauth/session"
)

// Config holds every tunable of an Engine. Start from DefaultConfig and
// override what differs; Build validates the result.
type Config struct {
	JWT       JWTConfig
	Session   SessionConfig
	Password  PasswordConfig
	TOTP      TOTPConfig
	Flows     FlowConfig
	RateLimit RateLimitConfig
	OAuth     OAuthConfig
	Storage   StorageConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig selects signing keys. SigningMethod is "hs256" (default) or
// "ed25519".
type JWTConfig struct {
	SigningMethod string
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

/*
====================================
SESSION CONFIG
====================================
*/

type SessionConfig struct {
	RedisPrefix   string
	HistorySize   int
	SweepInterval time.Duration
	// Grace keeps Redis records past their logical expiry so the sweeper
	// can still clean their indexes.
	Grace     time.Duration
	Lifetimes session.Policy
}

/*
====================================
CREDENTIAL CONFIG
====================================
*/

// PasswordConfig holds scrypt parameters and length bounds.
type PasswordConfig struct {
	LogN           uint8
	BlockSize      uint32
	Parallelism    uint32
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	MaxLength      int
	UpgradeOnLogin bool
}

type TOTPConfig struct {
	Issuer            string
	Digits            int
	Period            time.Duration
	Algorithm         string
	Skew              int
	PendingTTL        time.Duration
	EnrollTTL         time.Duration
	RecoveryCodeCount int
}

// FlowConfig holds lifetimes of single-use flow tokens.
type FlowConfig struct {
	PasswordResetTTL time.Duration
	EmailConfirmTTL  time.Duration
	EmailCodeLength  int
	DeviceCodeLength int
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

type RateLimitConfig struct {
	Enabled     bool
	RedisPrefix string
	Policies    limiters.Config
}

/*
====================================
OAUTH CONFIG
====================================
*/

// OAuthConfig defines the scope universe and app quotas.
type OAuthConfig struct {
	MaxAppsPerOwner  int
	PlatformScopes   []string
	FirstPartyScopes []string
	MaxScopes        int
}

/*
====================================
INFRASTRUCTURE CONFIG
====================================
*/

type StorageConfig struct {
	OperationTimeout time.Duration
	// ConsumedPrefix is the Redis prefix of the spent-token deny-list.
	ConsumedPrefix string
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// SinkTimeout bounds each delivery to the AuditSink.
	SinkTimeout time.Duration
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: "hs256",
			Issuer:        "meowauth",
		},
		Session: SessionConfig{
			RedisPrefix:   "ms",
			HistorySize:   16,
			SweepInterval: time.Minute,
			Grace:         10 * time.Minute,
			Lifetimes:     session.DefaultPolicy(),
		},
		Password: PasswordConfig{
			LogN:           15,
			BlockSize:      8,
			Parallelism:    1,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			MaxLength:      255,
			UpgradeOnLogin: true,
		},
		TOTP: TOTPConfig{
			Issuer:            "meowauth",
			Digits:            6,
			Period:            30 * time.Second,
			Algorithm:         "SHA1",
			Skew:              1,
			PendingTTL:        5 * time.Minute,
			EnrollTTL:         10 * time.Minute,
			RecoveryCodeCount: 10,
		},
		Flows: FlowConfig{
			PasswordResetTTL: 10 * time.Minute,
			EmailConfirmTTL:  24 * time.Hour,
			EmailCodeLength:  8,
			DeviceCodeLength: 6,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			RedisPrefix: "rl",
			Policies:    limiters.DefaultConfig(),
		},
		OAuth: OAuthConfig{
			MaxAppsPerOwner: 50,
			PlatformScopes: []string{
				"profile:read", "profile:write",
				"posts:read", "posts:write",
				"chats:read", "chats:write",
				"inbox:read",
			},
			FirstPartyScopes: []string{
				"account:security", "account:delete", "apps:manage",
			},
			MaxScopes: 32,
		},
		Storage: StorageConfig{
			OperationTimeout: 2 * time.Second,
			ConsumedPrefix:   "ct",
		},
		Audit: AuditConfig{
			BufferSize:  1024,
			DropIfFull:  true,
			SinkTimeout: 2 * time.Second,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	out.Session.Lifetimes = cfg.Session.Lifetimes.Clone()
	out.OAuth.PlatformScopes = append([]string(nil), cfg.OAuth.PlatformScopes...)
	out.OAuth.FirstPartyScopes = append([]string(nil), cfg.OAuth.FirstPartyScopes...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 && len(c.JWT.VerifyKeys) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}

	// Session
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must be set")
	}
	if c.Session.HistorySize <= 0 {
		return errors.New("Session HistorySize must be > 0")
	}
	if c.Session.SweepInterval <= 0 {
		return errors.New("Session SweepInterval must be > 0")
	}
	if c.Session.Grace < 0 {
		return errors.New("Session Grace must be >= 0")
	}
	if err := c.Session.Lifetimes.Validate(); err != nil {
		return fmt.Errorf("Session Lifetimes: %w", err)
	}

	// Password
	if c.Password.MinLength <= 0 || c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password length bounds are invalid")
	}
	if c.Password.MaxLength > 1024 {
		return errors.New("Password MaxLength must be <= 1024")
	}

	// TOTP
	if c.TOTP.Issuer == "" {
		return errors.New("TOTP Issuer must be set")
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period < time.Second {
		return errors.New("TOTP Period must be >= 1s")
	}
	switch c.TOTP.Algorithm {
	case "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("TOTP Algorithm must be SHA1, SHA256 or SHA512")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 10 {
		return errors.New("TOTP Skew must be between 0 and 10")
	}
	if c.TOTP.PendingTTL <= 0 || c.TOTP.EnrollTTL <= 0 {
		return errors.New("TOTP token TTLs must be > 0")
	}
	if c.TOTP.RecoveryCodeCount <= 0 || c.TOTP.RecoveryCodeCount > 64 {
		return errors.New("TOTP RecoveryCodeCount must be between 1 and 64")
	}

	// Flows
	if c.Flows.PasswordResetTTL <= 0 || c.Flows.EmailConfirmTTL <= 0 {
		return errors.New("Flow token TTLs must be > 0")
	}
	if c.Flows.EmailCodeLength < 6 || c.Flows.EmailCodeLength > 32 {
		return errors.New("Flows EmailCodeLength must be between 6 and 32")
	}
	if c.Flows.DeviceCodeLength < 4 || c.Flows.DeviceCodeLength > 32 {
		return errors.New("Flows DeviceCodeLength must be between 4 and 32")
	}

	// Rate limits
	if c.RateLimit.Enabled {
		if strings.TrimSpace(c.RateLimit.RedisPrefix) == "" {
			return errors.New("RateLimit RedisPrefix must be set")
		}
		if err := c.RateLimit.Policies.Validate(); err != nil {
			return err
		}
	}

	// OAuth
	if c.OAuth.MaxAppsPerOwner <= 0 {
		return errors.New("OAuth MaxAppsPerOwner must be > 0")
	}
	if c.OAuth.MaxScopes <= 0 {
		return errors.New("OAuth MaxScopes must be > 0")
	}
	for _, s := range append(append([]string(nil), c.OAuth.PlatformScopes...), c.OAuth.FirstPartyScopes...) {
		if s == "" || s == scopeAll || strings.ContainsAny(s, " \t") {
			return fmt.Errorf("OAuth scope %q is invalid", s)
		}
	}

	// Infrastructure
	if c.Storage.OperationTimeout <= 0 {
		return errors.New("Storage OperationTimeout must be > 0")
	}
	if strings.TrimSpace(c.Storage.ConsumedPrefix) == "" {
		return errors.New("Storage ConsumedPrefix must be set")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Audit.Enabled && c.Audit.SinkTimeout <= 0 {
		return errors.New("Audit SinkTimeout must be > 0")
	}

	return nil
}
