package meowauth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/meowauth/internal/audit"
	"github.com/MrEthical07/meowauth/internal/limiters"
	"github.com/MrEthical07/meowauth/internal/rate"
	"github.com/MrEthical07/meowauth/internal/stores"
	"github.com/MrEthical07/meowauth/jwt"
	"github.com/MrEthical07/meowauth/password"
	"github.com/MrEthical07/meowauth/session"
	"github.com/redis/go-redis/v9"
)

// Builder collects dependencies for an Engine. A Builder builds once.
type Builder struct {
	config   Config
	redis    redis.UniversalClient
	accounts AccountStore
	apps     AppStore
	notifier Notifier
	sink     AuditSink
	logger   *slog.Logger
	clock    func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client shared by sessions, rate buckets and the
// consumed-token list. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountStore sets account persistence. Required.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

// WithAppStore enables the OAuth operations.
func (b *Builder) WithAppStore(store AppStore) *Builder {
	b.apps = store
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink sets the destination of audit events and enables the
// dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for every expiry decision the engine makes.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.accounts == nil {
		return nil, errors.New("account store required")
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	tokens, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
		Now:           clock,
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	hasher, err := password.NewHasher(password.Config{
		LogN:        cfg.Password.LogN,
		BlockSize:   cfg.Password.BlockSize,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("password: %w", err)
	}

	sessions, err := session.NewStore(b.redis, session.Options{
		Prefix:      cfg.Session.RedisPrefix,
		HistorySize: cfg.Session.HistorySize,
		Policy:      cfg.Session.Lifetimes,
		Grace:       cfg.Session.Grace,
		Now:         clock,
	})
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	sweeper, err := session.NewSweeper(session.SweeperOptions{
		Store:    sessions,
		Interval: cfg.Session.SweepInterval,
		Logger:   logger,
		Now:      clock,
	})
	if err != nil {
		return nil, fmt.Errorf("sweeper: %w", err)
	}

	var limits *limiters.Limiters
	if cfg.RateLimit.Enabled {
		limits = limiters.New(rate.New(b.redis, cfg.RateLimit.RedisPrefix, clock), cfg.RateLimit.Policies)
	}

	b.built = true

	return &Engine{
		config:   cfg,
		logger:   logger,
		clock:    clock,
		sessions: sessions,
		sweeper:  sweeper,
		limits:   limits,
		consumed: stores.NewConsumedTokens(b.redis, cfg.Storage.ConsumedPrefix, clock),
		tokens:   tokens,
		hasher:   hasher,
		totp:     newTOTPGenerator(cfg.TOTP),
		accounts: b.accounts,
		apps:     b.apps,
		notifier: b.notifier,
		audit: audit.NewDispatcher(audit.Config{
			Enabled:     cfg.Audit.Enabled,
			BufferSize:  cfg.Audit.BufferSize,
			DropIfFull:  cfg.Audit.DropIfFull,
			SinkTimeout: cfg.Audit.SinkTimeout,
		}, b.sink),
		metrics: NewMetrics(cfg.Metrics),
	}, nil
}
