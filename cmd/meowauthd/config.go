package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/MrEthical07/meowauth"
)

// serverConfig is read from MEOWAUTH_* environment variables.
type serverConfig struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`

	Redis  redisConfig  `envPrefix:"REDIS_"`
	SQLite sqliteConfig `envPrefix:"SQLITE_"`
	Auth   authConfig   `envPrefix:"AUTH_"`
}

type redisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type sqliteConfig struct {
	Path string `env:"PATH" envDefault:"meowauth.db"`
}

type authConfig struct {
	// SigningKey is base64 encoded. In dev mode a random key is used when
	// it is empty.
	SigningKey       string        `env:"SIGNING_KEY"`
	Issuer           string        `env:"ISSUER" envDefault:"meowauth"`
	MetricsEnabled   bool          `env:"METRICS_ENABLED" envDefault:"true"`
	AuditEnabled     bool          `env:"AUDIT_ENABLED" envDefault:"false"`
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	MaxAppsPerOwner  int           `env:"MAX_APPS_PER_OWNER" envDefault:"50"`
	RateLimitEnabled bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
}

// loadConfig reads an optional .env file and then the environment.
func loadConfig() (serverConfig, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return serverConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg serverConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "MEOWAUTH_"}); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c serverConfig) level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// engineConfig overlays the environment onto the engine defaults.
func (c serverConfig) engineConfig(dev bool) (meowauth.Config, error) {
	cfg := meowauth.DefaultConfig()
	cfg.JWT.Issuer = c.Auth.Issuer
	cfg.Session.SweepInterval = c.Auth.SweepInterval
	cfg.OAuth.MaxAppsPerOwner = c.Auth.MaxAppsPerOwner
	cfg.RateLimit.Enabled = c.Auth.RateLimitEnabled
	cfg.Metrics.Enabled = c.Auth.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.Auth.MetricsEnabled
	cfg.Audit.Enabled = c.Auth.AuditEnabled

	switch {
	case c.Auth.SigningKey != "":
		key, err := base64.StdEncoding.DecodeString(c.Auth.SigningKey)
		if err != nil {
			return cfg, fmt.Errorf("MEOWAUTH_AUTH_SIGNING_KEY: %w", err)
		}
		cfg.JWT.PrivateKey = key
	case dev:
		key, err := randomKey()
		if err != nil {
			return cfg, err
		}
		cfg.JWT.PrivateKey = key
	default:
		return cfg, errors.New("MEOWAUTH_AUTH_SIGNING_KEY is required outside dev mode")
	}
	if dev {
		cfg.Password.LogN = 12
	}
	return cfg, cfg.Validate()
}
