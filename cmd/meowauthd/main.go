// Command meowauthd serves the meowauth engine over HTTP.
//
// Configuration comes from MEOWAUTH_* environment variables, optionally
// seeded from a .env file. With -dev the server runs against an in-process
// Redis, generates a signing key when none is set and exposes notification
// payloads at /dev/outbox/{username} in place of mail delivery.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/meowauth"
	"github.com/MrEthical07/meowauth/storage/sqlite"
)

func main() {
	dev := flag.Bool("dev", false, "run with in-process redis and a dev outbox")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.level()}))
	slog.SetDefault(logger)

	if err := run(ctx, cfg, *dev, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg serverConfig, dev bool, logger *slog.Logger) error {
	engineCfg, err := cfg.engineConfig(dev)
	if err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	rdb, closeRedis, err := connectRedis(cfg.Redis, dev)
	if err != nil {
		return err
	}
	defer closeRedis()

	store, err := sqlite.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("close sqlite failed", "error", cerr)
		}
	}()

	srv := &server{logger: logger}
	builder := meowauth.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithAccountStore(store).
		WithAppStore(store).
		WithLogger(logger)
	if dev {
		srv.outbox = newOutbox(logger)
		builder = builder.WithNotifier(srv.outbox)
	}
	if engineCfg.Audit.Enabled {
		builder = builder.WithAuditSink(meowauth.NewJSONWriterSink(os.Stderr))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()
	srv.engine = engine

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      newRouter(srv),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.InfoContext(gctx, "listening", "addr", cfg.Addr, "dev", dev)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return engine.RunSweeper(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// connectRedis dials the configured Redis, or starts miniredis in dev mode.
func connectRedis(cfg redisConfig, dev bool) (redis.UniversalClient, func(), error) {
	if dev {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		return rdb, func() {
			_ = rdb.Close()
			mr.Close()
		}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return rdb, func() { _ = rdb.Close() }, nil
}

func randomKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return key, nil
}
