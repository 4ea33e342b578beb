package meowauth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/meowauth/internal/audit"
	"github.com/MrEthical07/meowauth/internal/limiters"
	"github.com/MrEthical07/meowauth/internal/stores"
	"github.com/MrEthical07/meowauth/jwt"
	"github.com/MrEthical07/meowauth/password"
	"github.com/MrEthical07/meowauth/session"
)

// Engine verifies credentials, issues and rotates session tokens, and
// negotiates app authorization. It is safe for concurrent use once built.
type Engine struct {
	config Config
	logger *slog.Logger
	clock  func() time.Time

	sessions *session.Store
	sweeper  *session.Sweeper
	limits   *limiters.Limiters
	consumed *stores.ConsumedTokens
	tokens   *jwt.Manager
	hasher   *password.Hasher
	totp     *totpGenerator

	accounts AccountStore
	apps     AppStore
	notifier Notifier

	audit   *audit.Dispatcher
	metrics *Metrics
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the configuration in use.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// RunSweeper removes expired sessions every SweepInterval until ctx is
// done. Correctness does not depend on it; it reclaims Redis memory.
func (e *Engine) RunSweeper(ctx context.Context) error {
	if e == nil || e.sweeper == nil {
		return ErrEngineNotReady
	}
	return e.sweeper.Run(ctx)
}

// SweepOnce runs a single sweep pass and returns the number of sessions removed.
func (e *Engine) SweepOnce(ctx context.Context) int {
	if e == nil || e.sweeper == nil {
		return 0
	}
	n := e.sweeper.SweepOnce(ctx)
	if e.metrics != nil && n > 0 {
		e.metrics.Add(MetricSessionsSwept, uint64(n))
	}
	return n
}

// Ping checks the Redis connection.
func (e *Engine) Ping(ctx context.Context) error {
	ctx, cancel := e.readCtx(ctx)
	defer cancel()
	if err := e.sessions.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.sessions == nil || e.tokens == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	return nil
}

// limit runs a rate check against Redis under the write timeout and maps its
// failure to RateLimitError or ErrStorageUnavailable.
func (e *Engine) limit(ctx context.Context, check func(context.Context, string) error, principal string) error {
	wctx, cancel := e.writeCtx(ctx)
	defer cancel()
	return translate(check(wctx, principal))
}
