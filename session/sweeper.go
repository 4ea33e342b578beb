package session

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"
)

const defaultSweepInterval = time.Minute

// SweeperOptions groups dependencies for a Sweeper.
type SweeperOptions struct {
	Store    *Store
	Interval time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

// Sweeper periodically removes expired sessions and their index entries.
// It is garbage collection only; reads never rely on it for correctness.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewSweeper validates opts and returns a Sweeper.
func NewSweeper(opts SweeperOptions) (*Sweeper, error) {
	if opts.Store == nil {
		return nil, errors.New("session store is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = opts.Store.now
	}
	return &Sweeper{
		store:    opts.Store,
		interval: opts.Interval,
		logger:   opts.Logger.With("component", "session_sweeper"),
		now:      opts.Now,
	}, nil
}

// Run sweeps until ctx is cancelled. It returns nil on graceful shutdown.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting session sweeper", "interval", s.interval)

	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "session sweeper stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single pass and returns the number of entries removed.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	start := time.Now()
	n, err := s.store.Sweep(ctx, s.now())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return n
		}
		s.logger.ErrorContext(ctx, "session sweep failed", "error", err, "removed", n)
		return n
	}
	if n > 0 {
		s.logger.DebugContext(ctx, "session sweep completed", "removed", n, "elapsed", time.Since(start))
	}
	return n
}

// waitWithJitter delays the first pass by up to 10% of the interval so
// replicas started together do not sweep in lockstep.
func (s *Sweeper) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)))

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}
