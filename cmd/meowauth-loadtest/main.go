// Command meowauth-loadtest measures session lookup and refresh rotation
// throughput against Redis, or an in-process miniredis when no address is
// given.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/meowauth/internal"
	"github.com/MrEthical07/meowauth/session"
)

type seeded struct {
	mu      sync.Mutex
	sid     string
	digest  string
	version uint64
}

type phase func(ctx context.Context, s *seeded, op int) error

func main() {
	var (
		sessions    = flag.Int("sessions", 20000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase")
		redisAddr   = flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "redis address; miniredis when empty")
		prefix      = flag.String("prefix", "lt", "session key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency and ops must be > 0")
		os.Exit(2)
	}
	if err := run(context.Background(), *redisAddr, *prefix, *sessions, *concurrency, *ops); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr, prefix string, sessions, concurrency, ops int) error {
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	store, err := session.NewStore(client, session.Options{Prefix: prefix})
	if err != nil {
		return err
	}

	states := make([]*seeded, sessions)
	fmt.Printf("seeding %d foundation sessions...\n", sessions)
	start := time.Now()
	for i := range states {
		digest := internal.Digest("seed-" + strconv.Itoa(i))
		sess, err := store.Create(ctx, session.CreateParams{
			Kind:        session.KindFoundation,
			AccountID:   "acct-" + strconv.Itoa(i%500),
			RefreshHash: digest,
		})
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		states[i] = &seeded{sid: sess.ID, digest: digest, version: sess.Version}
	}
	fmt.Printf("seeded in %s\n", time.Since(start).Round(time.Millisecond))

	find := runPhase(ctx, states, ops, concurrency, func(ctx context.Context, s *seeded, _ int) error {
		_, err := store.Find(ctx, s.sid)
		return err
	})
	rotate := runPhase(ctx, states, ops, concurrency, func(ctx context.Context, s *seeded, op int) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		next := internal.Digest(s.digest + strconv.Itoa(op))
		sess, err := store.Rotate(ctx, session.RotateParams{
			SID:              s.sid,
			PresentedDigest:  s.digest,
			PresentedVersion: s.version,
			NextDigest:       next,
		})
		if err != nil {
			return err
		}
		s.digest, s.version = next, sess.Version
		return nil
	})

	fmt.Println("---- results ----")
	printStats("find", find)
	printStats("rotate", rotate)
	return nil
}

func runPhase(ctx context.Context, states []*seeded, ops, concurrency int, fn phase) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    atomic.Int64
		failures  atomic.Int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, ops)
	)

	start := time.Now()
	for range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]time.Duration, 0, ops/concurrency+1)
			for {
				op := int(cursor.Add(1)) - 1
				if op >= ops {
					break
				}
				s := states[rand.IntN(len(states))]
				t0 := time.Now()
				if err := fn(ctx, s, op); err != nil {
					failures.Add(1)
				}
				local = append(local, time.Since(t0))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures.Load())
}

type phaseStats struct {
	total         time.Duration
	ops           int
	failures      int64
	p50, p95, p99 time.Duration
	opsPerSecond  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	slices.Sort(samples)
	return phaseStats{
		total:        total,
		ops:          len(samples),
		failures:     failures,
		p50:          percentile(samples, 50),
		p95:          percentile(samples, 95),
		p99:          percentile(samples, 99),
		opsPerSecond: float64(len(samples)) / total.Seconds(),
	}
}

// percentile expects sorted samples.
func percentile(samples []time.Duration, p int) time.Duration {
	switch {
	case len(samples) == 0:
		return 0
	case p <= 0:
		return samples[0]
	case p >= 100:
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name, s.ops, s.failures,
		s.total.Round(time.Millisecond), s.opsPerSecond,
		s.p50.Round(time.Microsecond), s.p95.Round(time.Microsecond), s.p99.Round(time.Microsecond),
	)
}
