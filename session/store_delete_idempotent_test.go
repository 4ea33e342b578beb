package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newSessionStoreTest(t *testing.T, opts Options) (*Store, *redis.Client, *testClock) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})

	clock := newTestClock()
	opts.Now = clock.Now
	store, err := NewStore(rdb, opts)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, rdb, clock
}

func createFoundation(t *testing.T, store *Store, account, digest string) *Session {
	t.Helper()
	sess, err := store.Create(context.Background(), CreateParams{
		Kind:        KindFoundation,
		AccountID:   account,
		RefreshHash: digest,
	})
	if err != nil {
		t.Fatalf("create foundation: %v", err)
	}
	return sess
}

func TestDeleteSessionIdempotentAndIndexesCleared(t *testing.T) {
	store, rdb, _ := newSessionStoreTest(t, Options{})
	ctx := context.Background()
	sess := createFoundation(t, store, "acct-1", "d0")

	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}

	if n := rdb.SCard(ctx, "ms:a:acct-1").Val(); n != 0 {
		t.Fatalf("expected empty account index, got %d", n)
	}
	if n := rdb.ZCard(ctx, "ms:x").Val(); n != 0 {
		t.Fatalf("expected empty expiry index, got %d", n)
	}
	if _, err := store.Find(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAppliesPolicy(t *testing.T) {
	store, _, clock := newSessionStoreTest(t, Options{})
	sess := createFoundation(t, store, "acct-1", "d0")

	if sess.Version != 1 {
		t.Fatalf("expected version 1, got %d", sess.Version)
	}
	if want := clock.Now().Add(72 * time.Hour); !sess.AccessExpiresAt.Equal(want) {
		t.Fatalf("access expiry %v, want %v", sess.AccessExpiresAt, want)
	}
	if want := clock.Now().Add(90 * 24 * time.Hour); !sess.RefreshExpiresAt.Equal(want) {
		t.Fatalf("refresh expiry %v, want %v", sess.RefreshExpiresAt, want)
	}

	loaded, err := store.Find(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if loaded.Kind != KindFoundation || loaded.AccountID != "acct-1" || loaded.RefreshHash != "d0" {
		t.Fatalf("unexpected loaded session: %+v", loaded)
	}
	if loaded.AccessExpiresAt.UnixMilli() != sess.AccessExpiresAt.UnixMilli() {
		t.Fatalf("access expiry not preserved")
	}
}

func TestCreateRejectsTTLOverrideOnRotatingKind(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, Options{})
	_, err := store.Create(context.Background(), CreateParams{
		Kind:        KindOAuthFull,
		AccountID:   "acct-1",
		AppID:       "app-1",
		RefreshHash: "d0",
		TTL:         time.Minute,
	})
	if !errors.Is(err, ErrTTLOverrideNotAllowed) {
		t.Fatalf("expected ErrTTLOverrideNotAllowed, got %v", err)
	}

	sess, err := store.Create(context.Background(), CreateParams{
		Kind:      KindEmailCode,
		AccountID: "acct-1",
		TTL:       time.Minute,
	})
	if err != nil {
		t.Fatalf("override on non-rotating kind: %v", err)
	}
	if sess.Rotating() {
		t.Fatalf("email-code session must not rotate")
	}
}

func TestFindRemovesExpiredRecord(t *testing.T) {
	store, rdb, clock := newSessionStoreTest(t, Options{})
	ctx := context.Background()
	sess, err := store.Create(ctx, CreateParams{Kind: KindEmailCode, AccountID: "acct-1", CodeHash: "c1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	clock.Advance(10*time.Minute + time.Second)
	if _, err := store.Find(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if n := rdb.Exists(ctx, "ms:s:"+sess.ID, "ms:c:c1").Val(); n != 0 {
		t.Fatalf("expected expired record and code index removed, %d keys remain", n)
	}
}

func TestConsumeHasSingleWinner(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, Options{})
	ctx := context.Background()
	sess, err := store.Create(ctx, CreateParams{Kind: KindOAuthExchange, AccountID: "acct-1", AppID: "app-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Consume(ctx, sess.ID)
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			if ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
}

func TestFindByCodeRequiresKind(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, Options{})
	ctx := context.Background()
	sess, err := store.Create(ctx, CreateParams{Kind: KindDeviceLink, AccountID: "acct-1", CodeHash: "dev"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	found, err := store.FindByCode(ctx, KindDeviceLink, "dev")
	if err != nil {
		t.Fatalf("find by code: %v", err)
	}
	if found.ID != sess.ID {
		t.Fatalf("resolved %q, want %q", found.ID, sess.ID)
	}
	if _, err := store.FindByCode(ctx, KindEmailCode, "dev"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong kind, got %v", err)
	}
	if _, err := store.FindByCode(ctx, KindDeviceLink, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown code, got %v", err)
	}
}

func TestCreateRejectsTakenCode(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, Options{})
	ctx := context.Background()
	first, err := store.Create(ctx, CreateParams{Kind: KindDeviceLink, AccountID: "acct-1", CodeHash: "dev"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.Create(ctx, CreateParams{Kind: KindDeviceLink, AccountID: "acct-2", CodeHash: "dev"}); !errors.Is(err, ErrCodeTaken) {
		t.Fatalf("expected ErrCodeTaken, got %v", err)
	}
	found, err := store.FindByCode(ctx, KindDeviceLink, "dev")
	if err != nil || found.ID != first.ID {
		t.Fatalf("code must still resolve to the first session, got %+v err=%v", found, err)
	}
	if list, _ := store.ListByAccount(ctx, "acct-2"); len(list) != 0 {
		t.Fatalf("rejected create left %d sessions", len(list))
	}

	if err := store.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Create(ctx, CreateParams{Kind: KindDeviceLink, AccountID: "acct-2", CodeHash: "dev"}); err != nil {
		t.Fatalf("code must be free after delete: %v", err)
	}
}

func TestMarkVerifiedFlipsOnce(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, Options{})
	ctx := context.Background()
	sess, err := store.Create(ctx, CreateParams{Kind: KindDeviceLink, AccountID: "acct-1", CodeHash: "dev"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	changed, err := store.MarkVerified(ctx, sess.ID)
	if err != nil || !changed {
		t.Fatalf("first flip: changed=%v err=%v", changed, err)
	}
	changed, err = store.MarkVerified(ctx, sess.ID)
	if err != nil || changed {
		t.Fatalf("second flip: changed=%v err=%v", changed, err)
	}
	loaded, err := store.Find(ctx, sess.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !loaded.Verified {
		t.Fatalf("expected verified session")
	}
	if _, err := store.MarkVerified(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateRewritesScopes(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, Options{})
	ctx := context.Background()
	sess, err := store.Create(ctx, CreateParams{Kind: KindOAuthAuthorize, AccountID: "acct-1", AppID: "app-1", Scopes: []string{"read"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sess.Scopes = []string{"read", "write"}
	if err := store.Update(ctx, sess); err != nil {
		t.Fatalf("update: %v", err)
	}
	loaded, err := store.Find(ctx, sess.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(loaded.Scopes) != 2 || loaded.Scopes[1] != "write" {
		t.Fatalf("unexpected scopes %v", loaded.Scopes)
	}

	if err := store.Update(ctx, &Session{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteByAccountAppLeavesOtherSessions(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, Options{})
	ctx := context.Background()

	foundation := createFoundation(t, store, "acct-1", "d0")
	target, err := store.Create(ctx, CreateParams{Kind: KindOAuthFull, AccountID: "acct-1", AppID: "app-1", RefreshHash: "r1"})
	if err != nil {
		t.Fatalf("create target: %v", err)
	}
	other, err := store.Create(ctx, CreateParams{Kind: KindOAuthFull, AccountID: "acct-1", AppID: "app-2", RefreshHash: "r2"})
	if err != nil {
		t.Fatalf("create other: %v", err)
	}

	n, err := store.DeleteByAccountApp(ctx, "acct-1", "app-1")
	if err != nil {
		t.Fatalf("delete by account app: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}
	if _, err := store.Find(ctx, target.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("target session should be gone, got %v", err)
	}
	for _, id := range []string{foundation.ID, other.ID} {
		if _, err := store.Find(ctx, id); err != nil {
			t.Fatalf("session %s should survive: %v", id, err)
		}
	}

	listed, err := store.ListByAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 listed sessions, got %d", len(listed))
	}

	removed, err := store.DeleteByAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("delete by account: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	store, rdb, clock := newSessionStoreTest(t, Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.Create(ctx, CreateParams{Kind: KindEmailCode, AccountID: "acct-1"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	keep := createFoundation(t, store, "acct-1", "d0")

	clock.Advance(11 * time.Minute)
	n, err := store.Sweep(ctx, clock.Now())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 swept, got %d", n)
	}
	if members := rdb.SMembers(ctx, "ms:a:acct-1").Val(); len(members) != 1 || members[0] != keep.ID {
		t.Fatalf("unexpected account index after sweep: %v", members)
	}
}

func TestSweeperSweepOnce(t *testing.T) {
	store, _, clock := newSessionStoreTest(t, Options{})
	ctx := context.Background()
	if _, err := store.Create(ctx, CreateParams{Kind: KindOAuthAuthorize, AccountID: "acct-1", AppID: "app-1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	sweeper, err := NewSweeper(SweeperOptions{Store: store, Interval: time.Second})
	if err != nil {
		t.Fatalf("new sweeper: %v", err)
	}
	if n := sweeper.SweepOnce(ctx); n != 0 {
		t.Fatalf("expected nothing swept yet, got %d", n)
	}
	clock.Advance(time.Hour)
	if n := sweeper.SweepOnce(ctx); n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
}

func TestSweeperStopsOnCancel(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, Options{})
	sweeper, err := NewSweeper(SweeperOptions{Store: store, Interval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("new sweeper: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on cancel, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("sweeper did not stop")
	}
}
