package meowauth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
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

// memStore is an in-memory AccountStore and AppStore.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]Account
	apps     map[string]App
	grants   map[string]Grant
	fail     error
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[string]Account),
		apps:     make(map[string]App),
		grants:   make(map[string]Grant),
	}
}

func grantKey(accountID, appID string) string { return accountID + "|" + appID }

func copyAccount(a Account) Account {
	a.Methods = slices.Clone(a.Methods)
	a.RecoveryCodes = slices.Clone(a.RecoveryCodes)
	return a
}

func copyApp(a App) App {
	a.AllowedRedirects = slices.Clone(a.AllowedRedirects)
	a.Bans = slices.Clone(a.Bans)
	a.AllowedScopes = slices.Clone(a.AllowedScopes)
	return a
}

func (m *memStore) setFail(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

func (m *memStore) CreateAccount(_ context.Context, acct Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	for _, a := range m.accounts {
		if strings.EqualFold(a.Username, acct.Username) {
			return ErrAccountExists
		}
	}
	m.accounts[acct.ID] = copyAccount(acct)
	return nil
}

func (m *memStore) GetAccount(_ context.Context, id string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return Account{}, m.fail
	}
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return copyAccount(a), nil
}

func (m *memStore) GetAccountByUsername(_ context.Context, username string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return Account{}, m.fail
	}
	for _, a := range m.accounts {
		if strings.EqualFold(a.Username, username) {
			return copyAccount(a), nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (m *memStore) UpdatePassword(ctx context.Context, accountID, scheme, material string) error {
	return m.SetMethod(ctx, accountID, AuthMethod{Type: MethodPassword, Scheme: scheme, Material: material})
}

func (m *memStore) SetMethod(_ context.Context, accountID string, method AuthMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	a.Methods = slices.DeleteFunc(a.Methods, func(x AuthMethod) bool { return x.Type == method.Type })
	a.Methods = append(a.Methods, method)
	m.accounts[accountID] = a
	return nil
}

func (m *memStore) RemoveMethod(_ context.Context, accountID string, t MethodType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	a.Methods = slices.DeleteFunc(a.Methods, func(x AuthMethod) bool { return x.Type == t })
	m.accounts[accountID] = a
	return nil
}

func (m *memStore) SetRecoveryCodes(_ context.Context, accountID string, hashes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	a.RecoveryCodes = slices.Clone(hashes)
	m.accounts[accountID] = a
	return nil
}

func (m *memStore) ConsumeRecoveryCode(_ context.Context, accountID, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return false, nil
	}
	i := slices.Index(a.RecoveryCodes, hash)
	if i < 0 {
		return false, nil
	}
	a.RecoveryCodes = slices.Delete(a.RecoveryCodes, i, i+1)
	m.accounts[accountID] = a
	return true, nil
}

func (m *memStore) GetGrant(_ context.Context, accountID, appID string) (Grant, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[grantKey(accountID, appID)]
	g.Scopes = slices.Clone(g.Scopes)
	return g, ok, nil
}

func (m *memStore) PutGrant(_ context.Context, g Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g.Scopes = slices.Clone(g.Scopes)
	m.grants[grantKey(g.AccountID, g.AppID)] = g
	return nil
}

func (m *memStore) DeleteGrant(_ context.Context, accountID, appID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := grantKey(accountID, appID)
	_, ok := m.grants[k]
	delete(m.grants, k)
	return ok, nil
}

func (m *memStore) DeleteAppGrants(_ context.Context, appID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, g := range m.grants {
		if g.AppID == appID {
			delete(m.grants, k)
		}
	}
	return nil
}

func (m *memStore) ListGrants(_ context.Context, accountID string) ([]Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Grant
	for _, g := range m.grants {
		if g.AccountID == accountID {
			out = append(out, g)
		}
	}
	slices.SortFunc(out, func(a, b Grant) int { return strings.Compare(a.AppID, b.AppID) })
	return out, nil
}

func (m *memStore) CreateApp(_ context.Context, app App) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps[app.ID] = copyApp(app)
	return nil
}

func (m *memStore) GetApp(_ context.Context, id string) (App, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok {
		return App{}, ErrAppNotFound
	}
	return copyApp(a), nil
}

func (m *memStore) ListAppsByOwner(_ context.Context, ownerID string) ([]App, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []App
	for _, a := range m.apps {
		if a.OwnerID == ownerID {
			out = append(out, copyApp(a))
		}
	}
	slices.SortFunc(out, func(a, b App) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *memStore) CountAppsByOwner(ctx context.Context, ownerID string) (int, error) {
	apps, err := m.ListAppsByOwner(ctx, ownerID)
	return len(apps), err
}

func (m *memStore) UpdateApp(_ context.Context, app App) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.apps[app.ID]; !ok {
		return ErrAppNotFound
	}
	m.apps[app.ID] = copyApp(app)
	return nil
}

func (m *memStore) DeleteApp(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.apps[id]; !ok {
		return ErrAppNotFound
	}
	delete(m.apps, id)
	return nil
}

func (m *memStore) mutateAccount(t *testing.T, id string, fn func(*Account)) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		t.Fatalf("account %s not found", id)
	}
	fn(&a)
	m.accounts[id] = a
}

type sentMessage struct {
	Account Account
	Purpose Purpose
	Data    map[string]string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, acct Account, purpose Purpose, data map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMessage{Account: acct, Purpose: purpose, Data: data})
	return nil
}

func (n *recordingNotifier) last(t *testing.T, purpose Purpose) sentMessage {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Purpose == purpose {
			return n.sent[i]
		}
	}
	t.Fatalf("no %s notification sent", purpose)
	return sentMessage{}
}

type testEnv struct {
	engine   *Engine
	store    *memStore
	notifier *recordingNotifier
	clock    *testClock
	redis    *miniredis.Miniredis
	sink     *recordingSink
}

type recordingSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *recordingSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

// waitFor polls until an event of eventType arrives; delivery is async.
func (s *recordingSink) waitFor(t *testing.T, eventType string) AuditEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		for _, ev := range s.events {
			if ev.Type == eventType {
				s.mu.Unlock()
				return ev
			}
		}
		s.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %s audit event", eventType)
	return AuditEvent{}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.LogN = 10
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
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

	cfg := testConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}
	env := &testEnv{
		store:    newMemStore(),
		notifier: &recordingNotifier{},
		clock:    newTestClock(),
		redis:    mr,
		sink:     &recordingSink{},
	}
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(env.store).
		WithAppStore(env.store).
		WithNotifier(env.notifier).
		WithAuditSink(env.sink).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

func (env *testEnv) register(t *testing.T, username, pw, email string) *Account {
	t.Helper()
	acct, err := env.engine.Register(context.Background(), RegisterRequest{Username: username, Password: pw, Email: email})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return acct
}

func (env *testEnv) login(t *testing.T, username, pw string) *TokenPair {
	t.Helper()
	res, err := env.engine.LoginPassword(context.Background(), username, pw)
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	if res.Tokens == nil {
		t.Fatalf("login %s: expected tokens, got %+v", username, res)
	}
	return res.Tokens
}

func (env *testEnv) principal(t *testing.T, access string) *Principal {
	t.Helper()
	p, err := env.engine.Authorize(context.Background(), access, Requirement{})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	return p
}

// enrollTOTP turns on TOTP for the principal and returns the secret and
// plain recovery codes. The clock advances one period so the enrollment code
// is not replayed by the caller.
func (env *testEnv) enrollTOTP(t *testing.T, p *Principal) (string, []string) {
	t.Helper()
	ctx := context.Background()
	enrollment, err := env.engine.EnableTOTP(ctx, p)
	if err != nil {
		t.Fatalf("enable totp: %v", err)
	}
	code := env.totpCode(t, enrollment.Secret)
	codes, err := env.engine.ConfirmTOTP(ctx, p, enrollment.Token, code)
	if err != nil {
		t.Fatalf("confirm totp: %v", err)
	}
	env.clock.Advance(env.engine.config.TOTP.Period)
	return enrollment.Secret, codes
}

func (env *testEnv) totpCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := env.engine.totp.Code(secret, env.clock.Now())
	if err != nil {
		t.Fatalf("totp code: %v", err)
	}
	return code
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

// wrongCode changes the first character of code within its class.
func wrongCode(code string) string {
	b := []byte(code)
	switch c := b[0]; {
	case c >= '0' && c <= '9':
		b[0] = '0' + (c-'0'+1)%10
	default:
		b[0] = 'A' + (c-'A'+1)%26
	}
	return string(b)
}
