package meowauth_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrEthical07/meowauth"
	"github.com/MrEthical07/meowauth/internal/mocks"
)

type mockedEngine struct {
	engine   *meowauth.Engine
	accounts *mocks.MockAccountStore
	apps     *mocks.MockAppStore
	notifier *mocks.MockNotifier
}

func newMockedEngine(t *testing.T) *mockedEngine {
	t.Helper()
	ctrl := gomock.NewController(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := meowauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.LogN = 10
	cfg.Password.UpgradeOnLogin = false

	m := &mockedEngine{
		accounts: mocks.NewMockAccountStore(ctrl),
		apps:     mocks.NewMockAppStore(ctrl),
		notifier: mocks.NewMockNotifier(ctrl),
	}
	engine, err := meowauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(m.accounts).
		WithAppStore(m.apps).
		WithNotifier(m.notifier).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	m.engine = engine
	return m
}

func legacyAccount(id, username, password string) meowauth.Account {
	sum := sha256.Sum256([]byte(password))
	return meowauth.Account{
		ID:       id,
		Username: username,
		Methods: []meowauth.AuthMethod{
			{Type: meowauth.MethodPassword, Scheme: "sha256", Material: hex.EncodeToString(sum[:])},
			{Type: meowauth.MethodEmail, Scheme: meowauth.EmailVerified, Material: username + "@example.com"},
		},
	}
}

func TestRegisterSurfacesDuplicate(t *testing.T) {
	m := newMockedEngine(t)
	m.accounts.EXPECT().CreateAccount(gomock.Any(), gomock.Any()).Return(meowauth.ErrAccountExists)

	_, err := m.engine.Register(context.Background(), meowauth.RegisterRequest{Username: "mittens", Password: "correct-horse"})
	assert.ErrorIs(t, err, meowauth.ErrAccountExists)
}

func TestLoginStoreFailureIsUnavailable(t *testing.T) {
	m := newMockedEngine(t)
	m.accounts.EXPECT().GetAccountByUsername(gomock.Any(), "mittens").Return(meowauth.Account{}, errors.New("connection reset"))

	_, err := m.engine.LoginPassword(context.Background(), "mittens", "correct-horse")
	require.ErrorIs(t, err, meowauth.ErrStorageUnavailable)
	assert.Equal(t, meowauth.ReasonUnavailable, meowauth.ReasonOf(err))
}

func TestRequestEmailLoginSendsCode(t *testing.T) {
	m := newMockedEngine(t)
	acct := legacyAccount("acct-1", "mittens", "correct-horse")
	m.accounts.EXPECT().GetAccountByUsername(gomock.Any(), "mittens").Return(acct, nil)

	var sent string
	m.notifier.EXPECT().
		Send(gomock.Any(), gomock.Any(), meowauth.PurposeLoginCode, gomock.Any()).
		DoAndReturn(func(_ context.Context, got meowauth.Account, _ meowauth.Purpose, data map[string]string) error {
			assert.Equal(t, acct.ID, got.ID)
			sent = data["code"]
			return nil
		})

	require.NoError(t, m.engine.RequestEmailLogin(context.Background(), "mittens"))
	assert.Len(t, sent, 8)
}

func TestCreateAppRespectsQuota(t *testing.T) {
	m := newMockedEngine(t)
	ctx := context.Background()
	acct := legacyAccount("acct-1", "owner", "correct-horse")
	m.accounts.EXPECT().GetAccountByUsername(gomock.Any(), "owner").Return(acct, nil)
	m.accounts.EXPECT().GetAccount(gomock.Any(), acct.ID).Return(acct, nil).AnyTimes()

	res, err := m.engine.LoginPassword(ctx, "owner", "correct-horse")
	require.NoError(t, err)
	p, err := m.engine.Authorize(ctx, res.Tokens.AccessToken, meowauth.Requirement{})
	require.NoError(t, err)

	m.apps.EXPECT().CountAppsByOwner(gomock.Any(), acct.ID).Return(50, nil)
	_, err = m.engine.CreateApp(ctx, p, meowauth.CreateAppRequest{Name: "catgram"})
	assert.ErrorIs(t, err, meowauth.ErrAppLimitReached)

	m.apps.EXPECT().CountAppsByOwner(gomock.Any(), acct.ID).Return(0, nil)
	m.apps.EXPECT().CreateApp(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, app meowauth.App) error {
		assert.Equal(t, acct.ID, app.OwnerID)
		assert.NotEmpty(t, app.SecretHash)
		return nil
	})
	created, err := m.engine.CreateApp(ctx, p, meowauth.CreateAppRequest{Name: "catgram"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.Secret)
	assert.Empty(t, created.App.SecretHash)
}
