package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/meowauth"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "meowauth.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func testAccount(id, username string) meowauth.Account {
	return meowauth.Account{
		ID:       id,
		Username: username,
		Methods: []meowauth.AuthMethod{
			{Type: meowauth.MethodPassword, Scheme: "scrypt", Material: "hash"},
		},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestStoreDBNilSafe(t *testing.T) {
	var store *Store
	assert.Nil(t, store.DB())
	assert.NoError(t, store.Close())
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meowauth.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.CreateAccount(context.Background(), testAccount("a1", "kit")))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()
	got, err := second.GetAccount(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "kit", got.Username)
}

func TestExtractUpMigration(t *testing.T) {
	got := extractUpMigration("-- +migrate Up\nCREATE TABLE x (id TEXT);\n-- +migrate Down\nDROP TABLE x;\n")
	assert.Contains(t, got, "CREATE TABLE x")
	assert.NotContains(t, got, "DROP TABLE")
	assert.Equal(t, "SELECT 1;", extractUpMigration("SELECT 1;"))
}

func TestAccountRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)

	acct := testAccount("a1", "Whiskers")
	acct.Methods = append(acct.Methods, meowauth.AuthMethod{Type: meowauth.MethodEmail, Scheme: meowauth.EmailUnverified, Material: "w@example.com"})
	acct.PendingApproval = true
	require.NoError(t, store.CreateAccount(ctx, acct))

	got, err := store.GetAccountByUsername(ctx, "whiskers")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, "Whiskers", got.Username)
	assert.True(t, got.PendingApproval)
	assert.Equal(t, "w@example.com", got.Email())
	assert.True(t, got.CreatedAt.Equal(acct.CreatedAt))
	assert.True(t, got.BannedUntil.IsZero())

	pw, ok := got.Method(meowauth.MethodPassword)
	require.True(t, ok)
	assert.Equal(t, "hash", pw.Material)
}

func TestCreateAccountDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)

	require.NoError(t, store.CreateAccount(ctx, testAccount("a1", "kit")))
	err := store.CreateAccount(ctx, testAccount("a2", "KIT"))
	require.ErrorIs(t, err, meowauth.ErrAccountExists)
}

func TestGetAccountNotFound(t *testing.T) {
	store := openTempStore(t)

	_, err := store.GetAccount(context.Background(), "missing")
	require.ErrorIs(t, err, meowauth.ErrAccountNotFound)
	_, err = store.GetAccountByUsername(context.Background(), "missing")
	require.ErrorIs(t, err, meowauth.ErrAccountNotFound)
}

func TestMethodsReplaceAndRemove(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)
	require.NoError(t, store.CreateAccount(ctx, testAccount("a1", "kit")))

	require.NoError(t, store.UpdatePassword(ctx, "a1", "bcrypt", "new-hash"))
	require.NoError(t, store.SetMethod(ctx, "a1", meowauth.AuthMethod{Type: meowauth.MethodTOTP, Scheme: "SHA1", Material: "SECRET"}))

	got, err := store.GetAccount(ctx, "a1")
	require.NoError(t, err)
	pw, _ := got.Method(meowauth.MethodPassword)
	assert.Equal(t, "bcrypt", pw.Scheme)
	assert.Equal(t, "new-hash", pw.Material)
	assert.True(t, got.TOTPEnabled())

	require.NoError(t, store.RemoveMethod(ctx, "a1", meowauth.MethodTOTP))
	require.NoError(t, store.RemoveMethod(ctx, "a1", meowauth.MethodTOTP))
	got, err = store.GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, got.TOTPEnabled())

	err = store.SetMethod(ctx, "missing", meowauth.AuthMethod{Type: meowauth.MethodTOTP, Material: "x"})
	require.ErrorIs(t, err, meowauth.ErrAccountNotFound)
}

func TestRecoveryCodesSingleUse(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)
	require.NoError(t, store.CreateAccount(ctx, testAccount("a1", "kit")))
	require.NoError(t, store.SetRecoveryCodes(ctx, "a1", []string{"h1", "h2", "h3"}))

	ok, err := store.ConsumeRecoveryCode(ctx, "a1", "h2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ConsumeRecoveryCode(ctx, "a1", "h2")
	require.NoError(t, err)
	assert.False(t, ok, "a spent code must not verify twice")

	got, err := store.GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"h1", "h3"}, got.RecoveryCodes)

	require.NoError(t, store.SetRecoveryCodes(ctx, "a1", nil))
	got, err = store.GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, got.RecoveryCodes)
}

func TestConcurrentRecoveryCodeHasSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)
	require.NoError(t, store.CreateAccount(ctx, testAccount("a1", "kit")))
	require.NoError(t, store.SetRecoveryCodes(ctx, "a1", []string{"h1"}))

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.ConsumeRecoveryCode(ctx, "a1", "h1")
			if err != nil {
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestAccountStanding(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)
	require.NoError(t, store.CreateAccount(ctx, testAccount("a1", "kit")))

	until := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetBan(ctx, "a1", until, "spam"))
	require.NoError(t, store.SetPendingApproval(ctx, "a1", true))
	require.NoError(t, store.MarkDeleted(ctx, "a1"))

	got, err := store.GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, got.BannedUntil.Equal(until))
	assert.Equal(t, "spam", got.BanReason)
	assert.True(t, got.PendingApproval)
	assert.True(t, got.Deleted)

	require.ErrorIs(t, store.SetBan(ctx, "missing", until, ""), meowauth.ErrAccountNotFound)
}
