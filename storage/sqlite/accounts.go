package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/meowauth"
)

const accountColumns = `id, username, banned_until, ban_reason, deleted, pending_approval, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (meowauth.Account, error) {
	var (
		acct        meowauth.Account
		bannedUntil sql.NullInt64
		deleted     int
		pending     int
		createdAt   int64
	)
	if err := row.Scan(&acct.ID, &acct.Username, &bannedUntil, &acct.BanReason, &deleted, &pending, &createdAt); err != nil {
		return meowauth.Account{}, err
	}
	if bannedUntil.Valid {
		acct.BannedUntil = fromMillis(bannedUntil.Int64)
	}
	acct.Deleted = deleted != 0
	acct.PendingApproval = pending != 0
	acct.CreatedAt = fromMillis(createdAt)
	return acct, nil
}

// CreateAccount inserts the account with its methods and recovery codes. A
// taken username returns meowauth.ErrAccountExists.
func (s *Store) CreateAccount(ctx context.Context, acct meowauth.Account) error {
	if strings.TrimSpace(acct.ID) == "" || strings.TrimSpace(acct.Username) == "" {
		return fmt.Errorf("account id and username are required")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			acct.ID,
			acct.Username,
			nullMillis(acct.BannedUntil),
			acct.BanReason,
			boolInt(acct.Deleted),
			boolInt(acct.PendingApproval),
			toMillis(acct.CreatedAt),
		)
		if err != nil {
			if isConstraintError(err) {
				return meowauth.ErrAccountExists
			}
			return fmt.Errorf("insert account: %w", err)
		}
		for _, m := range acct.Methods {
			if err := putMethod(ctx, tx, acct.ID, m); err != nil {
				return err
			}
		}
		return insertRecoveryCodes(ctx, tx, acct.ID, acct.RecoveryCodes)
	})
}

// GetAccount loads an account with its methods and unused recovery codes.
func (s *Store) GetAccount(ctx context.Context, id string) (meowauth.Account, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return s.loadAccount(ctx, row)
}

// GetAccountByUsername matches usernames case-insensitively.
func (s *Store) GetAccountByUsername(ctx context.Context, username string) (meowauth.Account, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username)
	return s.loadAccount(ctx, row)
}

func (s *Store) loadAccount(ctx context.Context, row *sql.Row) (meowauth.Account, error) {
	acct, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return meowauth.Account{}, meowauth.ErrAccountNotFound
		}
		return meowauth.Account{}, fmt.Errorf("get account: %w", err)
	}

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT type, scheme, material FROM auth_methods WHERE account_id = ? ORDER BY type`, acct.ID)
	if err != nil {
		return meowauth.Account{}, fmt.Errorf("list methods: %w", err)
	}
	for rows.Next() {
		var m meowauth.AuthMethod
		var typ string
		if err := rows.Scan(&typ, &m.Scheme, &m.Material); err != nil {
			_ = rows.Close()
			return meowauth.Account{}, fmt.Errorf("scan method: %w", err)
		}
		m.Type = meowauth.MethodType(typ)
		acct.Methods = append(acct.Methods, m)
	}
	if err := rows.Close(); err != nil {
		return meowauth.Account{}, err
	}

	codes, err := s.sqlDB.QueryContext(ctx, `SELECT hash FROM recovery_codes WHERE account_id = ? ORDER BY hash`, acct.ID)
	if err != nil {
		return meowauth.Account{}, fmt.Errorf("list recovery codes: %w", err)
	}
	defer codes.Close()
	for codes.Next() {
		var hash string
		if err := codes.Scan(&hash); err != nil {
			return meowauth.Account{}, fmt.Errorf("scan recovery code: %w", err)
		}
		acct.RecoveryCodes = append(acct.RecoveryCodes, hash)
	}
	return acct, codes.Err()
}

// UpdatePassword replaces the password method.
func (s *Store) UpdatePassword(ctx context.Context, accountID, scheme, material string) error {
	return s.SetMethod(ctx, accountID, meowauth.AuthMethod{
		Type:     meowauth.MethodPassword,
		Scheme:   scheme,
		Material: material,
	})
}

// SetMethod inserts or replaces the method of the same type.
func (s *Store) SetMethod(ctx context.Context, accountID string, method meowauth.AuthMethod) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireAccount(ctx, tx, accountID); err != nil {
			return err
		}
		return putMethod(ctx, tx, accountID, method)
	})
}

func putMethod(ctx context.Context, tx *sql.Tx, accountID string, m meowauth.AuthMethod) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO auth_methods (account_id, type, scheme, material) VALUES (?, ?, ?, ?)
ON CONFLICT (account_id, type) DO UPDATE SET scheme = excluded.scheme, material = excluded.material`,
		accountID, string(m.Type), m.Scheme, m.Material)
	if err != nil {
		return fmt.Errorf("put method: %w", err)
	}
	return nil
}

// RemoveMethod deletes the method of type t. A missing method is not an
// error.
func (s *Store) RemoveMethod(ctx context.Context, accountID string, t meowauth.MethodType) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM auth_methods WHERE account_id = ? AND type = ?`, accountID, string(t)); err != nil {
		return fmt.Errorf("remove method: %w", err)
	}
	return nil
}

// SetRecoveryCodes replaces every recovery code of the account. A nil slice
// clears them.
func (s *Store) SetRecoveryCodes(ctx context.Context, accountID string, hashes []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireAccount(ctx, tx, accountID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM recovery_codes WHERE account_id = ?`, accountID); err != nil {
			return fmt.Errorf("clear recovery codes: %w", err)
		}
		return insertRecoveryCodes(ctx, tx, accountID, hashes)
	})
}

func insertRecoveryCodes(ctx context.Context, tx *sql.Tx, accountID string, hashes []string) error {
	for _, h := range hashes {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO recovery_codes (account_id, hash) VALUES (?, ?)`, accountID, h); err != nil {
			return fmt.Errorf("insert recovery code: %w", err)
		}
	}
	return nil
}

// ConsumeRecoveryCode deletes a matching code. Of two concurrent callers
// presenting the same code only one sees true.
func (s *Store) ConsumeRecoveryCode(ctx context.Context, accountID, hash string) (bool, error) {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM recovery_codes WHERE account_id = ? AND hash = ?`, accountID, hash)
	if err != nil {
		return false, fmt.Errorf("consume recovery code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume recovery code: %w", err)
	}
	return n == 1, nil
}

// SetBan bans the account until the given time. A zero until lifts the ban.
func (s *Store) SetBan(ctx context.Context, accountID string, until time.Time, reason string) error {
	return s.updateAccount(ctx, `UPDATE accounts SET banned_until = ?, ban_reason = ? WHERE id = ?`, nullMillis(until), reason, accountID)
}

// SetPendingApproval toggles the age gate.
func (s *Store) SetPendingApproval(ctx context.Context, accountID string, pending bool) error {
	return s.updateAccount(ctx, `UPDATE accounts SET pending_approval = ? WHERE id = ?`, boolInt(pending), accountID)
}

// MarkDeleted soft-deletes the account. Its username stays reserved.
func (s *Store) MarkDeleted(ctx context.Context, accountID string) error {
	return s.updateAccount(ctx, `UPDATE accounts SET deleted = 1 WHERE id = ?`, accountID)
}

func (s *Store) updateAccount(ctx context.Context, query string, args ...any) error {
	res, err := s.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if n == 0 {
		return meowauth.ErrAccountNotFound
	}
	return nil
}

func requireAccount(ctx context.Context, tx *sql.Tx, accountID string) error {
	var found int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = ?`, accountID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return meowauth.ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("check account: %w", err)
	}
	return nil
}

// GetGrant returns the grant of accountID to appID, if any.
func (s *Store) GetGrant(ctx context.Context, accountID, appID string) (meowauth.Grant, bool, error) {
	var (
		scopes    string
		updatedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `SELECT scopes, updated_at FROM grants WHERE account_id = ? AND app_id = ?`, accountID, appID).
		Scan(&scopes, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return meowauth.Grant{}, false, nil
	}
	if err != nil {
		return meowauth.Grant{}, false, fmt.Errorf("get grant: %w", err)
	}
	return meowauth.Grant{
		AccountID: accountID,
		AppID:     appID,
		Scopes:    splitSet(scopes),
		UpdatedAt: fromMillis(updatedAt),
	}, true, nil
}

// PutGrant inserts or replaces a grant.
func (s *Store) PutGrant(ctx context.Context, g meowauth.Grant) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO grants (account_id, app_id, scopes, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (account_id, app_id) DO UPDATE SET scopes = excluded.scopes, updated_at = excluded.updated_at`,
		g.AccountID, g.AppID, joinSet(g.Scopes), toMillis(g.UpdatedAt))
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("put grant: unknown account or app: %w", err)
		}
		return fmt.Errorf("put grant: %w", err)
	}
	return nil
}

// DeleteGrant removes a grant and reports whether one existed.
func (s *Store) DeleteGrant(ctx context.Context, accountID, appID string) (bool, error) {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM grants WHERE account_id = ? AND app_id = ?`, accountID, appID)
	if err != nil {
		return false, fmt.Errorf("delete grant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete grant: %w", err)
	}
	return n > 0, nil
}

// DeleteAppGrants removes every grant to appID.
func (s *Store) DeleteAppGrants(ctx context.Context, appID string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM grants WHERE app_id = ?`, appID); err != nil {
		return fmt.Errorf("delete app grants: %w", err)
	}
	return nil
}

// ListGrants returns the grants of accountID ordered by app id.
func (s *Store) ListGrants(ctx context.Context, accountID string) ([]meowauth.Grant, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT app_id, scopes, updated_at FROM grants WHERE account_id = ? ORDER BY app_id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var out []meowauth.Grant
	for rows.Next() {
		g := meowauth.Grant{AccountID: accountID}
		var scopes string
		var updatedAt int64
		if err := rows.Scan(&g.AppID, &scopes, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		g.Scopes = splitSet(scopes)
		g.UpdatedAt = fromMillis(updatedAt)
		out = append(out, g)
	}
	return out, rows.Err()
}
