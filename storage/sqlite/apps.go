package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/meowauth"
)

const appColumns = `id, owner_id, name, description, secret_hash, first_party, allowed_scopes, created_at`

func scanApp(row rowScanner) (meowauth.App, error) {
	var (
		app        meowauth.App
		firstParty int
		scopes     string
		createdAt  int64
	)
	if err := row.Scan(&app.ID, &app.OwnerID, &app.Name, &app.Description, &app.SecretHash, &firstParty, &scopes, &createdAt); err != nil {
		return meowauth.App{}, err
	}
	app.FirstParty = firstParty != 0
	app.AllowedScopes = splitSet(scopes)
	app.CreatedAt = fromMillis(createdAt)
	return app, nil
}

// CreateApp inserts an app with its redirects and bans.
func (s *Store) CreateApp(ctx context.Context, app meowauth.App) error {
	if strings.TrimSpace(app.ID) == "" || strings.TrimSpace(app.OwnerID) == "" {
		return fmt.Errorf("app id and owner are required")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO apps (`+appColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			app.ID,
			app.OwnerID,
			app.Name,
			app.Description,
			app.SecretHash,
			boolInt(app.FirstParty),
			joinSet(app.AllowedScopes),
			toMillis(app.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert app: %w", err)
		}
		return writeAppSets(ctx, tx, app)
	})
}

// GetApp returns meowauth.ErrAppNotFound when no row matches.
func (s *Store) GetApp(ctx context.Context, id string) (meowauth.App, error) {
	app, err := scanApp(s.sqlDB.QueryRowContext(ctx, `SELECT `+appColumns+` FROM apps WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return meowauth.App{}, meowauth.ErrAppNotFound
		}
		return meowauth.App{}, fmt.Errorf("get app: %w", err)
	}
	if err := s.loadAppSets(ctx, &app); err != nil {
		return meowauth.App{}, err
	}
	return app, nil
}

// ListAppsByOwner returns the owner's apps, oldest first.
func (s *Store) ListAppsByOwner(ctx context.Context, ownerID string) ([]meowauth.App, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+appColumns+` FROM apps WHERE owner_id = ? ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	var apps []meowauth.App
	for rows.Next() {
		app, err := scanApp(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan app: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	for i := range apps {
		if err := s.loadAppSets(ctx, &apps[i]); err != nil {
			return nil, err
		}
	}
	return apps, nil
}

func (s *Store) CountAppsByOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM apps WHERE owner_id = ?`, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count apps: %w", err)
	}
	return n, nil
}

// UpdateApp rewrites every mutable column and replaces redirects and bans.
func (s *Store) UpdateApp(ctx context.Context, app meowauth.App) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE apps SET owner_id = ?, name = ?, description = ?, secret_hash = ?, first_party = ?, allowed_scopes = ?
WHERE id = ?`,
			app.OwnerID,
			app.Name,
			app.Description,
			app.SecretHash,
			boolInt(app.FirstParty),
			joinSet(app.AllowedScopes),
			app.ID,
		)
		if err != nil {
			return fmt.Errorf("update app: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("update app: %w", err)
		} else if n == 0 {
			return meowauth.ErrAppNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM app_redirects WHERE app_id = ?`, app.ID); err != nil {
			return fmt.Errorf("clear redirects: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM app_bans WHERE app_id = ?`, app.ID); err != nil {
			return fmt.Errorf("clear bans: %w", err)
		}
		return writeAppSets(ctx, tx, app)
	})
}

// DeleteApp removes the app; redirects, bans and grants cascade.
func (s *Store) DeleteApp(ctx context.Context, id string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM apps WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete app: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete app: %w", err)
	}
	if n == 0 {
		return meowauth.ErrAppNotFound
	}
	return nil
}

func writeAppSets(ctx context.Context, tx *sql.Tx, app meowauth.App) error {
	for _, r := range app.AllowedRedirects {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO app_redirects (app_id, redirect) VALUES (?, ?)`, app.ID, r); err != nil {
			return fmt.Errorf("insert redirect: %w", err)
		}
	}
	for _, id := range app.Bans {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO app_bans (app_id, account_id) VALUES (?, ?)`, app.ID, id); err != nil {
			return fmt.Errorf("insert ban: %w", err)
		}
	}
	return nil
}

func (s *Store) loadAppSets(ctx context.Context, app *meowauth.App) error {
	redirects, err := s.queryStrings(ctx, `SELECT redirect FROM app_redirects WHERE app_id = ? ORDER BY redirect`, app.ID)
	if err != nil {
		return fmt.Errorf("list redirects: %w", err)
	}
	bans, err := s.queryStrings(ctx, `SELECT account_id FROM app_bans WHERE app_id = ? ORDER BY account_id`, app.ID)
	if err != nil {
		return fmt.Errorf("list bans: %w", err)
	}
	app.AllowedRedirects = redirects
	app.Bans = bans
	return nil
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
