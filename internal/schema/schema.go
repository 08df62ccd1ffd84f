// Package schema creates and upgrades the rollbook database schema.
//
// Schema version tracking (PRAGMA user_version):
//
//	0 - unversioned: empty, or created before versioning existed
//	1 - base tables and indexes
//	2 - user_photos.original_filename and user_photos.created_at present
//
// Every migration step is a no-op by inspection when its change is already
// there, so databases created before versioning are adopted in place.
package schema

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/rollbook/internal/auth"
	"github.com/roach88/rollbook/internal/persist"
)

//go:embed schema.sql
var schemaSQL string

// CurrentVersion is the user_version written after all migrations.
const CurrentVersion = 2

// Seed is the credential inserted when admin_users is empty.
type Seed struct {
	Username string
	Password string
	Cost     int // bcrypt cost, 0 for default
}

// DefaultSeed returns the stock administrative login.
func DefaultSeed() Seed {
	return Seed{Username: auth.DefaultUsername, Password: auth.DefaultPassword}
}

type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sql.Tx) error
}

var migrations = []migration{
	{version: 1, name: "base tables", apply: createBaseTables},
	{version: 2, name: "photo filename and timestamp columns", apply: addPhotoColumns},
}

// Ensure migrates db to CurrentVersion and seeds the default credential,
// all in one transaction followed by one flush. Safe to call repeatedly.
func Ensure(ctx context.Context, db *persist.DB, seed Seed, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	return db.Mutate(ctx, "schema.ensure", func(tx *sql.Tx) error {
		version, err := userVersion(ctx, tx)
		if err != nil {
			return err
		}
		if version > CurrentVersion {
			return fmt.Errorf("database schema version %d is newer than supported version %d", version, CurrentVersion)
		}

		for _, m := range migrations {
			if m.version <= version {
				continue
			}
			if err := m.apply(ctx, tx); err != nil {
				return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
			}
			logger.Info("schema migrated", zap.Int("version", m.version), zap.String("step", m.name))
		}

		if version != CurrentVersion {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", CurrentVersion)); err != nil {
				return fmt.Errorf("set user_version: %w", err)
			}
		}

		inserted, err := auth.SeedDefault(ctx, tx, seed.Username, seed.Password, seed.Cost, db.Timestamp())
		if err != nil {
			return err
		}
		if inserted {
			logger.Info("default credential created", zap.String("username", seed.Username))
		}
		return nil
	})
}

// Version returns the database's user_version.
func Version(ctx context.Context, db *persist.DB) (int, error) {
	var version int
	if err := db.QueryRow(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

func userVersion(ctx context.Context, tx *sql.Tx) (int, error) {
	var version int
	if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

func createBaseTables(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// addPhotoColumns adds the columns older user_photos tables lack. SQLite
// cannot ADD COLUMN with a CURRENT_TIMESTAMP default, so upgraded rows keep
// a NULL created_at and new rows get an explicit timestamp from the store.
func addPhotoColumns(ctx context.Context, tx *sql.Tx) error {
	cols, err := columns(ctx, tx, "user_photos")
	if err != nil {
		return err
	}

	adds := []struct{ name, ddl string }{
		{"original_filename", "ALTER TABLE user_photos ADD COLUMN original_filename TEXT"},
		{"created_at", "ALTER TABLE user_photos ADD COLUMN created_at DATETIME"},
	}
	for _, add := range adds {
		if cols[add.name] {
			continue
		}
		if _, err := tx.ExecContext(ctx, add.ddl); err != nil {
			return fmt.Errorf("add column %s: %w", add.name, err)
		}
	}
	return nil
}

// columns returns the set of column names of table.
func columns(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table info: %w", err)
	}
	return cols, nil
}
