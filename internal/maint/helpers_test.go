package maint_test

import (
	"context"
	"database/sql"

	"github.com/roach88/rollbook/internal/persist"
)

func deleteCredentials(ctx context.Context, db *persist.DB) error {
	return db.Mutate(ctx, "test.delete_credentials", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM admin_users")
		return err
	})
}
