// Package maint holds out-of-band administrative operations that are not
// part of the running application.
package maint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/roach88/rollbook/internal/auth"
	"github.com/roach88/rollbook/internal/model"
	"github.com/roach88/rollbook/internal/persist"
	"github.com/roach88/rollbook/internal/schema"
)

// ResetReport describes what Reset removed.
type ResetReport struct {
	Records      int64  `json:"records"`
	Payments     int64  `json:"payments"`
	Photos       int64  `json:"photos"`
	PhotoDir     string `json:"photo_dir"`
	AdminCreated bool   `json:"admin_created"`
}

// Reset deletes every record, payment and photo row, restarts their id
// sequences and removes the photo tree. Credentials are kept; if none exist
// the seed credential is created.
func Reset(ctx context.Context, db *persist.DB, photoRoot string, seed schema.Seed, logger *zap.Logger) (ResetReport, error) {
	const op = "maint.reset"
	if logger == nil {
		logger = zap.NewNop()
	}

	report := ResetReport{PhotoDir: photoRoot}
	err := db.Mutate(ctx, op, func(tx *sql.Tx) error {
		// Children first: payments and photos reference users.
		steps := []struct {
			table string
			count *int64
		}{
			{"payments", &report.Payments},
			{"user_photos", &report.Photos},
			{"users", &report.Records},
		}
		for _, step := range steps {
			res, err := tx.ExecContext(ctx, "DELETE FROM "+step.table)
			if err != nil {
				return fmt.Errorf("clear %s: %w", step.table, err)
			}
			if *step.count, err = res.RowsAffected(); err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM sqlite_sequence WHERE name IN ('users', 'user_photos', 'payments')",
		); err != nil {
			return fmt.Errorf("reset sequences: %w", err)
		}

		created, err := auth.SeedDefault(ctx, tx, seed.Username, seed.Password, seed.Cost, db.Timestamp())
		if err != nil {
			return err
		}
		report.AdminCreated = created
		return nil
	})
	if err != nil {
		return ResetReport{}, err
	}

	if err := os.RemoveAll(photoRoot); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return report, model.NewPersistenceError(op, fmt.Errorf("remove photo directory: %w", err))
	}

	logger.Info("database reset",
		zap.Int64("records", report.Records),
		zap.Int64("payments", report.Payments),
		zap.Int64("photos", report.Photos),
		zap.Bool("admin_created", report.AdminCreated),
	)
	return report, nil
}
