// Package app is the boundary between the core stores and a presentation
// process. Every operation returns a result value; failures become
// {success:false, message} and are logged, never returned as errors.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/rollbook/internal/auth"
	"github.com/roach88/rollbook/internal/ledger"
	"github.com/roach88/rollbook/internal/model"
	"github.com/roach88/rollbook/internal/persist"
	"github.com/roach88/rollbook/internal/photos"
	"github.com/roach88/rollbook/internal/records"
	"github.com/roach88/rollbook/internal/schema"
)

// Config locates the persisted state.
type Config struct {
	DatabasePath string
	PhotoRoot    string
	Seed         schema.Seed
	Logger       *zap.Logger

	// Now overrides the clock for created_at values.
	Now func() time.Time
}

// Service exposes the boundary operations over one database.
type Service struct {
	db      *persist.DB
	auth    *auth.Store
	records *records.Store
	ledger  *ledger.Store
	photos  *photos.Store
	log     *zap.Logger
}

// Open loads the database, migrates it and seeds the default credential.
// The database directory is created if missing.
func Open(ctx context.Context, cfg Config) (*Service, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return nil, model.NewPersistenceError("app.open", fmt.Errorf("create data directory: %w", err))
	}

	db, err := persist.Open(ctx, cfg.DatabasePath, persist.Options{Logger: logger.Named("persist"), Now: cfg.Now})
	if err != nil {
		return nil, err
	}
	if err := schema.Ensure(ctx, db, cfg.Seed, logger.Named("schema")); err != nil {
		db.Close()
		return nil, err
	}
	return New(db, cfg.PhotoRoot, logger), nil
}

// New wraps an already migrated database.
func New(db *persist.DB, photoRoot string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:      db,
		auth:    auth.NewStore(db, logger.Named("auth")),
		records: records.NewStore(db, logger.Named("records")),
		ledger:  ledger.NewStore(db, logger.Named("ledger")),
		photos:  photos.NewStore(db, photoRoot, logger.Named("photos")),
		log:     logger,
	}
}

// Close releases the database.
func (s *Service) Close() error { return s.db.Close() }

// DB returns the underlying database handle.
func (s *Service) DB() *persist.DB { return s.db }

// Auth returns the credential store.
func (s *Service) Auth() *auth.Store { return s.auth }

// Records returns the record store.
func (s *Service) Records() *records.Store { return s.records }

// Ledger returns the payment ledger.
func (s *Service) Ledger() *ledger.Store { return s.ledger }

// Photos returns the photo store.
func (s *Service) Photos() *photos.Store { return s.photos }

// fail logs err and returns the message to show the caller.
func (s *Service) fail(op string, err error, fields ...zap.Field) string {
	fields = append(fields, zap.String("op", op), zap.String("code", string(model.CodeOf(err))), zap.Error(err))
	if model.IsAuth(err) || model.IsValidation(err) {
		s.log.Warn("operation rejected", fields...)
	} else {
		s.log.Error("operation failed", fields...)
	}
	return model.MessageOf(err)
}
