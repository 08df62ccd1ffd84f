// Package auth verifies administrative logins against bcrypt hashes stored
// in the admin_users table.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/rollbook/internal/model"
	"github.com/roach88/rollbook/internal/persist"
)

// Default administrative login seeded into an empty credential table.
const (
	DefaultUsername = "admin"
	DefaultPassword = "admin123"
)

// HashPassword returns the bcrypt hash of password. A cost of 0 selects
// bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// dummyHash is compared against when the username does not exist, so both
// failure paths spend a bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("rollbook-no-such-user"), bcrypt.DefaultCost)
	if err != nil {
		return nil
	}
	return hash
})

// Store reads and updates credentials.
type Store struct {
	db  *persist.DB
	log *zap.Logger
}

// NewStore creates a credential store on db.
func NewStore(db *persist.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, log: logger}
}

// VerifyLogin checks username and password. Any mismatch, including an
// unknown username, returns the same AUTH error.
func (s *Store) VerifyLogin(ctx context.Context, username, password string) (model.Identity, error) {
	const op = "auth.login"

	var cred model.Credential
	err := s.db.QueryRow(ctx, `
		SELECT id, username, password_hash
		FROM admin_users
		WHERE username = ?
	`, username).Scan(&cred.ID, &cred.Username, &cred.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return model.Identity{}, model.NewAuthError(op)
	}
	if err != nil {
		return model.Identity{}, model.NewPersistenceError(op, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		s.log.Debug("password mismatch", zap.Int64("credential_id", cred.ID))
		return model.Identity{}, model.NewAuthError(op)
	}

	return model.Identity{ID: cred.ID, Username: cred.Username}, nil
}

// SetPassword replaces the password of an existing credential.
func (s *Store) SetPassword(ctx context.Context, username, password string, cost int) error {
	const op = "auth.set_password"

	if strings.TrimSpace(password) == "" {
		return model.NewValidationError(op, "password is required")
	}
	hash, err := HashPassword(password, cost)
	if err != nil {
		return model.NewValidationError(op, err.Error())
	}

	return s.db.Mutate(ctx, op, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE admin_users SET password_hash = ? WHERE username = ?`, hash, username)
		if err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return model.NewNotFoundError(op, fmt.Sprintf("user %q not found", username))
		}
		return nil
	})
}

// SeedDefault inserts the given credential when admin_users is empty.
// It runs inside the caller's transaction and reports whether it inserted.
func SeedDefault(ctx context.Context, tx *sql.Tx, username, password string, cost int, createdAt string) (bool, error) {
	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM admin_users").Scan(&count); err != nil {
		return false, fmt.Errorf("count credentials: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	hash, err := HashPassword(password, cost)
	if err != nil {
		return false, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO admin_users (username, password_hash, created_at)
		VALUES (?, ?, ?)
	`, username, hash, createdAt)
	if err != nil {
		return false, fmt.Errorf("insert default credential: %w", err)
	}
	return true, nil
}
