package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/rollbook/internal/persist"
	"github.com/roach88/rollbook/internal/schema"
)

// TestSeed is the credential OpenDB seeds: admin / admin123 at minimum
// bcrypt cost.
func TestSeed() schema.Seed {
	return schema.Seed{Username: "admin", Password: "admin123", Cost: bcrypt.MinCost}
}

// OpenDB opens a migrated database in a fresh temp directory and returns it
// with its file path. A nil clock uses wall time. The database is closed
// when the test ends.
func OpenDB(t testing.TB, clock *Clock) (*persist.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.db")
	return OpenDBAt(t, path, clock), path
}

// OpenDBAt is OpenDB for a caller-chosen path, e.g. to reload a flushed file.
func OpenDBAt(t testing.TB, path string, clock *Clock) *persist.DB {
	t.Helper()
	opts := persist.Options{}
	if clock != nil {
		opts.Now = clock.Now
	}

	db, err := persist.Open(context.Background(), path, opts)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := schema.Ensure(context.Background(), db, TestSeed(), nil); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return db
}
