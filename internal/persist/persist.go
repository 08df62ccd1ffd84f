package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/roach88/rollbook/internal/model"
)

// ErrFlush marks a failure writing the database file after the in-memory
// transaction already committed.
var ErrFlush = errors.New("flush failed")

// Options configures a DB.
type Options struct {
	// Logger receives load and flush diagnostics. Defaults to a nop logger.
	Logger *zap.Logger

	// Now is the clock used for created_at values. Defaults to time.Now.
	Now func() time.Time
}

// DB is the single database handle shared by all stores.
// Reads may be issued at any time; writes must go through Mutate.
type DB struct {
	sql  *sql.DB
	path string
	log  *zap.Logger
	now  func() time.Time

	// mu serializes Mutate and Flush. The connection pool already has one
	// connection, but a mutation plus its flush must not interleave with
	// another mutation.
	mu sync.Mutex
}

// Open loads the database at path into memory, creating an empty one when
// the file does not exist. The directory holding path must exist.
func Open(ctx context.Context, path string, opts Options) (*DB, error) {
	if path == "" {
		return nil, model.NewPersistenceError("persist.open", errors.New("database path is empty"))
	}
	dir := filepath.Dir(path)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, model.NewPersistenceError("persist.open", fmt.Errorf("database directory %s not accessible", dir))
	}

	dsn := fmt.Sprintf("file:rollbook-%s?mode=memory&cache=shared&_foreign_keys=1&_busy_timeout=5000", uuid.NewString())
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, model.NewPersistenceError("persist.open", fmt.Errorf("open memory database: %w", err))
	}

	// The in-memory database disappears with its last connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, model.NewPersistenceError("persist.open", fmt.Errorf("connect memory database: %w", err))
	}

	d := newDB(sqlDB, path, opts)
	if err := d.load(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return d, nil
}

func newDB(sqlDB *sql.DB, path string, opts Options) *DB {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &DB{sql: sqlDB, path: path, log: logger, now: now}
}

// load copies the backing file into the in-memory database.
func (d *DB) load(ctx context.Context) error {
	info, err := os.Stat(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		d.log.Info("creating new database", zap.String("path", d.path))
		return nil
	}
	if err != nil {
		return model.NewPersistenceError("persist.load", err)
	}
	if info.IsDir() {
		return model.NewPersistenceError("persist.load", fmt.Errorf("%s is a directory", d.path))
	}

	d.log.Info("loading existing database", zap.String("path", d.path), zap.Int64("bytes", info.Size()))

	src, err := (&sqlite3.SQLiteDriver{}).Open(d.path)
	if err != nil {
		return model.NewPersistenceError("persist.load", fmt.Errorf("open %s: %w", d.path, err))
	}
	defer src.Close()

	srcConn, ok := src.(*sqlite3.SQLiteConn)
	if !ok {
		return model.NewPersistenceError("persist.load", fmt.Errorf("unexpected driver connection %T", src))
	}

	conn, err := d.sql.Conn(ctx)
	if err != nil {
		return model.NewPersistenceError("persist.load", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn any) error {
		dst, ok := driverConn.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		backup, err := dst.Backup("main", srcConn, "main")
		if err != nil {
			return fmt.Errorf("start backup: %w", err)
		}
		if _, err := backup.Step(-1); err != nil {
			backup.Finish()
			return fmt.Errorf("copy pages: %w", err)
		}
		return backup.Finish()
	})
	if err != nil {
		return model.NewPersistenceError("persist.load", fmt.Errorf("load %s: %w", d.path, err))
	}
	return nil
}

// Close releases the in-memory database. It does not flush: every committed
// mutation has already been flushed or reported as a flush failure.
func (d *DB) Close() error {
	if d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// Path returns the backing file path.
func (d *DB) Path() string {
	return d.path
}

// Now returns the current time from the configured clock, in UTC.
func (d *DB) Now() time.Time {
	return d.now().UTC()
}

// Timestamp returns Now formatted for a created_at column.
func (d *DB) Timestamp() string {
	return d.Now().Format(model.TimeLayout)
}

// Query runs a read query. Callers close the returned rows.
// Never call it from inside a Mutate callback: the only connection is held
// by the transaction.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.sql.QueryContext(ctx, query, args...)
}

// QueryRow runs a read query expected to return at most one row.
func (d *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.sql.QueryRowContext(ctx, query, args...)
}

// Mutate runs fn in a transaction, commits it and flushes the database.
// An *model.Error returned by fn is passed through unchanged; any other
// error is reported as PERSISTENCE. Either way the transaction rolls back.
func (d *DB) Mutate(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return model.NewPersistenceError(op, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		if model.CodeOf(err) != "" {
			return err
		}
		return model.NewPersistenceError(op, err)
	}

	if err := tx.Commit(); err != nil {
		return model.NewPersistenceError(op, fmt.Errorf("commit: %w", err))
	}

	if err := d.flush(ctx); err != nil {
		d.log.Error("flush after commit failed", zap.String("op", op), zap.Error(err))
		return model.NewPersistenceError(op, err)
	}
	return nil
}

// Flush writes the whole database to its backing file.
func (d *DB) Flush(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.flush(ctx); err != nil {
		return model.NewPersistenceError("persist.flush", err)
	}
	return nil
}

func (d *DB) flush(ctx context.Context) error {
	start := time.Now()
	tmp := d.path + ".tmp"

	// VACUUM INTO refuses to overwrite an existing file.
	if err := os.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove stale %s: %w", ErrFlush, tmp, err)
	}

	if _, err := d.sql.ExecContext(ctx, "VACUUM INTO "+quoteLiteral(tmp)); err != nil {
		return fmt.Errorf("%w: vacuum into %s: %w", ErrFlush, tmp, err)
	}

	if err := syncFile(tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: sync %s: %w", ErrFlush, tmp, err)
	}

	if err := os.Rename(tmp, d.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: replace %s: %w", ErrFlush, d.path, err)
	}

	// Directory fsync persists the rename; not every platform supports it.
	_ = syncFile(filepath.Dir(d.path))

	d.log.Debug("database flushed",
		zap.String("path", d.path),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// quoteLiteral renders s as an SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (d *DB) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := d.sql.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
