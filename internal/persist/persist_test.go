package persist

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rollbook/internal/model"
)

func openTemp(t *testing.T) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := Open(context.Background(), path, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d, path
}

func createNotes(t *testing.T, d *DB) {
	t.Helper()
	err := d.Mutate(context.Background(), "test.create", func(tx *sql.Tx) error {
		_, err := tx.Exec(`CREATE TABLE notes (id INTEGER PRIMARY KEY AUTOINCREMENT, body TEXT NOT NULL)`)
		return err
	})
	require.NoError(t, err)
}

func TestOpen_MissingFileStartsEmpty(t *testing.T) {
	d, path := openTemp(t)

	var count int
	require.NoError(t, d.QueryRow(context.Background(), "SELECT COUNT(*) FROM sqlite_master").Scan(&count))
	assert.Equal(t, 0, count)

	// Nothing is written until the first mutation.
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestOpen_InvalidDirectory(t *testing.T) {
	_, err := Open(context.Background(), "/nonexistent/dir/test.db", Options{})
	require.Error(t, err)
	assert.True(t, model.IsPersistence(err))
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "", Options{})
	require.Error(t, err)
	assert.True(t, model.IsPersistence(err))
}

func TestOpen_CorruptFileIsNotReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	garbage := []byte("this is definitely not an sqlite database file, just text padding it out")
	require.NoError(t, os.WriteFile(path, garbage, 0o644))

	_, err := Open(context.Background(), path, Options{})
	require.Error(t, err)
	assert.True(t, model.IsPersistence(err))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, garbage, data)
}

func TestMutate_FlushesAndReloads(t *testing.T) {
	ctx := context.Background()
	d, path := openTemp(t)
	createNotes(t, d)

	err := d.Mutate(ctx, "test.insert", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO notes (body) VALUES (?)", "hello")
		return err
	})
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "database file should exist after a mutation")
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary flush file should be renamed away")

	require.NoError(t, d.Close())

	reopened, err := Open(ctx, path, Options{})
	require.NoError(t, err)
	defer reopened.Close()

	var body string
	require.NoError(t, reopened.QueryRow(ctx, "SELECT body FROM notes WHERE id = 1").Scan(&body))
	assert.Equal(t, "hello", body)
}

func TestMutate_ErrorRollsBack(t *testing.T) {
	ctx := context.Background()
	d, _ := openTemp(t)
	createNotes(t, d)

	boom := errors.New("boom")
	err := d.Mutate(ctx, "test.insert", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO notes (body) VALUES ('lost')"); err != nil {
			return err
		}
		return boom
	})
	require.Error(t, err)
	assert.True(t, model.IsPersistence(err))
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, d.QueryRow(ctx, "SELECT COUNT(*) FROM notes").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestMutate_ClassifiedErrorPassesThrough(t *testing.T) {
	d, _ := openTemp(t)

	err := d.Mutate(context.Background(), "test.op", func(tx *sql.Tx) error {
		return model.NewNotFoundError("test.op", "record 9 not found")
	})
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
}

func TestPragma_ForeignKeys(t *testing.T) {
	d, _ := openTemp(t)
	assert.NoError(t, d.verifyPragma("foreign_keys", "1"))
}

func TestPragma_BusyTimeout(t *testing.T) {
	d, _ := openTemp(t)
	assert.NoError(t, d.verifyPragma("busy_timeout", "5000"))
}

func TestTimestamp_UsesClock(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 9, 30, 15, 0, time.FixedZone("PKT", 5*3600))
	d := newDB(nil, "unused.db", Options{Now: func() time.Time { return fixed }})

	assert.Equal(t, "2024-03-01 04:30:15", d.Timestamp())
}

func TestClose_NilDB(t *testing.T) {
	d := &DB{}
	assert.NoError(t, d.Close())
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, `'/tmp/o''brien/test.db.tmp'`, quoteLiteral("/tmp/o'brien/test.db.tmp"))
}

// Driver-level failure paths.

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return newDB(sqlDB, filepath.Join(t.TempDir(), "test.db"), Options{}), mock
}

func TestMutate_FlushFailureAfterCommit(t *testing.T) {
	d, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notes")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta("VACUUM INTO")).WillReturnError(errors.New("disk I/O error"))

	err := d.Mutate(context.Background(), "test.insert", func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO notes (body) VALUES (?)", "x")
		return err
	})
	require.Error(t, err)
	assert.True(t, model.IsPersistence(err))
	assert.ErrorIs(t, err, ErrFlush)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutate_CommitFailureIsNotFlushFailure(t *testing.T) {
	d, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	err := d.Mutate(context.Background(), "test.noop", func(tx *sql.Tx) error { return nil })
	require.Error(t, err)
	assert.True(t, model.IsPersistence(err))
	assert.False(t, errors.Is(err, ErrFlush))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutate_CallbackFailureRollsBackWithoutFlush(t *testing.T) {
	d, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := d.Mutate(context.Background(), "test.fail", func(tx *sql.Tx) error {
		return errors.New("constraint failed")
	})
	require.Error(t, err)
	assert.True(t, model.IsPersistence(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutate_BeginFailure(t *testing.T) {
	d, mock := newMockDB(t)

	mock.ExpectBegin().WillReturnError(errors.New("no connection"))

	err := d.Mutate(context.Background(), "test.begin", func(tx *sql.Tx) error {
		t.Fatal("callback must not run")
		return nil
	})
	require.Error(t, err)
	assert.True(t, model.IsPersistence(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
