// Package records owns person records (the users table).
//
// Records are created and fully replaced; there is no delete. Name and
// mobile are validated here, not left to callers. Text fields are stored
// NFC-normalized and empty optional fields are stored as NULL.
package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/rollbook/internal/model"
	"github.com/roach88/rollbook/internal/persist"
)

const selectColumns = `
	id, name, mobile, father_name, father_mobile, relative_name, relative_mobile,
	spouse_name, spouse_mobile, id_number, b_number, s_id_number, v_number,
	admission_date, validity_date, total_amount, created_at`

// Store reads and writes records.
type Store struct {
	db  *persist.DB
	log *zap.Logger
}

// NewStore creates a record store on db.
func NewStore(db *persist.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, log: logger}
}

// Create validates and inserts r, returning the new id. r.ID and
// r.CreatedAt are ignored.
func (s *Store) Create(ctx context.Context, r model.Record) (int64, error) {
	const op = "records.create"

	r = normalize(r)
	if err := model.Validate(op, r); err != nil {
		return 0, err
	}

	var id int64
	err := s.db.Mutate(ctx, op, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO users (
				name, mobile, father_name, father_mobile, relative_name, relative_mobile,
				spouse_name, spouse_mobile, id_number, b_number, s_id_number, v_number,
				admission_date, validity_date, total_amount, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			r.Name, r.Mobile,
			nullable(r.FatherName), nullable(r.FatherMobile),
			nullable(r.RelativeName), nullable(r.RelativeMobile),
			nullable(r.SpouseName), nullable(r.SpouseMobile),
			nullable(r.IDNumber), nullable(r.BNumber), nullable(r.SIDNumber), nullable(r.VNumber),
			nullable(r.AdmissionDate), nullable(r.ValidityDate),
			r.TotalAmount, s.db.Timestamp(),
		)
		if err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Debug("record created", zap.Int64("record_id", id))
	return id, nil
}

// List returns all records, newest first.
func (s *Store) List(ctx context.Context) ([]model.Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+selectColumns+`
		FROM users
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, model.NewPersistenceError("records.list", fmt.Errorf("query records: %w", err))
	}
	defer rows.Close()

	records := []model.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, model.NewPersistenceError("records.list", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewPersistenceError("records.list", fmt.Errorf("iterate records: %w", err))
	}
	return records, nil
}

// Get returns the record with id, or a NOT_FOUND error.
func (s *Store) Get(ctx context.Context, id int64) (model.Record, error) {
	const op = "records.get"

	row := s.db.QueryRow(ctx, `
		SELECT `+selectColumns+`
		FROM users
		WHERE id = ?
	`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, model.NewNotFoundError(op, fmt.Sprintf("record %d not found", id))
	}
	if err != nil {
		return model.Record{}, model.NewPersistenceError(op, err)
	}
	return r, nil
}

// Update replaces every mutable field of record id with the values in r.
// Fields left empty in r are cleared.
func (s *Store) Update(ctx context.Context, id int64, r model.Record) error {
	const op = "records.update"

	r = normalize(r)
	if err := model.Validate(op, r); err != nil {
		return err
	}

	err := s.db.Mutate(ctx, op, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE users SET
				name = ?, mobile = ?, father_name = ?, father_mobile = ?,
				relative_name = ?, relative_mobile = ?, spouse_name = ?, spouse_mobile = ?,
				id_number = ?, b_number = ?, s_id_number = ?, v_number = ?,
				admission_date = ?, validity_date = ?, total_amount = ?
			WHERE id = ?
		`,
			r.Name, r.Mobile,
			nullable(r.FatherName), nullable(r.FatherMobile),
			nullable(r.RelativeName), nullable(r.RelativeMobile),
			nullable(r.SpouseName), nullable(r.SpouseMobile),
			nullable(r.IDNumber), nullable(r.BNumber), nullable(r.SIDNumber), nullable(r.VNumber),
			nullable(r.AdmissionDate), nullable(r.ValidityDate),
			r.TotalAmount, id,
		)
		if err != nil {
			return fmt.Errorf("update record: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return model.NewNotFoundError(op, fmt.Sprintf("record %d not found", id))
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Debug("record updated", zap.Int64("record_id", id))
	return nil
}

// RowQuerier is satisfied by *sql.Tx and *sql.DB.
type RowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Exists reports whether record id exists. Stores that attach rows to a
// record call it inside their own transaction.
func Exists(ctx context.Context, q RowQuerier, id int64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check record %d: %w", id, err)
	}
	return true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (model.Record, error) {
	var (
		r         model.Record
		optionals [12]sql.NullString
		total     sql.NullFloat64
		createdAt sql.NullTime
	)
	err := sc.Scan(
		&r.ID, &r.Name, &r.Mobile,
		&optionals[0], &optionals[1], &optionals[2], &optionals[3],
		&optionals[4], &optionals[5], &optionals[6], &optionals[7],
		&optionals[8], &optionals[9], &optionals[10], &optionals[11],
		&total, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Record{}, err
		}
		return model.Record{}, fmt.Errorf("scan record: %w", err)
	}

	targets := []*string{
		&r.FatherName, &r.FatherMobile, &r.RelativeName, &r.RelativeMobile,
		&r.SpouseName, &r.SpouseMobile, &r.IDNumber, &r.BNumber,
		&r.SIDNumber, &r.VNumber, &r.AdmissionDate, &r.ValidityDate,
	}
	for i, dst := range targets {
		*dst = optionals[i].String
	}
	r.TotalAmount = total.Float64
	r.CreatedAt = createdAt.Time
	return r, nil
}

func normalize(r model.Record) model.Record {
	fields := []*string{
		&r.Name, &r.Mobile, &r.FatherName, &r.FatherMobile,
		&r.RelativeName, &r.RelativeMobile, &r.SpouseName, &r.SpouseMobile,
		&r.IDNumber, &r.BNumber, &r.SIDNumber, &r.VNumber,
		&r.AdmissionDate, &r.ValidityDate,
	}
	for _, f := range fields {
		*f = norm.NFC.String(*f)
	}
	return r
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
