// Package ledger owns payments. The ledger of a record is append-only: there
// is no update or delete. Amount received is the sum of a record's payments
// and remaining is the record's total minus that sum, which may go negative.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/roach88/rollbook/internal/model"
	"github.com/roach88/rollbook/internal/persist"
	"github.com/roach88/rollbook/internal/records"
)

// RecentLimit is how many payments DashboardStats carries.
const RecentLimit = 5

// Store appends and aggregates payments.
type Store struct {
	db  *persist.DB
	log *zap.Logger
}

// NewStore creates a ledger on db.
func NewStore(db *persist.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, log: logger}
}

// AddPayment appends a payment to record recordID and returns its id.
// The record must exist. Negative amounts are accepted.
func (s *Store) AddPayment(ctx context.Context, recordID int64, amount float64, date string) (int64, error) {
	const op = "ledger.add_payment"

	p := model.Payment{RecordID: recordID, Amount: amount, PaymentDate: date}
	if err := model.Validate(op, p); err != nil {
		return 0, err
	}

	var id int64
	err := s.db.Mutate(ctx, op, func(tx *sql.Tx) error {
		ok, err := records.Exists(ctx, tx, recordID)
		if err != nil {
			return err
		}
		if !ok {
			return model.NewNotFoundError(op, fmt.Sprintf("record %d not found", recordID))
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO payments (user_id, amount, payment_date, created_at)
			VALUES (?, ?, ?, ?)
		`, p.RecordID, p.Amount, p.PaymentDate, s.db.Timestamp())
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
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

	s.log.Debug("payment added", zap.Int64("record_id", recordID), zap.Int64("payment_id", id))
	return id, nil
}

// ListForRecord returns the payments of recordID, latest payment date first.
func (s *Store) ListForRecord(ctx context.Context, recordID int64) ([]model.Payment, error) {
	return s.queryPayments(ctx, "ledger.list", `
		SELECT id, user_id, amount, payment_date, created_at
		FROM payments
		WHERE user_id = ?
		ORDER BY payment_date DESC, id DESC
	`, recordID)
}

// Recent returns the most recently created payments across all records.
func (s *Store) Recent(ctx context.Context, limit int) ([]model.Payment, error) {
	return s.queryPayments(ctx, "ledger.recent", `
		SELECT id, user_id, amount, payment_date, created_at
		FROM payments
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
}

// All returns every payment ordered by record then payment date.
func (s *Store) All(ctx context.Context) ([]model.Payment, error) {
	return s.queryPayments(ctx, "ledger.all", `
		SELECT id, user_id, amount, payment_date, created_at
		FROM payments
		ORDER BY user_id ASC, payment_date ASC, id ASC
	`)
}

// Balance returns the ledger position of recordID.
func (s *Store) Balance(ctx context.Context, recordID int64) (model.Balance, error) {
	const op = "ledger.balance"

	var total sql.NullFloat64
	err := s.db.QueryRow(ctx, "SELECT total_amount FROM users WHERE id = ?", recordID).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Balance{}, model.NewNotFoundError(op, fmt.Sprintf("record %d not found", recordID))
	}
	if err != nil {
		return model.Balance{}, model.NewPersistenceError(op, err)
	}

	payments, err := s.ListForRecord(ctx, recordID)
	if err != nil {
		return model.Balance{}, err
	}
	return BalanceOf(total.Float64, payments), nil
}

// DashboardStats aggregates all records and payments.
func (s *Store) DashboardStats(ctx context.Context) (model.DashboardStats, error) {
	const op = "ledger.dashboard"

	var stats model.DashboardStats
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&stats.RecordCount); err != nil {
		return model.DashboardStats{}, model.NewPersistenceError(op, fmt.Errorf("count records: %w", err))
	}
	if err := s.db.QueryRow(ctx, "SELECT COALESCE(SUM(total_amount), 0) FROM users").Scan(&stats.TotalOwed); err != nil {
		return model.DashboardStats{}, model.NewPersistenceError(op, fmt.Errorf("sum owed: %w", err))
	}
	if err := s.db.QueryRow(ctx, "SELECT COALESCE(SUM(amount), 0) FROM payments").Scan(&stats.TotalReceived); err != nil {
		return model.DashboardStats{}, model.NewPersistenceError(op, fmt.Errorf("sum received: %w", err))
	}

	recent, err := s.Recent(ctx, RecentLimit)
	if err != nil {
		return model.DashboardStats{}, err
	}
	stats.RecentPayments = recent
	return stats, nil
}

// BalanceOf computes a balance from a record total and its payments using
// decimal arithmetic, so 0.1 + 0.2 received is exactly 0.3.
func BalanceOf(total float64, payments []model.Payment) model.Balance {
	received := decimal.Zero
	for _, p := range payments {
		received = received.Add(decimal.NewFromFloat(p.Amount))
	}
	owed := decimal.NewFromFloat(total)
	return model.Balance{
		Total:     owed,
		Received:  received,
		Remaining: owed.Sub(received),
	}
}

func (s *Store) queryPayments(ctx context.Context, op, query string, args ...any) ([]model.Payment, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, model.NewPersistenceError(op, fmt.Errorf("query payments: %w", err))
	}
	defer rows.Close()

	payments := []model.Payment{}
	for rows.Next() {
		var (
			p         model.Payment
			recordID  sql.NullInt64
			createdAt sql.NullTime
		)
		if err := rows.Scan(&p.ID, &recordID, &p.Amount, &p.PaymentDate, &createdAt); err != nil {
			return nil, model.NewPersistenceError(op, fmt.Errorf("scan payment: %w", err))
		}
		p.RecordID = recordID.Int64
		p.CreatedAt = createdAt.Time
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewPersistenceError(op, fmt.Errorf("iterate payments: %w", err))
	}
	return payments, nil
}
