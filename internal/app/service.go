package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/rollbook/internal/ledger"
	"github.com/roach88/rollbook/internal/model"
)

// Result is the outcome of an operation with no payload.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// LoginResult carries the identity on success.
type LoginResult struct {
	Success bool            `json:"success"`
	User    *model.Identity `json:"user,omitempty"`
	Message string          `json:"message,omitempty"`
}

// CreateResult carries the id of a created row.
type CreateResult struct {
	Success bool   `json:"success"`
	ID      int64  `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

// RecordResult is a record with its payments and balance. Record is nil
// when the id does not exist; that is still a success. Payments is never
// nil.
type RecordResult struct {
	Success  bool            `json:"success"`
	Record   *model.Record   `json:"user"`
	Payments []model.Payment `json:"payments"`
	Balance  *model.Balance  `json:"balance,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// PhotosResult lists photos stored or found for a record.
type PhotosResult struct {
	Success bool          `json:"success"`
	Photos  []model.Photo `json:"photos"`
	Message string        `json:"message,omitempty"`
}

// Login verifies a credential.
func (s *Service) Login(ctx context.Context, username, password string) LoginResult {
	id, err := s.auth.VerifyLogin(ctx, username, password)
	if err != nil {
		return LoginResult{Message: s.fail("login", err, zap.String("username", username))}
	}
	return LoginResult{Success: true, User: &id}
}

// DashboardStats aggregates the ledger. On failure it returns zero values.
func (s *Service) DashboardStats(ctx context.Context) model.DashboardStats {
	stats, err := s.ledger.DashboardStats(ctx)
	if err != nil {
		s.fail("dashboard-stats", err)
		return model.DashboardStats{RecentPayments: []model.Payment{}}
	}
	return stats
}

// ListRecords returns every record, newest first. On failure it returns an
// empty list.
func (s *Service) ListRecords(ctx context.Context) []model.Record {
	list, err := s.records.List(ctx)
	if err != nil {
		s.fail("list-records", err)
		return []model.Record{}
	}
	return list
}

// CreateRecord inserts a record.
func (s *Service) CreateRecord(ctx context.Context, r model.Record) CreateResult {
	id, err := s.records.Create(ctx, r)
	if err != nil {
		return CreateResult{Message: s.fail("create-record", err)}
	}
	return CreateResult{Success: true, ID: id}
}

// GetRecord returns a record with its payments (newest payment date first)
// and its balance.
func (s *Service) GetRecord(ctx context.Context, id int64) RecordResult {
	r, err := s.records.Get(ctx, id)
	if model.IsNotFound(err) {
		return RecordResult{Success: true, Payments: []model.Payment{}}
	}
	if err != nil {
		return RecordResult{Payments: []model.Payment{}, Message: s.fail("get-record", err, zap.Int64("record_id", id))}
	}

	payments, err := s.ledger.ListForRecord(ctx, id)
	if err != nil {
		return RecordResult{Payments: []model.Payment{}, Message: s.fail("get-record", err, zap.Int64("record_id", id))}
	}
	bal := ledger.BalanceOf(r.TotalAmount, payments)
	return RecordResult{Success: true, Record: &r, Payments: payments, Balance: &bal}
}

// UpdateRecord replaces every field of record id.
func (s *Service) UpdateRecord(ctx context.Context, id int64, r model.Record) Result {
	if err := s.records.Update(ctx, id, r); err != nil {
		return Result{Message: s.fail("update-record", err, zap.Int64("record_id", id))}
	}
	return Result{Success: true}
}

// AddPayment appends a payment to record recordID.
func (s *Service) AddPayment(ctx context.Context, recordID int64, amount float64, date string) CreateResult {
	id, err := s.ledger.AddPayment(ctx, recordID, amount, date)
	if err != nil {
		return CreateResult{Message: s.fail("add-payment", err, zap.Int64("record_id", recordID))}
	}
	return CreateResult{Success: true, ID: id}
}

// ReplacePhotos makes uploads the photo set of record recordID.
func (s *Service) ReplacePhotos(ctx context.Context, recordID int64, uploads []*model.Upload) PhotosResult {
	stored, err := s.photos.ReplaceAll(ctx, recordID, uploads)
	if err != nil {
		return PhotosResult{Photos: []model.Photo{}, Message: s.fail("replace-photos", err, zap.Int64("record_id", recordID))}
	}
	return PhotosResult{Success: true, Photos: stored}
}

// ListPhotos returns the photos of record recordID in slot order.
func (s *Service) ListPhotos(ctx context.Context, recordID int64) PhotosResult {
	list, err := s.photos.ListForRecord(ctx, recordID)
	if err != nil {
		return PhotosResult{Photos: []model.Photo{}, Message: s.fail("list-photos", err, zap.Int64("record_id", recordID))}
	}
	return PhotosResult{Success: true, Photos: list}
}
