package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayout is the text form SQLite's CURRENT_TIMESTAMP produces. All
// created_at columns are written in this layout, in UTC.
const TimeLayout = "2006-01-02 15:04:05"

// MaxPhotos is the number of photo slots a record has.
const MaxPhotos = 4

// Record is a managed person. Name and Mobile are required, everything else
// is free text and may be empty.
type Record struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name" validate:"nonblank"`
	Mobile         string    `json:"mobile" validate:"nonblank"`
	FatherName     string    `json:"father_name"`
	FatherMobile   string    `json:"father_mobile"`
	RelativeName   string    `json:"relative_name"`
	RelativeMobile string    `json:"relative_mobile"`
	SpouseName     string    `json:"spouse_name"`
	SpouseMobile   string    `json:"spouse_mobile"`
	IDNumber       string    `json:"id_number"`
	BNumber        string    `json:"b_number"`
	SIDNumber      string    `json:"s_id_number"`
	VNumber        string    `json:"v_number"`
	AdmissionDate  string    `json:"admission_date"`
	ValidityDate   string    `json:"validity_date"`
	TotalAmount    float64   `json:"total_amount" validate:"finite"`
	CreatedAt      time.Time `json:"created_at"`
}

// Payment is one ledger entry against a record. Payments are never updated
// or deleted.
type Payment struct {
	ID          int64     `json:"id"`
	RecordID    int64     `json:"user_id"`
	Amount      float64   `json:"amount" validate:"finite"`
	PaymentDate string    `json:"payment_date" validate:"nonblank"`
	CreatedAt   time.Time `json:"created_at"`
}

// Photo binds a stored image file to a record slot (1..MaxPhotos).
type Photo struct {
	ID               int64     `json:"id"`
	RecordID         int64     `json:"user_id"`
	Path             string    `json:"photo_path"`
	Order            int       `json:"photo_order"`
	OriginalFilename string    `json:"original_filename"`
	CreatedAt        time.Time `json:"created_at"`
}

// Upload is an incoming photo blob. A nil *Upload in a batch leaves that
// slot empty.
type Upload struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// Credential is an administrative login row. PasswordHash never leaves the
// auth package.
type Credential struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Identity is what a successful login returns.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// DashboardStats aggregates the whole ledger.
type DashboardStats struct {
	RecordCount    int64     `json:"total_users"`
	TotalOwed      float64   `json:"total_amount"`
	TotalReceived  float64   `json:"total_received"`
	RecentPayments []Payment `json:"recent_payments"`
}

// Balance is the ledger position of one record. Remaining is negative when
// the record has been overpaid.
type Balance struct {
	Total     decimal.Decimal `json:"total_amount"`
	Received  decimal.Decimal `json:"amount_received"`
	Remaining decimal.Decimal `json:"remaining"`
}
