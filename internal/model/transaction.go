package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OperationPayment = "payment"
	OperationDeposit = "deposit"
)

// RentalZone is the business time zone used for rental expiry stamps and
// calendar-day boundaries in reports.
var RentalZone = time.FixedZone("UTC+3", 3*60*60)

// Transaction is a single row of the append-only ledger. Rows are written
// once, inside a payment-engine unit of work, and never updated or deleted;
// the user's balance is a cached aggregate of this log.
type Transaction struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	Type           string          `json:"type"` // "payment" | "deposit"
	Value          decimal.Decimal `json:"amount"`
	CourseID       *int64          `json:"-"` // nil for deposits
	CourseCode     *string         `json:"course_code,omitempty"`
	PeriodValidity *time.Time      `json:"expires_at,omitempty"` // rent payments only
	CreatedAt      time.Time       `json:"created_at"`
}

func (Transaction) TableName() string { return "transactions" }

// TransactionFilter describes the AND-ed predicates of the history query.
// A nil field means "do not constrain on this dimension".
type TransactionFilter struct {
	UserID      *int64
	Type        *string // "payment" | "deposit"
	CourseCode  *string
	SkipExpired bool // keep only rows with period_validity strictly in the future
}
