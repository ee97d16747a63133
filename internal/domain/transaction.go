package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the adjudication state of a transaction. A transaction starts
// pending and moves exactly once to approved or rejected.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal reports whether the status is a final verdict.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

var (
	ErrNotFound       = errors.New("transaction not found")
	ErrAlreadyExists  = errors.New("transaction already exists")
	ErrAlreadyDecided = errors.New("transaction already decided")
	ErrInvalidValue   = errors.New("transaction value must not be negative")
)

type Transaction struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	SourceAccountID uuid.UUID       `db:"source_account_id" json:"source_account_id"`
	TargetAccountID uuid.UUID       `db:"target_account_id" json:"target_account_id"`
	TransferTypeID  int             `db:"transfer_type_id" json:"transfer_type_id"`
	Value           decimal.Decimal `db:"value" json:"value"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	Status          Status          `db:"status" json:"status"`
}

// Day returns the UTC calendar date used as the daily-total bucket.
func (t *Transaction) Day() time.Time {
	return t.CreatedAt.UTC().Truncate(24 * time.Hour)
}
