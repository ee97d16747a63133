package domain

import (
	"time"

	"github.com/google/uuid"
)

// StatusEvent is the outbound verdict announcement. Field names are stable;
// evolution is additive only.
type StatusEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Status        Status    `json:"status"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// OutboxEvent is a pending outbound announcement recorded in the same
// database transaction as the status write it describes.
type OutboxEvent struct {
	ID            int64      `db:"id"`
	TransactionID uuid.UUID  `db:"transaction_id"`
	Status        Status     `db:"status"`
	CreatedAt     time.Time  `db:"created_at"`
	Processed     bool       `db:"processed"`
	ProcessedAt   *time.Time `db:"processed_at"`
}
