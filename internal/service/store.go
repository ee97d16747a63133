package service

import (
	"context"
	"time"

	"antifraud/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is the persistence boundary the pipeline needs. Implemented by
// repository.TransactionRepository; tests use an in-memory fake.
type Store interface {
	Insert(ctx context.Context, tx *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	DailyTotal(ctx context.Context, sourceAccountID uuid.UUID, day time.Time, excludeID uuid.UUID) (decimal.Decimal, error)
	MarkDecided(ctx context.Context, id uuid.UUID, status domain.Status, decidedAt time.Time) (*domain.OutboxEvent, error)
	List(ctx context.Context, limit int) ([]*domain.Transaction, error)
	UnprocessedOutbox(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id int64) error
}
