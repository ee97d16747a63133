package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"antifraud/internal/domain"
	"antifraud/internal/events"
	"antifraud/internal/logger"
	"antifraud/internal/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateInput is the intake request after HTTP-level validation.
type CreateInput struct {
	SourceAccountID uuid.UUID
	TargetAccountID uuid.UUID
	TransferTypeID  int
	Value           decimal.Decimal
}

// TransactionService handles intake: persist a pending record, then
// announce it on the inbound topic for the adjudication worker.
type TransactionService struct {
	store          Store
	pub            events.Publisher
	inboundTopic   string
	storeTimeout   time.Duration
	publishTimeout time.Duration
}

func NewTransactionService(store Store, pub events.Publisher, inboundTopic string, storeTimeout, publishTimeout time.Duration) *TransactionService {
	return &TransactionService{
		store:          store,
		pub:            pub,
		inboundTopic:   inboundTopic,
		storeTimeout:   storeTimeout,
		publishTimeout: publishTimeout,
	}
}

// Create persists a pending transaction and publishes it to the inbound
// topic, keyed by source account so same-account messages land on the same
// partition. If the publish fails the record is already durable; the error
// is returned alongside the transaction so the caller can surface it.
func (s *TransactionService) Create(ctx context.Context, in CreateInput) (*domain.Transaction, error) {
	if in.Value.IsNegative() {
		return nil, domain.ErrInvalidValue
	}

	tx := &domain.Transaction{
		ID:              uuid.New(),
		SourceAccountID: in.SourceAccountID,
		TargetAccountID: in.TargetAccountID,
		TransferTypeID:  in.TransferTypeID,
		Value:           in.Value,
		CreatedAt:       time.Now().UTC(),
		Status:          domain.StatusPending,
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.store.Insert(sctx, tx); err != nil {
		return nil, err
	}
	metrics.TransactionsCreated.Inc()

	payload, err := json.Marshal(tx)
	if err != nil {
		return tx, fmt.Errorf("marshal transaction: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if err := s.pub.Publish(pctx, s.inboundTopic, tx.SourceAccountID.String(), payload); err != nil {
		logger.Error("transaction stored but not announced", "transaction_id", tx.ID, "error", err)
		return tx, err
	}

	logger.Info("transaction created", "transaction_id", tx.ID, "value", tx.Value)
	return tx, nil
}

// Get returns a transaction by id
func (s *TransactionService) Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.GetByID(sctx, id)
}

// List returns recent transactions, newest first
func (s *TransactionService) List(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.List(sctx, limit)
}
