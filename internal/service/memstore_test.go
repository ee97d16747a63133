package service

import (
	"context"
	"sync"
	"time"

	"antifraud/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory Store used by the worker tests. The err fields
// inject store failures.
type memStore struct {
	mu     sync.Mutex
	txs    map[uuid.UUID]*domain.Transaction
	outbox []*domain.OutboxEvent
	nextID int64

	getErr   error
	totalErr error
	markErr  error
}

func newMemStore() *memStore {
	return &memStore{txs: make(map[uuid.UUID]*domain.Transaction)}
}

func (s *memStore) Insert(_ context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[tx.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *tx
	s.txs[tx.ID] = &cp
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	tx, ok := s.txs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (s *memStore) DailyTotal(_ context.Context, source uuid.UUID, day time.Time, excludeID uuid.UUID) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.totalErr != nil {
		return decimal.Zero, s.totalErr
	}
	bucket := day.UTC().Truncate(24 * time.Hour)
	total := decimal.Zero
	for _, tx := range s.txs {
		if tx.ID == excludeID || tx.SourceAccountID != source {
			continue
		}
		if !tx.CreatedAt.UTC().Truncate(24 * time.Hour).Equal(bucket) {
			continue
		}
		total = total.Add(tx.Value)
	}
	return total, nil
}

func (s *memStore) MarkDecided(_ context.Context, id uuid.UUID, status domain.Status, decidedAt time.Time) (*domain.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return nil, s.markErr
	}
	tx, ok := s.txs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if tx.Status != domain.StatusPending {
		return nil, domain.ErrAlreadyDecided
	}
	tx.Status = status

	s.nextID++
	e := &domain.OutboxEvent{
		ID:            s.nextID,
		TransactionID: id,
		Status:        status,
		CreatedAt:     decidedAt,
	}
	s.outbox = append(s.outbox, e)
	cp := *e
	return &cp, nil
}

func (s *memStore) List(_ context.Context, limit int) ([]*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Transaction
	for _, tx := range s.txs {
		cp := *tx
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) UnprocessedOutbox(_ context.Context, olderThan time.Duration, limit int) ([]*domain.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	var out []*domain.OutboxEvent
	for _, e := range s.outbox {
		if e.Processed || !e.CreatedAt.Before(cutoff) {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) MarkOutboxProcessed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.outbox {
		if e.ID == id {
			now := time.Now().UTC()
			e.Processed = true
			e.ProcessedAt = &now
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *memStore) setGetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr = err
}

func (s *memStore) status(id uuid.UUID) domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx, ok := s.txs[id]; ok {
		return tx.Status
	}
	return ""
}

func (s *memStore) unprocessedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.outbox {
		if !e.Processed {
			n++
		}
	}
	return n
}
