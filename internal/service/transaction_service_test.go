package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"antifraud/internal/domain"
	"antifraud/internal/events"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestCreateStoresPendingAndAnnounces(t *testing.T) {
	store := newMemStore()
	mem := events.NewMemory()
	svc := NewTransactionService(store, mem, "transactions", time.Second, time.Second)

	tx, err := svc.Create(context.Background(), CreateInput{
		SourceAccountID: uuid.New(),
		TargetAccountID: uuid.New(),
		TransferTypeID:  1,
		Value:           decimal.RequireFromString("99.50"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.Status != domain.StatusPending {
		t.Errorf("status = %s, want pending", tx.Status)
	}
	if got := store.status(tx.ID); got != domain.StatusPending {
		t.Errorf("stored status = %s, want pending", got)
	}

	entries := mem.Entries("transactions")
	if len(entries) != 1 {
		t.Fatalf("inbound entries = %d, want 1", len(entries))
	}
	var announced domain.Transaction
	if err := json.Unmarshal(entries[0], &announced); err != nil {
		t.Fatalf("unmarshal announced record: %v", err)
	}
	if announced.ID != tx.ID || announced.Status != domain.StatusPending {
		t.Errorf("announced record %+v does not match created transaction", announced)
	}
	if !announced.Value.Equal(tx.Value) {
		t.Errorf("announced value = %s, want %s", announced.Value, tx.Value)
	}
}

func TestCreateRejectsNegativeValue(t *testing.T) {
	store := newMemStore()
	mem := events.NewMemory()
	svc := NewTransactionService(store, mem, "transactions", time.Second, time.Second)

	_, err := svc.Create(context.Background(), CreateInput{
		SourceAccountID: uuid.New(),
		TargetAccountID: uuid.New(),
		Value:           decimal.RequireFromString("-5"),
	})
	if !errors.Is(err, domain.ErrInvalidValue) {
		t.Fatalf("err = %v, want ErrInvalidValue", err)
	}
	if len(mem.Entries("transactions")) != 0 {
		t.Error("nothing should be announced for a rejected request")
	}
}

func TestCreateSurfacesPublishFailure(t *testing.T) {
	store := newMemStore()
	pub := &failingPublisher{remaining: 100}
	svc := NewTransactionService(store, pub, "transactions", time.Second, time.Second)

	tx, err := svc.Create(context.Background(), CreateInput{
		SourceAccountID: uuid.New(),
		TargetAccountID: uuid.New(),
		Value:           decimal.NewFromInt(10),
	})
	if !errors.Is(err, events.ErrPublish) {
		t.Fatalf("err = %v, want ErrPublish", err)
	}
	// the record is durable even though the announcement failed
	if tx == nil || store.status(tx.ID) != domain.StatusPending {
		t.Fatal("expected the pending record to be stored")
	}
}
