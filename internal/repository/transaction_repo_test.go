package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"antifraud/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Integration-style tests: run only if DATABASE_URL env is set and the
// migrations have been applied.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func newTx(source uuid.UUID, value string) *domain.Transaction {
	return &domain.Transaction{
		ID:              uuid.New(),
		SourceAccountID: source,
		TargetAccountID: uuid.New(),
		TransferTypeID:  1,
		Value:           decimal.RequireFromString(value),
		CreatedAt:       time.Now().UTC(),
		Status:          domain.StatusPending,
	}
}

func TestInsertAndGetIntegration(t *testing.T) {
	repo := NewTransactionRepository(testPool(t))
	ctx := context.Background()

	tx := newTx(uuid.New(), "150.25")
	if err := repo.Insert(ctx, tx); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// duplicate id must conflict
	if err := repo.Insert(ctx, tx); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("duplicate insert err = %v, want ErrAlreadyExists", err)
	}

	got, err := repo.GetByID(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
	if !got.Value.Equal(tx.Value) {
		t.Errorf("value = %s, want %s", got.Value, tx.Value)
	}

	if _, err := repo.GetByID(ctx, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing row err = %v, want ErrNotFound", err)
	}
}

func TestDailyTotalExcludesSelfIntegration(t *testing.T) {
	repo := NewTransactionRepository(testPool(t))
	ctx := context.Background()

	source := uuid.New()
	a := newTx(source, "100")
	b := newTx(source, "250")
	for _, tx := range []*domain.Transaction{a, b} {
		if err := repo.Insert(ctx, tx); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	total, err := repo.DailyTotal(ctx, source, a.CreatedAt, a.ID)
	if err != nil {
		t.Fatalf("daily total: %v", err)
	}
	if !total.Equal(decimal.RequireFromString("250")) {
		t.Errorf("total = %s, want 250 (own row excluded)", total)
	}

	// no rows for an unknown account
	total, err = repo.DailyTotal(ctx, uuid.New(), a.CreatedAt, uuid.New())
	if err != nil {
		t.Fatalf("daily total: %v", err)
	}
	if !total.IsZero() {
		t.Errorf("total = %s, want 0", total)
	}
}

func TestMarkDecidedIsConditionalIntegration(t *testing.T) {
	repo := NewTransactionRepository(testPool(t))
	ctx := context.Background()

	tx := newTx(uuid.New(), "50")
	if err := repo.Insert(ctx, tx); err != nil {
		t.Fatalf("insert: %v", err)
	}

	outbox, err := repo.MarkDecided(ctx, tx.ID, domain.StatusApproved, time.Now().UTC())
	if err != nil {
		t.Fatalf("mark decided: %v", err)
	}
	if outbox.Status != domain.StatusApproved {
		t.Errorf("outbox status = %s, want approved", outbox.Status)
	}

	// second transition must be a stale no-op, not a flip
	_, err = repo.MarkDecided(ctx, tx.ID, domain.StatusRejected, time.Now().UTC())
	if !errors.Is(err, domain.ErrAlreadyDecided) {
		t.Fatalf("second decide err = %v, want ErrAlreadyDecided", err)
	}

	got, err := repo.GetByID(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusApproved {
		t.Errorf("status flipped to %s", got.Status)
	}

	if _, err := repo.MarkDecided(ctx, uuid.New(), domain.StatusApproved, time.Now().UTC()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing row err = %v, want ErrNotFound", err)
	}
}

func TestOutboxLifecycleIntegration(t *testing.T) {
	repo := NewTransactionRepository(testPool(t))
	ctx := context.Background()

	tx := newTx(uuid.New(), "75")
	if err := repo.Insert(ctx, tx); err != nil {
		t.Fatalf("insert: %v", err)
	}
	outbox, err := repo.MarkDecided(ctx, tx.ID, domain.StatusApproved, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("mark decided: %v", err)
	}

	rows, err := repo.UnprocessedOutbox(ctx, time.Minute, 100)
	if err != nil {
		t.Fatalf("unprocessed: %v", err)
	}
	found := false
	for _, r := range rows {
		if r.ID == outbox.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("expected outbox row in unprocessed set")
	}

	if err := repo.MarkOutboxProcessed(ctx, outbox.ID); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	rows, err = repo.UnprocessedOutbox(ctx, time.Minute, 100)
	if err != nil {
		t.Fatalf("unprocessed: %v", err)
	}
	for _, r := range rows {
		if r.ID == outbox.ID {
			t.Fatal("processed row still reported unprocessed")
		}
	}
}
