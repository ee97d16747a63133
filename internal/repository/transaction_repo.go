package repository

import (
	"context"
	"errors"
	"time"

	"antifraud/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type TransactionRepository struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Insert creates a pending row
func (r *TransactionRepository) Insert(ctx context.Context, tx *domain.Transaction) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO transactions (id, source_account_id, target_account_id, transfer_type_id, value, created_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tx.ID, tx.SourceAccountID, tx.TargetAccountID, tx.TransferTypeID,
		tx.Value.String(), tx.CreatedAt, string(tx.Status),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetByID returns the transaction or domain.ErrNotFound
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, source_account_id, target_account_id, transfer_type_id, value::text, created_at, status
		 FROM transactions
		 WHERE id = $1`,
		id,
	)
	return scanTransaction(row)
}

// DailyTotal sums the values of the source account's transactions on the
// given UTC calendar day, excluding the row being judged. Returns zero when
// nothing matches.
func (r *TransactionRepository) DailyTotal(ctx context.Context, sourceAccountID uuid.UUID, day time.Time, excludeID uuid.UUID) (decimal.Decimal, error) {
	from := day.UTC().Truncate(24 * time.Hour)
	to := from.Add(24 * time.Hour)

	var total string
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(value), 0)::text
		 FROM transactions
		 WHERE source_account_id = $1
		   AND created_at >= $2 AND created_at < $3
		   AND id <> $4`,
		sourceAccountID, from, to, excludeID,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(total)
}

// MarkDecided applies the verdict with a conditional update: only a row
// still in pending moves. A row already past pending yields
// domain.ErrAlreadyDecided so redelivered messages become no-ops. The
// outbox row is written in the same database transaction as the status,
// which is what lets the relay recover a verdict whose announcement was
// lost.
func (r *TransactionRepository) MarkDecided(ctx context.Context, id uuid.UUID, status domain.Status, decidedAt time.Time) (*domain.OutboxEvent, error) {
	dbTx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = dbTx.Rollback(ctx) }()

	tag, err := dbTx.Exec(ctx,
		`UPDATE transactions SET status = $2, updated_at = $3 WHERE id = $1 AND status = 'pending'`,
		id, string(status), decidedAt,
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		var current string
		err := dbTx.QueryRow(ctx, `SELECT status FROM transactions WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return nil, domain.ErrAlreadyDecided
	}

	outbox := &domain.OutboxEvent{
		TransactionID: id,
		Status:        status,
		CreatedAt:     decidedAt,
	}
	err = dbTx.QueryRow(ctx,
		`INSERT INTO transaction_outbox (transaction_id, status, created_at)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		id, string(status), decidedAt,
	).Scan(&outbox.ID)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, err
	}
	return outbox, nil
}

// List returns recent transactions, newest first
func (r *TransactionRepository) List(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, source_account_id, target_account_id, transfer_type_id, value::text, created_at, status
		 FROM transactions
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

// UnprocessedOutbox returns outbox rows older than the grace period that
// still await announcement, oldest first.
func (r *TransactionRepository) UnprocessedOutbox(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	cutoff := time.Now().UTC().Add(-olderThan)

	rows, err := r.db.Query(ctx,
		`SELECT id, transaction_id, status, created_at
		 FROM transaction_outbox
		 WHERE processed = false AND created_at < $1
		 ORDER BY id
		 LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.OutboxEvent
	for rows.Next() {
		var (
			e      domain.OutboxEvent
			status string
		)
		if err := rows.Scan(&e.ID, &e.TransactionID, &status, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Status = domain.Status(status)
		result = append(result, &e)
	}
	return result, rows.Err()
}

// MarkOutboxProcessed records that the outbox row's event reached the topic
func (r *TransactionRepository) MarkOutboxProcessed(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE transaction_outbox SET processed = true, processed_at = now() WHERE id = $1`,
		id,
	)
	return err
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		tx     domain.Transaction
		value  string
		status string
	)
	err := row.Scan(&tx.ID, &tx.SourceAccountID, &tx.TargetAccountID, &tx.TransferTypeID, &value, &tx.CreatedAt, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	tx.Value, err = decimal.NewFromString(value)
	if err != nil {
		return nil, err
	}
	tx.Status = domain.Status(status)
	return &tx, nil
}
