package service

import (
	"context"
	"encoding/json"
	"time"

	"antifraud/internal/domain"
	"antifraud/internal/events"
	"antifraud/internal/logger"
	"antifraud/internal/metrics"
)

type RelayConfig struct {
	OutboundTopic  string
	Interval       time.Duration
	Grace          time.Duration
	Batch          int
	StoreTimeout   time.Duration
	PublishTimeout time.Duration
}

// Relay closes the crash window between a committed status write and its
// announcement: any outbox row that is still unprocessed after the grace
// period gets published again. Redelivering a verdict is safe, the status
// it carries is terminal.
type Relay struct {
	store Store
	pub   events.Publisher
	cfg   RelayConfig
}

func NewRelay(store Store, pub events.Publisher, cfg RelayConfig) *Relay {
	return &Relay{store: store, pub: pub, cfg: cfg}
}

// Run sweeps the outbox on the configured interval until ctx is cancelled
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep publishes unprocessed outbox rows older than the grace period and
// marks the delivered ones. Returns how many were republished.
func (r *Relay) Sweep(ctx context.Context) int {
	sctx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	defer cancel()

	rows, err := r.store.UnprocessedOutbox(sctx, r.cfg.Grace, r.cfg.Batch)
	if err != nil {
		logger.Error("outbox sweep failed", "error", err)
		return 0
	}

	published := 0
	for _, row := range rows {
		if err := r.publish(ctx, row); err != nil {
			logger.Warn("outbox republish failed, will retry next sweep",
				"outbox_id", row.ID, "transaction_id", row.TransactionID, "error", err)
			continue
		}

		mctx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
		if err := r.store.MarkOutboxProcessed(mctx, row.ID); err != nil {
			logger.Warn("outbox row not marked processed", "outbox_id", row.ID, "error", err)
		}
		cancel()

		metrics.OutboxRepublished.Inc()
		published++
	}

	if published > 0 {
		logger.Info("outbox relay recovered verdict events", "count", published)
	}
	return published
}

func (r *Relay) publish(ctx context.Context, row *domain.OutboxEvent) error {
	payload, err := json.Marshal(domain.StatusEvent{
		TransactionID: row.TransactionID,
		Status:        row.Status,
		UpdatedAt:     row.CreatedAt,
	})
	if err != nil {
		return err
	}

	pctx, cancel := context.WithTimeout(ctx, r.cfg.PublishTimeout)
	defer cancel()
	return r.pub.Publish(pctx, r.cfg.OutboundTopic, row.TransactionID.String(), payload)
}
