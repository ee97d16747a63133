package service

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"antifraud/internal/domain"
	"antifraud/internal/events"
	"antifraud/internal/fraud"
	"antifraud/internal/logger"
	"antifraud/internal/metrics"

	"github.com/google/uuid"
)

// Outcome classifies how the worker handled one inbound message and drives
// the ack decision: everything except OutcomeRetryable is acked, a
// retryable message is left pending so the channel redelivers it.
type Outcome string

const (
	OutcomeProcessed        Outcome = "processed"
	OutcomeSkippedDuplicate Outcome = "skipped_duplicate"
	OutcomeDropped          Outcome = "dropped"
	OutcomeRetryable        Outcome = "retryable"
)

type AdjudicatorConfig struct {
	InboundTopic   string
	OutboundTopic  string
	ConsumerGroup  string
	Lanes          int
	StoreTimeout   time.Duration
	PublishTimeout time.Duration
	PublishRetries int
	PublishBackoff time.Duration
}

// Adjudicator consumes pending transactions from the inbound topic,
// recomputes the source account's daily total against the store, applies
// the fraud policy, writes the verdict with a conditional update and
// announces it on the outbound topic.
type Adjudicator struct {
	store    Store
	policy   fraud.Policy
	pub      events.Publisher
	consumer events.Consumer
	cfg      AdjudicatorConfig
}

func NewAdjudicator(store Store, policy fraud.Policy, pub events.Publisher, consumer events.Consumer, cfg AdjudicatorConfig) *Adjudicator {
	if cfg.Lanes <= 0 {
		cfg.Lanes = 1
	}
	if cfg.PublishRetries <= 0 {
		cfg.PublishRetries = 1
	}
	return &Adjudicator{
		store:    store,
		policy:   policy,
		pub:      pub,
		consumer: consumer,
		cfg:      cfg,
	}
}

// Run blocks consuming the inbound topic until ctx is cancelled. Messages
// are routed to a lane by their key, so transactions from one source
// account are handled serially; this shrinks the window in which two
// same-day messages read the daily total concurrently, it does not close
// it. The conditional status update is the actual double-adjudication
// guard. On shutdown the lanes drain their queued messages before Run
// returns, and nothing whose status write did not complete gets acked.
func (a *Adjudicator) Run(ctx context.Context) error {
	lanes := make([]chan events.Message, a.cfg.Lanes)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan events.Message, 64)
		wg.Add(1)
		go func(ch chan events.Message) {
			defer wg.Done()
			for msg := range ch {
				a.handle(msg)
			}
		}(lanes[i])
	}

	logger.Info("adjudication worker started",
		"topic", a.cfg.InboundTopic, "group", a.cfg.ConsumerGroup, "lanes", a.cfg.Lanes)

	err := a.consumer.Consume(ctx, a.cfg.InboundTopic, a.cfg.ConsumerGroup, func(msg events.Message) {
		lanes[a.laneFor(msg.Key)] <- msg
	})

	for _, ch := range lanes {
		close(ch)
	}
	wg.Wait()
	logger.Info("adjudication worker stopped")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *Adjudicator) laneFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(a.cfg.Lanes))
}

// handle processes one message and acks it unless the outcome is
// retryable. It deliberately runs on a background context: an in-flight
// message finishes its store writes during shutdown, bounded by the
// per-call timeouts.
func (a *Adjudicator) handle(msg events.Message) Outcome {
	outcome := a.process(context.Background(), msg)
	metrics.WorkerOutcomes.WithLabelValues(string(outcome)).Inc()

	if outcome != OutcomeRetryable {
		ackCtx, cancel := context.WithTimeout(context.Background(), a.cfg.StoreTimeout)
		defer cancel()
		if err := msg.Ack(ackCtx); err != nil {
			logger.Warn("ack failed, message will be redelivered", "message_id", msg.ID, "error", err)
		}
	}
	return outcome
}

func (a *Adjudicator) process(ctx context.Context, msg events.Message) Outcome {
	var tx domain.Transaction
	if err := json.Unmarshal(msg.Payload, &tx); err != nil || tx.ID == uuid.Nil {
		// poison message: it must never block the stream
		logger.Warn("dropping malformed message", "message_id", msg.ID, "error", err)
		return OutcomeDropped
	}

	sctx, cancel := context.WithTimeout(ctx, a.cfg.StoreTimeout)
	defer cancel()
	stored, err := a.store.GetByID(sctx, tx.ID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("transaction not in store, dropping stale message", "transaction_id", tx.ID)
		return OutcomeDropped
	}
	if err != nil {
		logger.Error("store lookup failed", "transaction_id", tx.ID, "error", err)
		return OutcomeRetryable
	}

	if stored.Status != domain.StatusPending {
		logger.Debug("already decided, skipping redelivery", "transaction_id", stored.ID, "status", stored.Status)
		return OutcomeSkippedDuplicate
	}

	tctx, cancel := context.WithTimeout(ctx, a.cfg.StoreTimeout)
	defer cancel()
	dailyTotal, err := a.store.DailyTotal(tctx, stored.SourceAccountID, stored.Day(), stored.ID)
	if err != nil {
		logger.Error("daily total query failed", "transaction_id", stored.ID, "error", err)
		return OutcomeRetryable
	}

	verdict := a.policy.Decide(stored.Value, dailyTotal)

	mctx, cancel := context.WithTimeout(ctx, a.cfg.StoreTimeout)
	defer cancel()
	outbox, err := a.store.MarkDecided(mctx, stored.ID, verdict, time.Now().UTC())
	if errors.Is(err, domain.ErrAlreadyDecided) {
		// a concurrent worker won the conditional update
		logger.Debug("lost the status race, skipping", "transaction_id", stored.ID)
		return OutcomeSkippedDuplicate
	}
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("transaction vanished before decision", "transaction_id", stored.ID)
		return OutcomeDropped
	}
	if err != nil {
		logger.Error("status update failed", "transaction_id", stored.ID, "error", err)
		return OutcomeRetryable
	}

	metrics.Verdicts.WithLabelValues(string(verdict)).Inc()
	logger.Info("transaction adjudicated",
		"transaction_id", stored.ID, "status", verdict,
		"value", stored.Value, "daily_total", dailyTotal)

	// The status is durable from here on. A failed announcement is logged
	// and absorbed; the outbox relay re-sends it later.
	if err := a.announce(outbox); err != nil {
		metrics.PublishFailures.Inc()
		logger.Error("verdict not announced, left to outbox relay",
			"transaction_id", stored.ID, "error", err)
		return OutcomeProcessed
	}

	octx, cancel := context.WithTimeout(ctx, a.cfg.StoreTimeout)
	defer cancel()
	if err := a.store.MarkOutboxProcessed(octx, outbox.ID); err != nil {
		// relay will publish a duplicate verdict; consumers see the same
		// terminal status twice, which is harmless
		logger.Warn("outbox row not marked processed", "outbox_id", outbox.ID, "error", err)
	}
	return OutcomeProcessed
}

// announce publishes the verdict with bounded backoff up to the configured
// attempt ceiling.
func (a *Adjudicator) announce(outbox *domain.OutboxEvent) error {
	payload, err := json.Marshal(domain.StatusEvent{
		TransactionID: outbox.TransactionID,
		Status:        outbox.Status,
		UpdatedAt:     outbox.CreatedAt,
	})
	if err != nil {
		return err
	}

	backoff := a.cfg.PublishBackoff
	var lastErr error
	for attempt := 0; attempt < a.cfg.PublishRetries; attempt++ {
		if attempt > 0 {
			metrics.PublishRetries.Inc()
			time.Sleep(backoff)
			backoff *= 2
		}
		pctx, cancel := context.WithTimeout(context.Background(), a.cfg.PublishTimeout)
		lastErr = a.pub.Publish(pctx, a.cfg.OutboundTopic, outbox.TransactionID.String(), payload)
		cancel()
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}
