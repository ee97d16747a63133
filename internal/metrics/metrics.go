package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TransactionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "antifraud_transactions_created_total",
			Help: "Transactions accepted by the intake API",
		},
	)
	WorkerOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antifraud_worker_messages_total",
			Help: "Inbound messages handled by the adjudication worker, by outcome",
		},
		[]string{"outcome"},
	)
	Verdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antifraud_verdicts_total",
			Help: "Adjudication verdicts written to the store",
		},
		[]string{"status"},
	)
	PublishRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "antifraud_publish_retries_total",
			Help: "Outbound publish attempts that had to be retried",
		},
	)
	PublishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "antifraud_publish_failures_total",
			Help: "Outbound publishes abandoned after the retry ceiling",
		},
	)
	OutboxRepublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "antifraud_outbox_republished_total",
			Help: "Verdict events recovered and published by the outbox relay",
		},
	)
)

func init() {
	prometheus.MustRegister(TransactionsCreated)
	prometheus.MustRegister(WorkerOutcomes)
	prometheus.MustRegister(Verdicts)
	prometheus.MustRegister(PublishRetries)
	prometheus.MustRegister(PublishFailures)
	prometheus.MustRegister(OutboxRepublished)
}
