package fraud

import (
	"antifraud/internal/domain"

	"github.com/shopspring/decimal"
)

// Policy holds the adjudication thresholds. Both limits come from
// configuration so they can be tuned without touching the algorithm.
type Policy struct {
	MaxTransactionValue decimal.Decimal
	MaxDailyTotal       decimal.Decimal
}

func NewPolicy(maxTransactionValue, maxDailyTotal decimal.Decimal) Policy {
	return Policy{
		MaxTransactionValue: maxTransactionValue,
		MaxDailyTotal:       maxDailyTotal,
	}
}

// Decide maps a transaction value and the prior same-day total for its
// source account (excluding the transaction itself) to a verdict. Pure and
// deterministic; callers guarantee both inputs are non-negative.
func (p Policy) Decide(value, dailyTotal decimal.Decimal) domain.Status {
	if value.GreaterThan(p.MaxTransactionValue) {
		return domain.StatusRejected
	}
	if dailyTotal.Add(value).GreaterThan(p.MaxDailyTotal) {
		return domain.StatusRejected
	}
	return domain.StatusApproved
}
