// Package observability holds the Prometheus metrics of the points engine.
// Metrics register with the default registry and are served by the API
// router at /metrics.
package observability

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/warp/points-engine/bank"
)

// =============================================================================
// LEDGER
// =============================================================================

var TransactionsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "points",
	Subsystem: "ledger",
	Name:      "transactions_total",
	Help:      "Ledger transactions appended, by kind.",
}, []string{"kind"})

var PointsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "points",
	Subsystem: "ledger",
	Name:      "points_total",
	Help:      "Absolute points moved through the ledger, by direction.",
}, []string{"direction"})

// =============================================================================
// BADGES AND LOTTERY
// =============================================================================

var BadgesGranted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "points",
	Subsystem: "badges",
	Name:      "granted_total",
	Help:      "Badges granted, by condition key.",
}, []string{"condition"})

var LotteryDraws = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "points",
	Subsystem: "lottery",
	Name:      "draws_total",
	Help:      "Resolved lottery draws, by ticket source and tier.",
}, []string{"source", "tier"})

var LotteryPointsWon = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "points",
	Subsystem: "lottery",
	Name:      "points_won_total",
	Help:      "Points credited by lottery wins.",
})

// =============================================================================
// FAILURES
// =============================================================================

var OperationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "points",
	Subsystem: "economy",
	Name:      "failures_total",
	Help:      "Failed economy operations, by operation and reason.",
}, []string{"operation", "reason"})

var QuotaPruned = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "points",
	Subsystem: "quota",
	Name:      "pruned_rows_total",
	Help:      "Stale quota counters deleted by the scheduler.",
})

// Reason classifies an error into a low-cardinality label.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, bank.ErrNotFound):
		return "not_found"
	case errors.Is(err, bank.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, bank.ErrQuotaExhausted):
		return "quota_exhausted"
	case errors.Is(err, bank.ErrTicketAlreadyUsed):
		return "ticket_already_used"
	case errors.Is(err, bank.ErrTicketNotFound):
		return "ticket_not_found"
	case errors.Is(err, bank.ErrForbidden):
		return "forbidden"
	case errors.Is(err, bank.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, bank.ErrConcurrencyConflict):
		return "concurrency_conflict"
	}
	return "internal"
}

// RecordFailure counts a failed operation.
func RecordFailure(operation string, err error) {
	OperationFailures.WithLabelValues(operation, Reason(err)).Inc()
}

// RecordTransaction counts one appended transaction.
func RecordTransaction(tx bank.Transaction) {
	TransactionsAppended.WithLabelValues(string(tx.Kind)).Inc()
	if tx.Points > 0 {
		PointsMoved.WithLabelValues("credit").Add(float64(tx.Points))
	} else {
		PointsMoved.WithLabelValues("debit").Add(float64(-tx.Points))
	}
}
