package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TransactionsTotal counts ledger transactions by type and terminal status.
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topup_transactions_total",
		Help: "Transactions recorded, labelled by type and status.",
	}, []string{"type", "status"})

	// ProviderCallsTotal counts gateway calls by provider and outcome.
	ProviderCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topup_provider_calls_total",
		Help: "Upstream provider calls, labelled by provider and outcome.",
	}, []string{"provider", "outcome"})

	// RefundRetriesTotal counts retried refund settlements.
	RefundRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topup_refund_retries_total",
		Help: "Refund settlement attempts beyond the first.",
	})

	// ReconcileSweepsTotal counts reconciliation sweep runs.
	ReconcileSweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topup_reconcile_sweeps_total",
		Help: "Reconciliation sweeps executed.",
	})
)

// Handler exposes the Prometheus scrape endpoint as a Fiber handler.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
