package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quizbirr"

var (
	// LedgerEntries counts postEntry outcomes: posted, replayed, rejected.
	LedgerEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "entries_total",
			Help:      "Ledger entry postings partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	// LedgerMinorUnits sums minor units moved per posting kind.
	LedgerMinorUnits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "moved_minor_units_total",
			Help:      "Minor units moved through the ledger partitioned by kind.",
		},
		[]string{"kind"},
	)

	// Settlements counts transaction terminal transitions.
	Settlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transactions",
			Name:      "settlements_total",
			Help:      "Transaction transitions partitioned by type and resulting status.",
		},
		[]string{"type", "status"},
	)

	// Webhooks counts inbound provider webhooks by provider and result.
	Webhooks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "webhooks_total",
			Help:      "Inbound provider webhooks partitioned by provider and result.",
		},
		[]string{"provider", "result"},
	)

	// ProviderCalls times outbound provider requests.
	ProviderCalls = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "provider_call_seconds",
			Help:      "Outbound provider call latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "operation", "result"},
	)

	// HTTPRequests times API requests by route pattern.
	HTTPRequests = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency partitioned by method, route and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// SweptDeposits counts stale provider deposits failed by the sweeper.
	SweptDeposits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "stale_deposits_failed_total",
			Help:      "Pending provider deposits failed after exceeding their TTL.",
		},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
