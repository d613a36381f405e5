package payments

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_operations_total",
			Help: "Gateway operations by provider, operation and outcome",
		},
		[]string{"provider", "operation", "outcome"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_operation_duration_seconds",
			Help:    "Gateway operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	providersLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "payment_providers_loaded",
			Help: "Number of configured payment providers",
		},
	)
)

// outcome maps an operation result onto a metric label.
func outcome(status Status, err error) string {
	if err != nil {
		return "error"
	}
	if status == "" {
		return "ok"
	}
	return string(status)
}
