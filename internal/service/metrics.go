package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the policy store layer.
// Pass to components that need to record metrics.
type Metrics struct {
	MutationsTotal     *prometheus.CounterVec
	InvalidationsTotal *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	PublishedPolicies  prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		MutationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "arbiter",
				Name:      "policy_mutations_total",
				Help:      "Total policy store mutations processed",
			},
			[]string{"operation", "status"}, // operation=add/update/enable_disable/order/remove, status=ok/error
		),
		InvalidationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "arbiter",
				Name:      "cache_invalidations_total",
				Help:      "Total evaluation cache invalidations dispatched",
			},
			[]string{"action"}, // action=UPDATE/ENABLE/DISABLE/ORDER/DELETE
		),
		OperationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "arbiter",
				Name:      "store_operation_duration_seconds",
				Help:      "Policy store operation duration in seconds",
				Buckets:   prometheus.DefBuckets, // 5ms to 10s
			},
			[]string{"operation"},
		),
		PublishedPolicies: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "arbiter",
				Name:      "published_policies",
				Help:      "Number of policies currently published to the decision-side store",
			},
		),
	}
}
