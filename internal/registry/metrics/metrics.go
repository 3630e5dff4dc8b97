package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RegistriesCreated prometheus.Counter
	Operations        *prometheus.CounterVec
	OperationDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RegistriesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "smartid_registries_created_total",
			Help: "Total number of approval registries created",
		}),
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "smartid_registry_operations_total",
			Help: "Registry operations by action and outcome code",
		}, []string{"operation", "outcome"}),
		OperationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "smartid_registry_operation_duration_seconds",
			Help:    "Duration of registry mutations",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveOperation(op, outcome string, start time.Time) {
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.OperationDuration.Observe(time.Since(start).Seconds())
}
