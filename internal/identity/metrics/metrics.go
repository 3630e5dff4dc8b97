package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the identity module.
type Metrics struct {
	IdentitiesCreated  prometheus.Counter
	Operations         *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	ControllerChanges  prometheus.Counter
	BlocklockRejection prometheus.Counter
}

// New registers the identity metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IdentitiesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "smartid_identities_created_total",
			Help: "Total number of identity records created",
		}),
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "smartid_identity_operations_total",
			Help: "Identity mutations by operation and outcome code",
		}, []string{"operation", "outcome"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smartid_identity_operation_duration_seconds",
			Help:    "Duration of identity mutations including the store transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		ControllerChanges: f.NewCounter(prometheus.CounterOpts{
			Name: "smartid_controller_changes_total",
			Help: "Committed controller replacements",
		}),
		BlocklockRejection: f.NewCounter(prometheus.CounterOpts{
			Name: "smartid_blocklock_rejections_total",
			Help: "Controller changes refused because the transfer interval had not elapsed",
		}),
	}
}

// ObserveOperation records one finished mutation. outcome is "ok" or the
// domain error code.
func (m *Metrics) ObserveOperation(op, outcome string, start time.Time) {
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
