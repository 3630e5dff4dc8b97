package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks relay throughput and broker health.
type Metrics struct {
	Published           prometheus.Counter
	Failures            prometheus.Counter
	SkippedOpenCircuit  prometheus.Counter
	CircuitBreakerState prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounter(prometheus.CounterOpts{
			Name: "smartid_outbox_published_total",
			Help: "Total number of outbox entries relayed to Kafka",
		}),
		Failures: f.NewCounter(prometheus.CounterOpts{
			Name: "smartid_outbox_publish_failures_total",
			Help: "Total number of failed outbox publish attempts",
		}),
		SkippedOpenCircuit: f.NewCounter(prometheus.CounterOpts{
			Name: "smartid_outbox_skipped_open_circuit_total",
			Help: "Total number of relay ticks skipped because the broker circuit was open",
		}),
		CircuitBreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "smartid_outbox_circuit_breaker_state",
			Help: "Broker circuit breaker state (0=closed, 1=open)",
		}),
	}
}
