// Package outbox relays committed audit events from the outbox table to
// Kafka. Delivery is at-least-once; consumers dedupe on the event ID.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "smartid/pkg/platform/audit"
	"smartid/pkg/platform/circuit"
)

// Producer publishes one record to a topic.
type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Worker polls the outbox and publishes pending entries in commit order.
type Worker struct {
	source      audit.Outbox
	producer    Producer
	topic       string
	breaker     *circuit.Breaker
	interval    time.Duration
	batchSize   int
	maxAttempts int
	logger      *slog.Logger
	metrics     *Metrics
	now         func() time.Time
}

type Option func(*Worker)

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithMaxAttempts parks an entry after n failed publishes.
func WithMaxAttempts(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(w *Worker) {
		w.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func NewWorker(source audit.Outbox, producer Producer, topic string, opts ...Option) *Worker {
	w := &Worker{
		source:      source,
		producer:    producer,
		topic:       topic,
		interval:    time.Second,
		batchSize:   100,
		maxAttempts: 10,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.breaker == nil {
		w.breaker = circuit.New("kafka", circuit.WithFailureThreshold(3), circuit.WithCooldown(10*time.Second))
	}
	return w
}

// Run relays until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if _, err := w.RelayOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes one batch and returns how many entries were published.
// The batch stops at the first failure so entries are never published out of
// commit order.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	if !w.breaker.Allow() {
		if w.metrics != nil {
			w.metrics.SkippedOpenCircuit.Inc()
		}
		return 0, nil
	}

	entries, err := w.source.FetchPending(ctx, w.batchSize, w.maxAttempts)
	if err != nil {
		return 0, err
	}

	published := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		if err := w.producer.Publish(ctx, w.topic, []byte(e.AggregateID), e.Payload); err != nil {
			if markErr := w.source.MarkFailed(ctx, e.ID, err.Error()); markErr != nil {
				w.logger.ErrorContext(ctx, "failed to record outbox failure", "error", markErr, "entry_id", e.ID)
			}
			if w.metrics != nil {
				w.metrics.Failures.Inc()
			}
			if _, change := w.breaker.RecordFailure(); change.Opened {
				w.logger.WarnContext(ctx, "kafka circuit opened", "breaker", w.breaker.Name(), "error", err)
				w.setBreakerGauge(1)
			}
			break
		}
		published = append(published, e.ID)
		if _, change := w.breaker.RecordSuccess(); change.Closed {
			w.logger.InfoContext(ctx, "kafka circuit closed", "breaker", w.breaker.Name())
			w.setBreakerGauge(0)
		}
	}

	if err := w.source.MarkPublished(ctx, published, w.now()); err != nil {
		return 0, err
	}
	if w.metrics != nil {
		w.metrics.Published.Add(float64(len(published)))
	}
	return len(published), nil
}

func (w *Worker) setBreakerGauge(v float64) {
	if w.metrics != nil {
		w.metrics.CircuitBreakerState.Set(v)
	}
}
