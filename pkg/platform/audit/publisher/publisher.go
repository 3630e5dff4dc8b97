// Package publisher fronts an audit store with optional asynchronous
// buffering.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"smartid/pkg/domain"
	audit "smartid/pkg/platform/audit"
)

var (
	ErrBufferFull = errors.New("audit buffer full")
	ErrClosed     = errors.New("audit publisher closed")
)

// Store is the subset of audit.Store the publisher writes through.
type Store interface {
	Append(ctx context.Context, event audit.Event) error
	ListByAggregate(ctx context.Context, aggregateID string) ([]audit.Event, error)
}

// Publisher appends audit events to a store. In synchronous mode (default)
// Emit returns the store's error, so a failed append fails the caller. With
// WithAsyncBuffer, Emit enqueues and a single goroutine drains to the store.
type Publisher struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
	buffer chan audit.Event
	wg     sync.WaitGroup
}

type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous delivery with a bounded queue.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan audit.Event, size)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event, filling in its ID, timestamp and category when unset.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == (domain.EventID{}) {
		event.ID = domain.NewEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if event.Category == "" {
		event.Category = event.Action.Category()
	}

	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}

// List returns the events recorded for one identity or registry.
func (p *Publisher) List(ctx context.Context, aggregateID string) ([]audit.Event, error) {
	return p.store.ListByAggregate(ctx, aggregateID)
}

// Close stops accepting events and waits for the async buffer to drain.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.buffer != nil {
		close(p.buffer)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("failed to persist audit event",
				"error", err,
				"action", event.Action,
				"aggregate_id", event.AggregateID,
			)
		}
	}
}
