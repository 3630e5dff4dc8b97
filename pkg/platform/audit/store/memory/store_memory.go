package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "smartid/pkg/platform/audit"
)

type outboxRow struct {
	entry     audit.OutboxEntry
	published bool
	lastError string
}

// InMemoryStore keeps audit events per aggregate and mirrors them into an
// in-process outbox so the relay worker can run without Postgres.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]audit.Event
	all    []audit.Event
	outbox []*outboxRow
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.AggregateID] = append(s.events[event.AggregateID], event)
	s.all = append(s.all, event)
	s.outbox = append(s.outbox, &outboxRow{entry: audit.OutboxEntry{
		ID:            uuid.New(),
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     string(event.Action),
		Payload:       payload,
		CreatedAt:     event.Timestamp,
	}})
	return nil
}

func (s *InMemoryStore) ListByAggregate(_ context.Context, aggregateID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[aggregateID]...), nil
}

// ListAll returns every event in append order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.all...), nil
}

func (s *InMemoryStore) FetchPending(_ context.Context, limit, maxAttempts int) ([]audit.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.OutboxEntry
	for _, row := range s.outbox {
		if row.published || (maxAttempts > 0 && row.entry.Attempts >= maxAttempts) {
			continue
		}
		out = append(out, row.entry)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID, _ time.Time) error {
	want := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.outbox {
		if _, ok := want[row.entry.ID]; ok {
			row.published = true
		}
	}
	return nil
}

func (s *InMemoryStore) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.outbox {
		if row.entry.ID == id {
			row.entry.Attempts++
			row.lastError = reason
			return nil
		}
	}
	return nil
}

// PendingCount reports how many outbox entries are still unpublished.
func (s *InMemoryStore) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, row := range s.outbox {
		if !row.published {
			n++
		}
	}
	return n
}
