package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	audit "smartid/pkg/platform/audit"
	txcontext "smartid/pkg/platform/tx"
)

// Store implements audit.Store with the transactional outbox pattern. Events
// are written to the outbox table inside the caller's transaction when one is
// present in the context, whether database/sql or pgx, and relayed to Kafka by
// the outbox worker.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append writes an audit event to the outbox.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	createdAt := event.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	args := []any{
		uuid.New().String(),
		string(event.AggregateType),
		event.AggregateID,
		string(event.Action),
		string(payload),
		createdAt,
	}
	if ptx, ok := txcontext.PgxFrom(ctx); ok {
		_, err = ptx.Exec(ctx, query, args...)
	} else {
		_, err = txcontext.Or(ctx, s.db).ExecContext(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByAggregate returns the events of one record in commit order.
func (s *Store) ListByAggregate(ctx context.Context, aggregateID string) ([]audit.Event, error) {
	query := `
		SELECT payload
		FROM outbox
		WHERE aggregate_id = $1
		ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, query, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var event audit.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("decode audit event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// FetchPending returns unpublished entries that have not exhausted their
// attempts, oldest first.
func (s *Store) FetchPending(ctx context.Context, limit, maxAttempts int) ([]audit.OutboxEntry, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, attempts, created_at
		FROM outbox
		WHERE published_at IS NULL AND attempts < $1
		ORDER BY seq
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []audit.OutboxEntry
	for rows.Next() {
		var (
			e             audit.OutboxEntry
			aggregateType string
		)
		if err := rows.Scan(&e.ID, &aggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.Attempts, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		e.AggregateType = audit.AggregateType(aggregateType)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`,
		at, pq.Array(keys),
	)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET attempts = attempts + 1, last_error = $2 WHERE id = $1`,
		id, reason,
	)
	if err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	return nil
}
