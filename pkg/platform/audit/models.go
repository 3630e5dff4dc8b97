package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"smartid/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so sinks
// can route and retain them differently.
type EventCategory string

const (
	// CategoryOwnership covers role changes and record lifecycle. These decide
	// who controls an identity and are retained longest.
	CategoryOwnership EventCategory = "ownership"

	// CategoryAttestation covers attributes, endorsements and key material.
	CategoryAttestation EventCategory = "attestation"

	// CategoryRegistry covers approval registry curation.
	CategoryRegistry EventCategory = "registry"
)

// AggregateType names the kind of record an event belongs to.
type AggregateType string

const (
	AggregateIdentity AggregateType = "identity"
	AggregateRegistry AggregateType = "registry"
)

// Action is the audited operation. Identity actions share their names with
// the identity operations that produce them.
type Action string

const (
	ActionIdentityCreated     Action = "create"
	ActionControllerChanged   Action = "set_controller"
	ActionOverrideChanged     Action = "set_override"
	ActionAttributeAdded      Action = "add_attribute"
	ActionAttributeRemoved    Action = "remove_attribute"
	ActionAttributeUpdated    Action = "update_attribute"
	ActionEndorsementAdded    Action = "add_endorsement"
	ActionEndorsementAccepted Action = "accept_endorsement"
	ActionEndorsementRemoved  Action = "remove_endorsement"
	ActionSigningKeySet       Action = "set_signing_public_key"
	ActionEncryptionKeySet    Action = "set_encryption_public_key"
	ActionDeposited           Action = "deposit"
	ActionDisposed            Action = "dispose"

	ActionRegistryCreated   Action = "registry_created"
	ActionContractSubmitted Action = "contract_submitted"
	ActionContractApproved  Action = "contract_approved"
	ActionContractRejected  Action = "contract_rejected"
	ActionContractDeleted   Action = "contract_deleted"
)

var actionCategories = map[Action]EventCategory{
	ActionIdentityCreated:   CategoryOwnership,
	ActionControllerChanged: CategoryOwnership,
	ActionOverrideChanged:   CategoryOwnership,
	ActionDeposited:         CategoryOwnership,
	ActionDisposed:          CategoryOwnership,

	ActionAttributeAdded:      CategoryAttestation,
	ActionAttributeRemoved:    CategoryAttestation,
	ActionAttributeUpdated:    CategoryAttestation,
	ActionEndorsementAdded:    CategoryAttestation,
	ActionEndorsementAccepted: CategoryAttestation,
	ActionEndorsementRemoved:  CategoryAttestation,
	ActionSigningKeySet:       CategoryAttestation,
	ActionEncryptionKeySet:    CategoryAttestation,

	ActionRegistryCreated:   CategoryRegistry,
	ActionContractSubmitted: CategoryRegistry,
	ActionContractApproved:  CategoryRegistry,
	ActionContractRejected:  CategoryRegistry,
	ActionContractDeleted:   CategoryRegistry,
}

// Category returns the category for an action. Unknown actions are treated
// as attestation events.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryAttestation
}

// Event is one committed, audited state change. Keep it transport-agnostic
// so stores and sinks can fan out.
type Event struct {
	ID            domain.EventID   `json:"id"`
	Category      EventCategory    `json:"category"`
	Timestamp     time.Time        `json:"timestamp"`
	AggregateType AggregateType    `json:"aggregate_type"`
	AggregateID   string           `json:"aggregate_id"`
	Action        Action           `json:"action"`
	Status        uint8            `json:"status,omitempty"`
	Actor         domain.AccountID `json:"actor,omitempty"`
	Subject       string           `json:"subject,omitempty"`
	Height        domain.Height    `json:"height"`
	RequestID     string           `json:"request_id,omitempty"`
}

// OutboxEntry is a serialized event waiting to be relayed to the broker.
type OutboxEntry struct {
	ID            uuid.UUID
	AggregateType AggregateType
	AggregateID   string
	EventType     string
	Payload       []byte
	Attempts      int
	CreatedAt     time.Time
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAggregate(ctx context.Context, aggregateID string) ([]Event, error)
}

// Outbox is the relay side of a store: entries not yet published.
type Outbox interface {
	FetchPending(ctx context.Context, limit, maxAttempts int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}
