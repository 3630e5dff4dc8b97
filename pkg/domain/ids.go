// Package domain holds the primitive value types shared across the identity
// and registry contexts: record identifiers, account addresses, claim hashes
// and ledger heights. Every Parse function is a trust-boundary check.
package domain

import (
	"github.com/google/uuid"

	dErrors "smartid/pkg/domain-errors"
)

// IdentityID addresses one identity record in the record store.
type IdentityID uuid.UUID

// RegistryID addresses one approval registry in the record store.
type RegistryID uuid.UUID

// EventID identifies one audit event.
type EventID uuid.UUID

func NewIdentityID() IdentityID { return IdentityID(uuid.New()) }
func NewRegistryID() RegistryID { return RegistryID(uuid.New()) }
func NewEventID() EventID       { return EventID(uuid.New()) }

func (id IdentityID) String() string { return uuid.UUID(id).String() }
func (id RegistryID) String() string { return uuid.UUID(id).String() }
func (id EventID) String() string    { return uuid.UUID(id).String() }

func (id IdentityID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RegistryID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// ParseIdentityID parses a non-nil UUID into an IdentityID.
func ParseIdentityID(s string) (IdentityID, error) {
	u, err := parseUUID(s, "identity ID")
	if err != nil {
		return IdentityID{}, err
	}
	return IdentityID(u), nil
}

// ParseRegistryID parses a non-nil UUID into a RegistryID.
func ParseRegistryID(s string) (RegistryID, error) {
	u, err := parseUUID(s, "registry ID")
	if err != nil {
		return RegistryID{}, err
	}
	return RegistryID(u), nil
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

func (id IdentityID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id RegistryID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id EventID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }

func (id *IdentityID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *RegistryID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *EventID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
