// Package models holds the approval registry: a curated list of contract
// hashes whose owner decides which are approved for use.
package models

import (
	"maps"
	"time"

	"smartid/pkg/domain"
	dErrors "smartid/pkg/domain-errors"
)

// ContractStatus is the curation state of a registered contract hash.
type ContractStatus uint8

const (
	ContractSubmitted ContractStatus = 1
	ContractApproved  ContractStatus = 2
	ContractRejected  ContractStatus = 3
)

func (s ContractStatus) String() string {
	switch s {
	case ContractSubmitted:
		return "submitted"
	case ContractApproved:
		return "approved"
	case ContractRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

func (s ContractStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s ContractStatus) Valid() bool {
	return s >= ContractSubmitted && s <= ContractRejected
}

// Registry is one approval registry. Owner is fixed at creation.
type Registry struct {
	ID        domain.RegistryID
	Owner     domain.AccountID
	Contracts map[domain.Hash]ContractStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRegistry creates an empty registry owned by owner.
func NewRegistry(id domain.RegistryID, owner domain.AccountID, now time.Time) (*Registry, error) {
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "registry ID required")
	}
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "owner account required")
	}
	return &Registry{
		ID:        id,
		Owner:     owner,
		Contracts: map[domain.Hash]ContractStatus{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Submit registers h for review. Anyone may submit.
func (r *Registry) Submit(h domain.Hash) error {
	if _, ok := r.Contracts[h]; ok {
		return dErrors.New(dErrors.CodeAlreadyExists, "contract already submitted")
	}
	r.Contracts[h] = ContractSubmitted
	return nil
}

func (r *Registry) Approve(caller domain.AccountID, h domain.Hash) error {
	return r.decide(caller, h, ContractApproved)
}

func (r *Registry) Reject(caller domain.AccountID, h domain.Hash) error {
	return r.decide(caller, h, ContractRejected)
}

// decide sets a final status. Only the owner curates; decisions may be
// revised by a later decision.
func (r *Registry) decide(caller domain.AccountID, h domain.Hash, status ContractStatus) error {
	if caller != r.Owner {
		return dErrors.New(dErrors.CodeUnauthorized, "only the registry owner may decide contracts")
	}
	if _, ok := r.Contracts[h]; !ok {
		return dErrors.New(dErrors.CodeNotFound, "contract not found")
	}
	r.Contracts[h] = status
	return nil
}

// Delete removes h whatever its status. Anyone may delete.
func (r *Registry) Delete(h domain.Hash) error {
	if _, ok := r.Contracts[h]; !ok {
		return dErrors.New(dErrors.CodeNotFound, "contract not found")
	}
	delete(r.Contracts, h)
	return nil
}

// IsValid succeeds only for approved contracts. Absent hashes are not
// approved either.
func (r *Registry) IsValid(h domain.Hash) error {
	if r.Contracts[h] != ContractApproved {
		return dErrors.New(dErrors.CodeNotApproved, "contract is not approved")
	}
	return nil
}

// Status returns the curation state of h.
func (r *Registry) Status(h domain.Hash) (ContractStatus, error) {
	status, ok := r.Contracts[h]
	if !ok {
		return 0, dErrors.New(dErrors.CodeNotFound, "contract not found")
	}
	return status, nil
}

func (r *Registry) Touch(now time.Time) {
	r.UpdatedAt = now
}

func (r *Registry) Clone() *Registry {
	cp := *r
	cp.Contracts = maps.Clone(r.Contracts)
	if cp.Contracts == nil {
		cp.Contracts = map[domain.Hash]ContractStatus{}
	}
	return &cp
}
