package models

import "smartid/pkg/domain"

// Status is the outcome code carried by every status event. The set is closed;
// removals reuse StatusUpdated.
type Status uint8

const (
	StatusUpdated Status = 3
	StatusCreated Status = 4
	StatusDebug   Status = 5
)

func (s Status) String() string {
	switch s {
	case StatusUpdated:
		return "updated"
	case StatusCreated:
		return "created"
	case StatusDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// Operation names a public identity operation.
type Operation string

const (
	OpCreate            Operation = "create"
	OpGetController     Operation = "get_controller"
	OpGetOverride       Operation = "get_override"
	OpSetController     Operation = "set_controller"
	OpSetOverride       Operation = "set_override"
	OpAddAttribute      Operation = "add_attribute"
	OpRemoveAttribute   Operation = "remove_attribute"
	OpUpdateAttribute   Operation = "update_attribute"
	OpAddEndorsement    Operation = "add_endorsement"
	OpAcceptEndorsement Operation = "accept_endorsement"
	OpRemoveEndorsement Operation = "remove_endorsement"
	OpSetSigningKey     Operation = "set_signing_public_key"
	OpSetEncryptionKey  Operation = "set_encryption_public_key"
	OpGetSigningKey     Operation = "get_signing_public_key"
	OpGetEncryptionKey  Operation = "get_encryption_public_key"
	OpHasAttribute      Operation = "has_attribute"
	OpCheckEndorsement  Operation = "check_endorsement_exists"
	OpGetEndorsement    Operation = "get_endorsement"
	OpDeposit           Operation = "deposit"
	OpDispose           Operation = "dispose"
	OpDescribe          Operation = "describe"
)

// Event is one status record produced by a mutating operation.
type Event struct {
	Operation Operation    `json:"operation"`
	Status    Status       `json:"status"`
	Subject   *domain.Hash `json:"subject,omitempty"`
}

// Result is the typed outcome of a mutating operation: the operation invoked
// and every status event it produced, in order.
type Result struct {
	Operation Operation `json:"operation"`
	Events    []Event   `json:"events"`
}

func newResult(op Operation) Result {
	return Result{Operation: op}
}

func (r *Result) emit(op Operation, status Status, subject *domain.Hash) {
	r.Events = append(r.Events, Event{Operation: op, Status: status, Subject: subject})
}

// Statuses returns the status codes in emission order.
func (r Result) Statuses() []Status {
	out := make([]Status, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Status
	}
	return out
}

func subject(h domain.Hash) *domain.Hash {
	return &h
}
