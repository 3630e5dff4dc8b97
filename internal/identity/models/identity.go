package models

import (
	"bytes"
	"maps"
	"time"

	"smartid/pkg/domain"
	dErrors "smartid/pkg/domain-errors"
)

// RecordStatus is the lifecycle state of an identity record.
type RecordStatus string

const (
	RecordActive   RecordStatus = "active"
	RecordDisposed RecordStatus = "disposed"
)

// DisposePolicy decides who may dispose of a record.
type DisposePolicy string

const (
	DisposeController DisposePolicy = "controller"
	DisposeAnyone     DisposePolicy = "anyone"
)

// ParseDisposePolicy accepts "controller" and "anyone".
func ParseDisposePolicy(s string) (DisposePolicy, error) {
	switch DisposePolicy(s) {
	case DisposeController, DisposeAnyone:
		return DisposePolicy(s), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "dispose policy must be controller or anyone")
	}
}

// Identity is one self-sovereign identity record: the ownership guard, the
// attribute set, the endorsement book and the key profile, addressed by ID.
type Identity struct {
	ID domain.IdentityID
	Ownership
	Attributes    AttributeSet
	Endorsements  EndorsementBook
	Keys          KeyProfile
	Balance       uint64
	Status        RecordStatus
	DisposePolicy DisposePolicy
	CreatedHeight domain.Height
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DefaultMinTransferInterval is the blocklock length, in blocks, when none is
// configured.
const DefaultMinTransferInterval uint64 = 20

// Params are the creation-time settings captured on the record.
type Params struct {
	MinTransferInterval uint64
	DisposePolicy       DisposePolicy
}

// NewIdentity creates a record controlled and overridden by creator and
// returns the Created status record of the creation.
func NewIdentity(id domain.IdentityID, creator domain.AccountID, params Params, height domain.Height, now time.Time) (*Identity, Result, error) {
	if id.IsNil() {
		return nil, Result{}, dErrors.New(dErrors.CodeInvariantViolation, "identity ID required")
	}
	if creator.IsZero() {
		return nil, Result{}, dErrors.New(dErrors.CodeUnauthenticated, "creator account required")
	}
	policy := params.DisposePolicy
	if policy == "" {
		policy = DisposeController
	}
	if _, err := ParseDisposePolicy(string(policy)); err != nil {
		return nil, Result{}, err
	}
	rec := &Identity{
		ID: id,
		Ownership: Ownership{
			Controller:           creator,
			Override:             creator,
			LastControllerChange: height,
			MinTransferInterval:  params.MinTransferInterval,
		},
		Attributes:    AttributeSet{},
		Endorsements:  EndorsementBook{},
		Status:        RecordActive,
		DisposePolicy: policy,
		CreatedHeight: height,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	res := newResult(OpCreate)
	res.emit(OpCreate, StatusCreated, nil)
	return rec, res, nil
}

func (i *Identity) IsDisposed() bool {
	return i.Status == RecordDisposed
}

// Deposit adds funds to the record. Anyone may fund an active record.
func (i *Identity) Deposit(caller domain.AccountID, amount uint64) (Result, error) {
	if err := i.Authorize(Access{Operation: OpDeposit, Caller: caller}); err != nil {
		return Result{}, err
	}
	if amount == 0 {
		return Result{}, dErrors.New(dErrors.CodeValidation, "deposit amount must be positive")
	}
	if i.Balance+amount < i.Balance {
		return Result{}, dErrors.New(dErrors.CodeInvariantViolation, "balance overflow")
	}
	i.Balance += amount

	res := newResult(OpDeposit)
	res.emit(OpDeposit, StatusUpdated, nil)
	return res, nil
}

// Dispose marks the record disposed and returns the refunded balance, which
// is owed to caller.
func (i *Identity) Dispose(caller domain.AccountID) (Result, uint64, error) {
	if err := i.Authorize(Access{Operation: OpDispose, Caller: caller}); err != nil {
		return Result{}, 0, err
	}
	refund := i.Balance
	i.Balance = 0
	i.Status = RecordDisposed

	res := newResult(OpDispose)
	res.emit(OpDispose, StatusUpdated, nil)
	return res, refund, nil
}

// Touch records the time of a committed mutation.
func (i *Identity) Touch(now time.Time) {
	i.UpdatedAt = now
}

// Summary is the public view of a record. Roles are deliberately absent.
type Summary struct {
	ID                   domain.IdentityID `json:"id"`
	Status               RecordStatus      `json:"status"`
	AttributeCount       int               `json:"attribute_count"`
	EndorsementCount     int               `json:"endorsement_count"`
	HasSigningKey        bool              `json:"has_signing_key"`
	HasEncryptionKey     bool              `json:"has_encryption_key"`
	Balance              uint64            `json:"balance"`
	CreatedHeight        domain.Height     `json:"created_height"`
	LastControllerChange domain.Height     `json:"last_controller_change"`
	MinTransferInterval  uint64            `json:"min_transfer_interval"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// Describe returns the public summary of an active record.
func (i *Identity) Describe() (Summary, error) {
	if err := i.Authorize(Access{Operation: OpDescribe}); err != nil {
		return Summary{}, err
	}
	return Summary{
		ID:                   i.ID,
		Status:               i.Status,
		AttributeCount:       len(i.Attributes),
		EndorsementCount:     len(i.Endorsements),
		HasSigningKey:        len(i.Keys.SigningPublicKey) > 0,
		HasEncryptionKey:     len(i.Keys.EncryptionPublicKey) > 0,
		Balance:              i.Balance,
		CreatedHeight:        i.CreatedHeight,
		LastControllerChange: i.LastControllerChange,
		MinTransferInterval:  i.MinTransferInterval,
		CreatedAt:            i.CreatedAt,
		UpdatedAt:            i.UpdatedAt,
	}, nil
}

// Clone returns a deep copy. Stores mutate the clone and commit it only when
// the whole operation succeeds.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	out := *i
	out.Attributes = maps.Clone(i.Attributes)
	if out.Attributes == nil {
		out.Attributes = AttributeSet{}
	}
	out.Endorsements = maps.Clone(i.Endorsements)
	if out.Endorsements == nil {
		out.Endorsements = EndorsementBook{}
	}
	out.Keys = KeyProfile{
		SigningPublicKey:    bytes.Clone(i.Keys.SigningPublicKey),
		EncryptionPublicKey: bytes.Clone(i.Keys.EncryptionPublicKey),
	}
	return &out
}
