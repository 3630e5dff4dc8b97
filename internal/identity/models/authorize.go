package models

import (
	"smartid/pkg/domain"
	dErrors "smartid/pkg/domain-errors"
)

// Capability is the role an operation requires of its caller.
type Capability int

const (
	CapAnyone Capability = iota
	CapController
	CapOverride
	CapNonController
	CapControllerOrEndorser
	CapDisposer
)

func (c Capability) String() string {
	switch c {
	case CapAnyone:
		return "anyone"
	case CapController:
		return "controller"
	case CapOverride:
		return "override"
	case CapNonController:
		return "non_controller"
	case CapControllerOrEndorser:
		return "controller_or_endorser"
	case CapDisposer:
		return "disposer"
	default:
		return "unknown"
	}
}

// capabilities is the role matrix. Every public operation must appear here;
// an operation missing from the table is denied.
var capabilities = map[Operation]Capability{
	OpGetController:     CapOverride,
	OpSetController:     CapOverride,
	OpGetOverride:       CapController,
	OpSetOverride:       CapController,
	OpAddAttribute:      CapController,
	OpRemoveAttribute:   CapController,
	OpUpdateAttribute:   CapController,
	OpAcceptEndorsement: CapController,
	OpSetSigningKey:     CapController,
	OpSetEncryptionKey:  CapController,
	OpAddEndorsement:    CapNonController,
	OpRemoveEndorsement: CapControllerOrEndorser,
	OpDispose:           CapDisposer,
	OpDeposit:           CapAnyone,
	OpHasAttribute:      CapAnyone,
	OpCheckEndorsement:  CapAnyone,
	OpGetEndorsement:    CapAnyone,
	OpGetSigningKey:     CapAnyone,
	OpGetEncryptionKey:  CapAnyone,
	OpDescribe:          CapAnyone,
}

// RequiredCapability returns the role an operation requires.
func RequiredCapability(op Operation) (Capability, bool) {
	c, ok := capabilities[op]
	return c, ok
}

// Access describes one call to authorize. Endorsement is set for operations
// that address a specific endorsement.
type Access struct {
	Operation   Operation
	Caller      domain.AccountID
	Endorsement *EndorsementKey
}

// Authorize is the capability check consulted before every operation. A
// disposed record rejects everything.
func (i *Identity) Authorize(a Access) error {
	if i.IsDisposed() {
		return dErrors.New(dErrors.CodeDisposed, "identity has been disposed")
	}
	required, ok := capabilities[a.Operation]
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "operation not permitted")
	}

	switch required {
	case CapAnyone:
		return nil
	case CapController:
		if a.Caller == i.Controller {
			return nil
		}
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the controller")
	case CapOverride:
		if a.Caller == i.Override {
			return nil
		}
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the override")
	case CapNonController:
		if a.Caller != i.Controller {
			return nil
		}
		return dErrors.New(dErrors.CodeUnauthorized, "controller cannot perform this operation")
	case CapControllerOrEndorser:
		if a.Caller == i.Controller {
			return nil
		}
		if a.Endorsement != nil {
			if entry, found := i.Endorsements[*a.Endorsement]; found && entry.Endorser == a.Caller {
				return nil
			}
		}
		return dErrors.New(dErrors.CodeUnauthorized, "caller is neither the controller nor the endorser")
	case CapDisposer:
		if i.DisposePolicy == DisposeAnyone || a.Caller == i.Controller {
			return nil
		}
		return dErrors.New(dErrors.CodeUnauthorized, "caller may not dispose of this identity")
	}
	return dErrors.New(dErrors.CodeUnauthorized, "operation not permitted")
}
