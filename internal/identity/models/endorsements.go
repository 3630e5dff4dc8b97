package models

import (
	"smartid/pkg/domain"
	dErrors "smartid/pkg/domain-errors"
)

// EndorsementKey addresses one endorsement by the attribute it references and
// the endorsement's own hash.
type EndorsementKey struct {
	Attribute   domain.Hash
	Endorsement domain.Hash
}

// Endorsement is a third party's attestation over an attribute. It becomes
// valid once the controller accepts it, and stays valid only while the
// referenced attribute is present.
type Endorsement struct {
	Endorser domain.AccountID `json:"endorser"`
	Accepted bool             `json:"accepted"`
}

// EndorsementBook holds every recorded endorsement of one identity.
type EndorsementBook map[EndorsementKey]Endorsement

// EndorsementView is the public projection of one endorsement.
type EndorsementView struct {
	Attribute   domain.Hash      `json:"attribute"`
	Endorsement domain.Hash      `json:"endorsement"`
	Endorser    domain.AccountID `json:"endorser"`
	Accepted    bool             `json:"accepted"`
	Valid       bool             `json:"valid"`
}

// AddEndorsement records caller's attestation over an attribute that is
// currently present. The controller cannot endorse its own claims.
func (i *Identity) AddEndorsement(caller domain.AccountID, key EndorsementKey) (Result, error) {
	if err := i.Authorize(Access{Operation: OpAddEndorsement, Caller: caller}); err != nil {
		return Result{}, err
	}
	if !i.Attributes.Has(key.Attribute) {
		return Result{}, dErrors.New(dErrors.CodeNotFound, "attribute not found")
	}
	if _, ok := i.Endorsements[key]; ok {
		return Result{}, dErrors.New(dErrors.CodeAlreadyExists, "endorsement already exists")
	}
	i.Endorsements[key] = Endorsement{Endorser: caller}

	res := newResult(OpAddEndorsement)
	res.emit(OpAddEndorsement, StatusCreated, subject(key.Endorsement))
	return res, nil
}

// AcceptEndorsement marks an endorsement as accepted by the controller.
func (i *Identity) AcceptEndorsement(caller domain.AccountID, key EndorsementKey) (Result, error) {
	if err := i.Authorize(Access{Operation: OpAcceptEndorsement, Caller: caller}); err != nil {
		return Result{}, err
	}
	entry, ok := i.Endorsements[key]
	if !ok {
		return Result{}, dErrors.New(dErrors.CodeNotFound, "endorsement not found")
	}
	entry.Accepted = true
	i.Endorsements[key] = entry

	res := newResult(OpAcceptEndorsement)
	res.emit(OpAcceptEndorsement, StatusUpdated, subject(key.Endorsement))
	return res, nil
}

// RemoveEndorsement deletes an endorsement. Permitted for the controller and
// for the original endorser, including after the attribute has been removed.
func (i *Identity) RemoveEndorsement(caller domain.AccountID, key EndorsementKey) (Result, error) {
	if err := i.Authorize(Access{Operation: OpRemoveEndorsement, Caller: caller, Endorsement: &key}); err != nil {
		return Result{}, err
	}
	if _, ok := i.Endorsements[key]; !ok {
		return Result{}, dErrors.New(dErrors.CodeNotFound, "endorsement not found")
	}
	delete(i.Endorsements, key)

	res := newResult(OpRemoveEndorsement)
	res.emit(OpRemoveEndorsement, StatusUpdated, subject(key.Endorsement))
	return res, nil
}

// CheckEndorsementExists reports whether an endorsement is valid: recorded,
// accepted, and referencing an attribute that is still present.
func (i *Identity) CheckEndorsementExists(key EndorsementKey) (bool, error) {
	if err := i.Authorize(Access{Operation: OpCheckEndorsement}); err != nil {
		return false, err
	}
	return i.endorsementValid(key), nil
}

// GetEndorsement returns the public view of one recorded endorsement.
func (i *Identity) GetEndorsement(key EndorsementKey) (EndorsementView, error) {
	if err := i.Authorize(Access{Operation: OpGetEndorsement}); err != nil {
		return EndorsementView{}, err
	}
	entry, ok := i.Endorsements[key]
	if !ok {
		return EndorsementView{}, dErrors.New(dErrors.CodeNotFound, "endorsement not found")
	}
	return EndorsementView{
		Attribute:   key.Attribute,
		Endorsement: key.Endorsement,
		Endorser:    entry.Endorser,
		Accepted:    entry.Accepted,
		Valid:       i.endorsementValid(key),
	}, nil
}

func (i *Identity) endorsementValid(key EndorsementKey) bool {
	entry, ok := i.Endorsements[key]
	return ok && entry.Accepted && i.Attributes.Has(key.Attribute)
}
