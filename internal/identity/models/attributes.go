package models

import (
	"smartid/pkg/domain"
	dErrors "smartid/pkg/domain-errors"
)

// AttributeSet holds the claim hashes asserted by the controller. A hash is
// its own key and value; presence is the only state.
type AttributeSet map[domain.Hash]struct{}

func (s AttributeSet) Has(h domain.Hash) bool {
	_, ok := s[h]
	return ok
}

func (s AttributeSet) add(h domain.Hash) error {
	if s.Has(h) {
		return dErrors.New(dErrors.CodeAlreadyExists, "attribute already exists")
	}
	s[h] = struct{}{}
	return nil
}

func (s AttributeSet) remove(h domain.Hash) error {
	if !s.Has(h) {
		return dErrors.New(dErrors.CodeNotFound, "attribute not found")
	}
	delete(s, h)
	return nil
}

// AddAttribute asserts a new claim hash.
func (i *Identity) AddAttribute(caller domain.AccountID, h domain.Hash) (Result, error) {
	if err := i.Authorize(Access{Operation: OpAddAttribute, Caller: caller}); err != nil {
		return Result{}, err
	}
	if err := i.Attributes.add(h); err != nil {
		return Result{}, err
	}
	res := newResult(OpAddAttribute)
	res.emit(OpAddAttribute, StatusCreated, subject(h))
	return res, nil
}

// RemoveAttribute retracts a claim hash. Endorsements referencing it are kept
// but stop validating.
func (i *Identity) RemoveAttribute(caller domain.AccountID, h domain.Hash) (Result, error) {
	if err := i.Authorize(Access{Operation: OpRemoveAttribute, Caller: caller}); err != nil {
		return Result{}, err
	}
	if err := i.Attributes.remove(h); err != nil {
		return Result{}, err
	}
	res := newResult(OpRemoveAttribute)
	res.emit(OpRemoveAttribute, StatusUpdated, subject(h))
	return res, nil
}

// UpdateAttribute replaces old with next as remove-then-add. Either both
// steps commit or neither does; a failing step surfaces as InvalidTransition
// wrapping the step's own error.
func (i *Identity) UpdateAttribute(caller domain.AccountID, old, next domain.Hash) (Result, error) {
	if err := i.Authorize(Access{Operation: OpUpdateAttribute, Caller: caller}); err != nil {
		return Result{}, err
	}

	res := newResult(OpUpdateAttribute)
	res.emit(OpUpdateAttribute, StatusDebug, nil)

	removed, err := i.RemoveAttribute(caller, old)
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInvalidTransition, "update attribute: remove step failed")
	}
	res.Events = append(res.Events, removed.Events...)

	added, err := i.AddAttribute(caller, next)
	if err != nil {
		i.Attributes[old] = struct{}{}
		return Result{}, dErrors.Wrap(err, dErrors.CodeInvalidTransition, "update attribute: add step failed")
	}
	res.Events = append(res.Events, added.Events...)

	res.emit(OpUpdateAttribute, StatusUpdated, subject(next))
	return res, nil
}

// HasAttribute is a public query: attributes are readable by hash.
func (i *Identity) HasAttribute(h domain.Hash) (bool, error) {
	if err := i.Authorize(Access{Operation: OpHasAttribute}); err != nil {
		return false, err
	}
	return i.Attributes.Has(h), nil
}
