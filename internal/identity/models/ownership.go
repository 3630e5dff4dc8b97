package models

import (
	"smartid/pkg/domain"
	dErrors "smartid/pkg/domain-errors"
)

// Ownership is the two-role control state of an identity together with the
// blocklock checkpoint.
//
// Invariants:
//   - Controller and Override are never the zero account
//   - Only Override may replace Controller; only Controller may replace Override
//   - After the first controller change, another change requires at least
//     MinTransferInterval blocks since LastControllerChange
//
// The blocklock bounds how fast a stolen override key can flip control. The
// legitimate controller rotates the override through SetOverride, which is
// not throttled because it needs the controller key.
type Ownership struct {
	Controller           domain.AccountID `json:"controller"`
	Override             domain.AccountID `json:"override"`
	LastControllerChange domain.Height    `json:"last_controller_change"`
	ControllerChanges    uint64           `json:"controller_changes"`
	MinTransferInterval  uint64           `json:"min_transfer_interval"`
}

// CanChangeController reports whether the blocklock permits a controller
// change at height.
func (o *Ownership) CanChangeController(height domain.Height) error {
	if o.ControllerChanges == 0 {
		return nil
	}
	if height.Since(o.LastControllerChange) < o.MinTransferInterval {
		return dErrors.New(dErrors.CodeRateLimited, "controller changed too recently")
	}
	return nil
}

// BlocksUntilTransfer returns how many more blocks must pass before a
// controller change is permitted at height. Zero means permitted now.
func (o *Ownership) BlocksUntilTransfer(height domain.Height) uint64 {
	if o.ControllerChanges == 0 {
		return 0
	}
	elapsed := height.Since(o.LastControllerChange)
	if elapsed >= o.MinTransferInterval {
		return 0
	}
	return o.MinTransferInterval - elapsed
}

func (o *Ownership) applyControllerChange(next domain.AccountID, height domain.Height) {
	o.Controller = next
	o.LastControllerChange = height
	o.ControllerChanges++
}

// GetController returns the controller. Only the override role may audit it.
func (i *Identity) GetController(caller domain.AccountID) (domain.AccountID, error) {
	if err := i.Authorize(Access{Operation: OpGetController, Caller: caller}); err != nil {
		return "", err
	}
	return i.Controller, nil
}

// GetOverride returns the override role. Only the controller may audit it.
func (i *Identity) GetOverride(caller domain.AccountID) (domain.AccountID, error) {
	if err := i.Authorize(Access{Operation: OpGetOverride, Caller: caller}); err != nil {
		return "", err
	}
	return i.Override, nil
}

// SetController replaces the controller at ledger height. Override-only and
// subject to the blocklock.
func (i *Identity) SetController(caller, next domain.AccountID, height domain.Height) (Result, error) {
	if err := i.Authorize(Access{Operation: OpSetController, Caller: caller}); err != nil {
		return Result{}, err
	}
	if next.IsZero() {
		return Result{}, dErrors.New(dErrors.CodeInvariantViolation, "controller cannot be empty")
	}
	if err := i.CanChangeController(height); err != nil {
		return Result{}, err
	}
	i.applyControllerChange(next, height)

	res := newResult(OpSetController)
	res.emit(OpSetController, StatusUpdated, nil)
	return res, nil
}

// SetOverride replaces the override role. Controller-only, never throttled.
func (i *Identity) SetOverride(caller, next domain.AccountID) (Result, error) {
	if err := i.Authorize(Access{Operation: OpSetOverride, Caller: caller}); err != nil {
		return Result{}, err
	}
	if next.IsZero() {
		return Result{}, dErrors.New(dErrors.CodeInvariantViolation, "override cannot be empty")
	}
	i.Override = next

	res := newResult(OpSetOverride)
	res.emit(OpSetOverride, StatusUpdated, nil)
	return res, nil
}
