package sentinel

import "errors"

// Sentinel errors for storage facts. Record stores and the ledger clock return
// these (optionally wrapped) and services translate them into domain errors:
//   - ErrNotFound: no record under the given ID
//   - ErrAlreadyUsed: a record with this ID already exists
//   - ErrConflict: a concurrent writer won the optimistic race
//   - ErrUnavailable: backend temporarily unreachable
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
