package tx

import (
	"context"
	"errors"
)

type stagedKey struct{}

// Staged collects work that must run only once the surrounding store
// operation has committed. Stores that may run a mutation more than once
// open a fresh Staged per attempt and flush only the attempt that wins.
type Staged struct {
	pending []func(context.Context) error
}

// Stage returns ctx carrying an empty staging area.
func Stage(ctx context.Context) (context.Context, *Staged) {
	s := &Staged{}
	return context.WithValue(ctx, stagedKey{}, s), s
}

// AfterCommit queues fn on the staging area carried by ctx. Without one, fn
// runs immediately as part of the caller's unit of work.
func AfterCommit(ctx context.Context, fn func(context.Context) error) error {
	if s, ok := ctx.Value(stagedKey{}).(*Staged); ok {
		s.pending = append(s.pending, fn)
		return nil
	}
	return fn(ctx)
}

// Len reports how many functions are queued.
func (s *Staged) Len() int {
	return len(s.pending)
}

// Flush runs the queued functions in order and empties the staging area.
// Every function runs; their errors are joined.
func (s *Staged) Flush(ctx context.Context) error {
	pending := s.pending
	s.pending = nil
	var errs []error
	for _, fn := range pending {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
