package service

import "context"

// StoreTx runs a unit of work atomically across the record store and the
// audit store.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// inMemoryStoreTx runs fn directly. Atomicity comes from the store's Execute,
// which discards the working copy when fn fails.
type inMemoryStoreTx struct{}

func newInMemoryStoreTx() *inMemoryStoreTx {
	return &inMemoryStoreTx{}
}

func (t *inMemoryStoreTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
