// Package ledger models the hosting ledger's logical clock. Identity records
// read the current height for blocklock checks; operators advance it by
// mining blocks.
package ledger

import (
	"context"
	"sync"

	"smartid/pkg/domain"
)

// Clock is the narrow view of the ledger the services depend on.
type Clock interface {
	Height(ctx context.Context) (domain.Height, error)
	Advance(ctx context.Context, blocks uint64) (domain.Height, error)
}

// MemoryClock is a process-local clock.
type MemoryClock struct {
	mu     sync.Mutex
	height domain.Height
}

func NewMemoryClock(start domain.Height) *MemoryClock {
	return &MemoryClock{height: start}
}

func (c *MemoryClock) Height(context.Context) (domain.Height, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height, nil
}

func (c *MemoryClock) Advance(_ context.Context, blocks uint64) (domain.Height, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height += domain.Height(blocks)
	return c.height, nil
}
