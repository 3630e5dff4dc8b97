// Package store persists approval registries.
package store

import (
	"context"
	"sync"

	"smartid/internal/registry/models"
	"smartid/pkg/domain"
	"smartid/pkg/platform/sentinel"
)

type entry struct {
	mu  sync.Mutex
	reg *models.Registry
}

// InMemory locks per registry, so curating one registry never waits on
// another.
type InMemory struct {
	mu      sync.RWMutex
	entries map[domain.RegistryID]*entry
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[domain.RegistryID]*entry)}
}

func (s *InMemory) Create(_ context.Context, reg *models.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[reg.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.entries[reg.ID] = &entry{reg: reg.Clone()}
	return nil
}

func (s *InMemory) lookup(id domain.RegistryID) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

func (s *InMemory) FindByID(_ context.Context, id domain.RegistryID) (*models.Registry, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.Clone(), nil
}

// Execute runs fn on a clone under the registry's lock and keeps the clone
// only when fn succeeds.
func (s *InMemory) Execute(ctx context.Context, id domain.RegistryID, fn func(context.Context, *models.Registry) error) (*models.Registry, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	working := e.reg.Clone()
	if err := fn(ctx, working); err != nil {
		return nil, err
	}
	e.reg = working
	return working.Clone(), nil
}
