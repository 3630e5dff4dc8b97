// Package store persists identity records. Every backend implements Execute,
// which serializes mutations per record and commits a mutated clone only
// when the callback succeeds.
package store

import (
	"context"
	"sync"

	"smartid/internal/identity/models"
	"smartid/pkg/domain"
	"smartid/pkg/platform/sentinel"
)

// InMemory keeps records in a map guarded by one mutex.
type InMemory struct {
	mu      sync.Mutex
	records map[domain.IdentityID]*models.Identity
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[domain.IdentityID]*models.Identity)}
}

func (s *InMemory) Create(_ context.Context, rec *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.IdentityID) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return rec.Clone(), nil
}

// Execute holds the lock while fn mutates a clone of the record. The clone
// replaces the stored record only when fn returns nil.
func (s *InMemory) Execute(ctx context.Context, id domain.IdentityID, fn func(context.Context, *models.Identity) error) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := rec.Clone()
	if err := fn(ctx, working); err != nil {
		return nil, err
	}
	s.records[id] = working
	return working.Clone(), nil
}
