package service

import (
	"context"

	"smartid/internal/identity/models"
	"smartid/pkg/domain"
)

// Get returns the public summary of a record.
func (s *Service) Get(ctx context.Context, id domain.IdentityID) (models.Summary, error) {
	rec, err := s.read(ctx, id)
	if err != nil {
		return models.Summary{}, err
	}
	return rec.Describe()
}

// GetController reveals the controller to the override holder only.
func (s *Service) GetController(ctx context.Context, id domain.IdentityID) (domain.AccountID, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return "", err
	}
	rec, err := s.read(ctx, id)
	if err != nil {
		return "", err
	}
	return rec.GetController(caller)
}

// GetOverride reveals the override to the controller only.
func (s *Service) GetOverride(ctx context.Context, id domain.IdentityID) (domain.AccountID, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return "", err
	}
	rec, err := s.read(ctx, id)
	if err != nil {
		return "", err
	}
	return rec.GetOverride(caller)
}

func (s *Service) HasAttribute(ctx context.Context, id domain.IdentityID, h domain.Hash) (bool, error) {
	rec, err := s.read(ctx, id)
	if err != nil {
		return false, err
	}
	return rec.HasAttribute(h)
}

// CheckEndorsement reports whether the endorsement is accepted and its
// attribute still present.
func (s *Service) CheckEndorsement(ctx context.Context, id domain.IdentityID, key models.EndorsementKey) (bool, error) {
	rec, err := s.read(ctx, id)
	if err != nil {
		return false, err
	}
	return rec.CheckEndorsementExists(key)
}

func (s *Service) GetEndorsement(ctx context.Context, id domain.IdentityID, key models.EndorsementKey) (models.EndorsementView, error) {
	rec, err := s.read(ctx, id)
	if err != nil {
		return models.EndorsementView{}, err
	}
	return rec.GetEndorsement(key)
}

func (s *Service) GetSigningKey(ctx context.Context, id domain.IdentityID) ([]byte, error) {
	rec, err := s.read(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.GetSigningPublicKey()
}

func (s *Service) GetEncryptionKey(ctx context.Context, id domain.IdentityID) ([]byte, error) {
	rec, err := s.read(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.GetEncryptionPublicKey()
}

// BlocksUntilTransfer reports how long the override holder must wait before
// the next controller change. Only the override may ask.
func (s *Service) BlocksUntilTransfer(ctx context.Context, id domain.IdentityID) (uint64, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return 0, err
	}
	rec, err := s.read(ctx, id)
	if err != nil {
		return 0, err
	}
	if _, err := rec.GetController(caller); err != nil {
		return 0, err
	}
	height, err := s.height(ctx)
	if err != nil {
		return 0, err
	}
	return rec.BlocksUntilTransfer(height), nil
}
