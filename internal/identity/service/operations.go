package service

import (
	"context"
	"strconv"

	"smartid/internal/identity/models"
	"smartid/pkg/domain"
)

// SetController hands control to next. The caller must hold the override
// role and the blocklock must have elapsed.
func (s *Service) SetController(ctx context.Context, id domain.IdentityID, next domain.AccountID) (models.Result, error) {
	return s.mutate(ctx, id, models.OpSetController, next.String(),
		func(rec *models.Identity, caller domain.AccountID, height domain.Height) (models.Result, error) {
			return rec.SetController(caller, next, height)
		})
}

// SetOverride rotates the override role. Controller only.
func (s *Service) SetOverride(ctx context.Context, id domain.IdentityID, next domain.AccountID) (models.Result, error) {
	return s.mutate(ctx, id, models.OpSetOverride, next.String(),
		func(rec *models.Identity, caller domain.AccountID, _ domain.Height) (models.Result, error) {
			return rec.SetOverride(caller, next)
		})
}

func (s *Service) AddAttribute(ctx context.Context, id domain.IdentityID, h domain.Hash) (models.Result, error) {
	return s.mutate(ctx, id, models.OpAddAttribute, h.String(),
		func(rec *models.Identity, caller domain.AccountID, _ domain.Height) (models.Result, error) {
			return rec.AddAttribute(caller, h)
		})
}

func (s *Service) RemoveAttribute(ctx context.Context, id domain.IdentityID, h domain.Hash) (models.Result, error) {
	return s.mutate(ctx, id, models.OpRemoveAttribute, h.String(),
		func(rec *models.Identity, caller domain.AccountID, _ domain.Height) (models.Result, error) {
			return rec.RemoveAttribute(caller, h)
		})
}

// UpdateAttribute replaces old with next in one transaction.
func (s *Service) UpdateAttribute(ctx context.Context, id domain.IdentityID, old, next domain.Hash) (models.Result, error) {
	return s.mutate(ctx, id, models.OpUpdateAttribute, old.String()+"->"+next.String(),
		func(rec *models.Identity, caller domain.AccountID, _ domain.Height) (models.Result, error) {
			return rec.UpdateAttribute(caller, old, next)
		})
}

func (s *Service) AddEndorsement(ctx context.Context, id domain.IdentityID, key models.EndorsementKey) (models.Result, error) {
	return s.mutate(ctx, id, models.OpAddEndorsement, endorsementSubject(key),
		func(rec *models.Identity, caller domain.AccountID, _ domain.Height) (models.Result, error) {
			return rec.AddEndorsement(caller, key)
		})
}

func (s *Service) AcceptEndorsement(ctx context.Context, id domain.IdentityID, key models.EndorsementKey) (models.Result, error) {
	return s.mutate(ctx, id, models.OpAcceptEndorsement, endorsementSubject(key),
		func(rec *models.Identity, caller domain.AccountID, _ domain.Height) (models.Result, error) {
			return rec.AcceptEndorsement(caller, key)
		})
}

func (s *Service) RemoveEndorsement(ctx context.Context, id domain.IdentityID, key models.EndorsementKey) (models.Result, error) {
	return s.mutate(ctx, id, models.OpRemoveEndorsement, endorsementSubject(key),
		func(rec *models.Identity, caller domain.AccountID, _ domain.Height) (models.Result, error) {
			return rec.RemoveEndorsement(caller, key)
		})
}

func (s *Service) SetSigningKey(ctx context.Context, id domain.IdentityID, key []byte) (models.Result, error) {
	return s.mutate(ctx, id, models.OpSetSigningKey, "",
		func(rec *models.Identity, caller domain.AccountID, _ domain.Height) (models.Result, error) {
			return rec.SetSigningPublicKey(caller, key)
		})
}

func (s *Service) SetEncryptionKey(ctx context.Context, id domain.IdentityID, key []byte) (models.Result, error) {
	return s.mutate(ctx, id, models.OpSetEncryptionKey, "",
		func(rec *models.Identity, caller domain.AccountID, _ domain.Height) (models.Result, error) {
			return rec.SetEncryptionPublicKey(caller, key)
		})
}

// Deposit funds the record. Any authenticated caller may deposit.
func (s *Service) Deposit(ctx context.Context, id domain.IdentityID, amount uint64) (models.Result, error) {
	return s.mutate(ctx, id, models.OpDeposit, strconv.FormatUint(amount, 10),
		func(rec *models.Identity, caller domain.AccountID, _ domain.Height) (models.Result, error) {
			return rec.Deposit(caller, amount)
		})
}

// Dispose retires the record and returns the balance refunded to the caller.
// Every later operation on the record fails with the disposed code.
func (s *Service) Dispose(ctx context.Context, id domain.IdentityID) (models.Result, uint64, error) {
	var refund uint64
	res, err := s.mutate(ctx, id, models.OpDispose, "",
		func(rec *models.Identity, caller domain.AccountID, _ domain.Height) (models.Result, error) {
			r, amount, err := rec.Dispose(caller)
			refund = amount
			return r, err
		})
	if err != nil {
		return models.Result{}, 0, err
	}
	return res, refund, nil
}

func endorsementSubject(key models.EndorsementKey) string {
	return key.Attribute.String() + "/" + key.Endorsement.String()
}
