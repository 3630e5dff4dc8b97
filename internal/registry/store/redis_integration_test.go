//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"smartid/internal/registry/models"
	"smartid/internal/registry/store"
	"smartid/pkg/domain"
	"smartid/pkg/platform/sentinel"
	txcontext "smartid/pkg/platform/tx"
	"smartid/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = store.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.Client.FlushAll(context.Background()).Err())
}

func (s *RedisStoreSuite) newRegistry() *models.Registry {
	reg, err := models.NewRegistry(domain.NewRegistryID(), pgOwner, time.Now().UTC())
	s.Require().NoError(err)
	return reg
}

func (s *RedisStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	reg := s.newRegistry()
	h := domain.HashOf([]byte("approved"))
	reg.Contracts[h] = models.ContractApproved
	s.Require().NoError(s.store.Create(ctx, reg))

	found, err := s.store.FindByID(ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal(reg.Owner, found.Owner)
	s.Equal(reg.Contracts, found.Contracts)
	s.True(reg.CreatedAt.Equal(found.CreatedAt))

	s.ErrorIs(s.store.Create(ctx, reg), sentinel.ErrAlreadyUsed)
}

func (s *RedisStoreSuite) TestUnknownRegistry() {
	_, err := s.store.FindByID(context.Background(), domain.NewRegistryID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestExecuteDropsDeletedContracts() {
	ctx := context.Background()
	reg := s.newRegistry()
	h := domain.HashOf([]byte("gone"))
	reg.Contracts[h] = models.ContractSubmitted
	s.Require().NoError(s.store.Create(ctx, reg))

	_, err := s.store.Execute(ctx, reg.ID, func(_ context.Context, r *models.Registry) error {
		return r.Delete(h)
	})
	s.Require().NoError(err)

	found, err := s.store.FindByID(ctx, reg.ID)
	s.Require().NoError(err)
	s.Empty(found.Contracts)
}

func (s *RedisStoreSuite) TestExecuteFailureLeavesHashUntouched() {
	ctx := context.Background()
	reg := s.newRegistry()
	s.Require().NoError(s.store.Create(ctx, reg))

	boom := errors.New("boom")
	_, err := s.store.Execute(ctx, reg.ID, func(_ context.Context, r *models.Registry) error {
		_ = r.Submit(domain.HashOf([]byte("lost")))
		return boom
	})
	s.ErrorIs(err, boom)

	found, err := s.store.FindByID(ctx, reg.ID)
	s.Require().NoError(err)
	s.Empty(found.Contracts)
}

func (s *RedisStoreSuite) TestRetryFlushesOnlyCommittedAttempt() {
	ctx := context.Background()
	reg := s.newRegistry()
	s.Require().NoError(s.store.Create(ctx, reg))
	first := domain.HashOf([]byte("competing"))
	second := domain.HashOf([]byte("retried"))

	attempts, flushed := 0, 0
	out, err := s.store.Execute(ctx, reg.ID, func(attemptCtx context.Context, r *models.Registry) error {
		attempts++
		if attempts == 1 {
			_, err := s.store.Execute(ctx, reg.ID, func(_ context.Context, other *models.Registry) error {
				return other.Submit(first)
			})
			s.Require().NoError(err)
		}
		if err := r.Submit(second); err != nil {
			return err
		}
		return txcontext.AfterCommit(attemptCtx, func(context.Context) error {
			flushed++
			return nil
		})
	})
	s.Require().NoError(err)
	s.Equal(2, attempts)
	s.Equal(1, flushed)
	s.Len(out.Contracts, 2)
}
