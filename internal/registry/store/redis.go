package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"smartid/internal/registry/models"
	"smartid/pkg/domain"
	"smartid/pkg/platform/sentinel"
	txcontext "smartid/pkg/platform/tx"
)

const (
	registryKeyPrefix = "smartid:registry:"
	contractField     = "contract:"
	maxWatchRetries   = 5
)

// RedisStore keeps each registry as one hash: owner and timestamps plus one
// field per contract holding its status.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func registryKey(id domain.RegistryID) string {
	return registryKeyPrefix + id.String()
}

func toFields(reg *models.Registry) map[string]any {
	fields := map[string]any{
		"owner":      reg.Owner.String(),
		"created_at": reg.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": reg.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	for h, status := range reg.Contracts {
		fields[contractField+h.String()] = int(status)
	}
	return fields
}

func fromFields(id domain.RegistryID, fields map[string]string) (*models.Registry, error) {
	reg := &models.Registry{
		ID:        id,
		Owner:     domain.AccountID(fields["owner"]),
		Contracts: map[domain.Hash]models.ContractStatus{},
	}
	var err error
	if reg.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	if reg.UpdatedAt, err = time.Parse(time.RFC3339Nano, fields["updated_at"]); err != nil {
		return nil, fmt.Errorf("decode updated_at: %w", err)
	}
	for field, value := range fields {
		raw, ok := strings.CutPrefix(field, contractField)
		if !ok {
			continue
		}
		h, err := domain.ParseHash(raw)
		if err != nil {
			return nil, fmt.Errorf("decode contract hash: %w", err)
		}
		status, err := strconv.ParseUint(value, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("decode contract status: %w", err)
		}
		reg.Contracts[h] = models.ContractStatus(status)
	}
	return reg, nil
}

func (s *RedisStore) Create(ctx context.Context, reg *models.Registry) error {
	key := registryKey(reg.ID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("check registry: %w", err)
		}
		if n > 0 {
			return sentinel.ErrAlreadyUsed
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, toFields(reg))
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return sentinel.ErrAlreadyUsed
	}
	return err
}

func (s *RedisStore) FindByID(ctx context.Context, id domain.RegistryID) (*models.Registry, error) {
	fields, err := s.client.HGetAll(ctx, registryKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	if len(fields) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return fromFields(id, fields)
}

// Execute retries fn when a concurrent writer invalidates the WATCH, so fn
// may run more than once per call. Work fn stages with txcontext.AfterCommit
// runs once, after the attempt that commits; a flush error is returned with
// the committed record.
func (s *RedisStore) Execute(ctx context.Context, id domain.RegistryID, fn func(context.Context, *models.Registry) error) (*models.Registry, error) {
	key := registryKey(id)
	for range maxWatchRetries {
		var out *models.Registry
		attemptCtx, staged := txcontext.Stage(ctx)
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			fields, err := tx.HGetAll(ctx, key).Result()
			if err != nil {
				return fmt.Errorf("load registry: %w", err)
			}
			if len(fields) == 0 {
				return sentinel.ErrNotFound
			}
			reg, err := fromFields(id, fields)
			if err != nil {
				return err
			}
			if err := fn(attemptCtx, reg); err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				pipe.HSet(ctx, key, toFields(reg))
				return nil
			})
			if err != nil {
				return err
			}
			out = reg
			return nil
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := staged.Flush(ctx); err != nil {
			return out, fmt.Errorf("flush after commit: %w", err)
		}
		return out, nil
	}
	return nil, sentinel.ErrConflict
}
