package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"smartid/pkg/domain"
)

const defaultHeightKey = "smartid:ledger:height"

// RedisClock shares the ledger height between server instances. INCRBY keeps
// concurrent miners from losing blocks.
type RedisClock struct {
	client *redis.Client
	key    string
}

type RedisOption func(*RedisClock)

func WithKey(key string) RedisOption {
	return func(c *RedisClock) {
		if key != "" {
			c.key = key
		}
	}
}

func NewRedisClock(client *redis.Client, opts ...RedisOption) *RedisClock {
	c := &RedisClock{client: client, key: defaultHeightKey}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisClock) Height(ctx context.Context) (domain.Height, error) {
	h, err := c.client.Get(ctx, c.key).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read ledger height: %w", err)
	}
	return domain.Height(h), nil
}

func (c *RedisClock) Advance(ctx context.Context, blocks uint64) (domain.Height, error) {
	h, err := c.client.IncrBy(ctx, c.key, int64(blocks)).Result()
	if err != nil {
		return 0, fmt.Errorf("advance ledger height: %w", err)
	}
	return domain.Height(h), nil
}
