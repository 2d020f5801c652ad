package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when no snapshot is cached.
var ErrCacheMiss = errors.New("status: no cached snapshot")

const defaultCacheKey = "wellness:dashboard:status"

// RedisCache stores the latest snapshot as JSON under a single key.
type RedisCache struct {
	redis *redis.Client
	key   string
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{redis: client, key: defaultCacheKey}
}

// WithKey overrides the Redis key, e.g. to separate environments.
func (c *RedisCache) WithKey(key string) *RedisCache {
	if key != "" {
		c.key = key
	}
	return c
}

func (c *RedisCache) Load(ctx context.Context) (*Snapshot, error) {
	if c == nil || c.redis == nil {
		return nil, ErrCacheMiss
	}
	data, err := c.redis.Get(ctx, c.key).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("status: load snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("status: decode snapshot: %w", err)
	}
	return &snap, nil
}

func (c *RedisCache) Save(ctx context.Context, snap Snapshot, ttl time.Duration) error {
	if c == nil || c.redis == nil {
		return nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("status: encode snapshot: %w", err)
	}
	if err := c.redis.Set(ctx, c.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("status: save snapshot: %w", err)
	}
	return nil
}
