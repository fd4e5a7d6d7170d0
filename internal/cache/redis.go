package cache

import (
	"context"
	"fmt"
	"time"

	"myshop/pkg/redis"
)

// RedisCache shares the catalog views between instances.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps a connected client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, ok, err := c.client.Get(ctx, c.client.CacheKey(key))
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return value, ok, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.client.CacheKey(key), value, ttl); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	namespaced := make([]string, 0, len(keys))
	for _, key := range keys {
		namespaced = append(namespaced, c.client.CacheKey(key))
	}
	if err := c.client.Del(ctx, namespaced...); err != nil {
		return fmt.Errorf("cache delete %v: %w", keys, err)
	}
	return nil
}
