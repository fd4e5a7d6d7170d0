package redis

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

var _ fiber.Storage = (*LimiterStorage)(nil)

// LimiterStorage adapts the client to fiber.Storage so the limiter middleware
// shares its counters across instances.
type LimiterStorage struct {
	client  *Client
	timeout time.Duration
}

// NewLimiterStorage creates the fiber storage adapter.
func NewLimiterStorage(client *Client) *LimiterStorage {
	return &LimiterStorage{client: client, timeout: 2 * time.Second}
}

func (s *LimiterStorage) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Get returns nil, nil for a missing key as fiber expects.
func (s *LimiterStorage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	ctx, cancel := s.ctx()
	defer cancel()
	value, ok, err := s.client.Get(ctx, s.client.LimiterKey(key))
	if err != nil || !ok {
		return nil, err
	}
	return value, nil
}

func (s *LimiterStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	ctx, cancel := s.ctx()
	defer cancel()
	return s.client.Set(ctx, s.client.LimiterKey(key), val, exp)
}

func (s *LimiterStorage) Delete(key string) error {
	if key == "" {
		return nil
	}
	ctx, cancel := s.ctx()
	defer cancel()
	return s.client.Del(ctx, s.client.LimiterKey(key))
}

// Reset drops every limiter counter.
func (s *LimiterStorage) Reset() error {
	ctx, cancel := s.ctx()
	defer cancel()
	return s.client.DeleteByPrefix(ctx, buildKey(limiterPrefix)+":")
}

// Close is a no-op; the client is owned by the caller.
func (s *LimiterStorage) Close() error {
	return nil
}
