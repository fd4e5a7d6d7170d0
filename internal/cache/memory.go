package cache

import (
	"context"
	"time"

	"github.com/viccon/sturdyc"
)

// MemoryConfig sizes the in-process cache.
type MemoryConfig struct {
	Capacity           int
	NumShards          int
	EvictionPercentage int
	// MaxTTL bounds how long sturdyc keeps any entry around; per-entry TTLs are
	// enforced on read and must not exceed it.
	MaxTTL time.Duration
}

// DefaultMemoryConfig is sized for the two catalog views with room to spare.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Capacity:           1024,
		NumShards:          4,
		EvictionPercentage: 10,
		MaxTTL:             time.Hour,
	}
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is a single-node Cache backed by sturdyc.
type MemoryCache struct {
	client *sturdyc.Client[memoryEntry]
	now    func() time.Time
}

// NewMemoryCache creates a sturdyc-backed cache.
func NewMemoryCache(cfg MemoryConfig) *MemoryCache {
	def := DefaultMemoryConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.NumShards <= 0 {
		cfg.NumShards = def.NumShards
	}
	if cfg.EvictionPercentage <= 0 {
		cfg.EvictionPercentage = def.EvictionPercentage
	}
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = def.MaxTTL
	}
	return &MemoryCache{
		client: sturdyc.New[memoryEntry](cfg.Capacity, cfg.NumShards, cfg.MaxTTL, cfg.EvictionPercentage),
		now:    time.Now,
	}
}

// Get returns a copy of the stored value when present and not expired.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := c.client.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.client.Delete(key)
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

// Set stores value under key. A non-positive ttl keeps the entry until sturdyc evicts it.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.client.Set(key, entry)
	return nil
}

// Delete removes the keys. Missing keys are ignored.
func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		c.client.Delete(key)
	}
	return nil
}
