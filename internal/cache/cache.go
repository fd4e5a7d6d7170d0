// Package cache holds the derived catalog views (bare product list, statistics)
// behind a small key-value interface with explicit TTLs and manual invalidation.
package cache

import (
	"context"
	"time"
)

// Fixed keys of the catalog views.
const (
	KeyProductList       = "product_list"
	KeyProductStatistics = "product_statistics"
)

// DefaultTTL is the lifetime of a cached view.
const DefaultTTL = 300 * time.Second

// Cache is a byte-valued store with per-entry TTL.
type Cache interface {
	// Get returns the value and true on a hit. A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CatalogKeys are the entries every product write invalidates.
func CatalogKeys() []string {
	return []string{KeyProductList, KeyProductStatistics}
}
