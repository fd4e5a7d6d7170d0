// Package redistest provides an in-memory stand-in for the go-redis commands
// used by pkg/redis.
package redistest

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps string values and remembers the TTL each key was written with.
type Store struct {
	mu   sync.Mutex
	data map[string]string
	TTLs map[string]time.Duration
	// Err, when set, is returned by every command.
	Err error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]string),
		TTLs: make(map[string]time.Duration),
	}
}

// Has reports whether key is present.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

func (s *Store) Ping(context.Context) *redis.StatusCmd {
	if s.Err != nil {
		return redis.NewStatusResult("", s.Err)
	}
	return redis.NewStatusResult("PONG", nil)
}

func (s *Store) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if s.Err != nil {
		return redis.NewStatusResult("", s.Err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		s.data[key] = string(v)
	case string:
		s.data[key] = v
	default:
		s.data[key] = fmt.Sprint(v)
	}
	s.TTLs[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (s *Store) Get(_ context.Context, key string) *redis.StringCmd {
	if s.Err != nil {
		return redis.NewStringResult("", s.Err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (s *Store) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if s.Err != nil {
		return redis.NewIntResult(0, s.Err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, key := range keys {
		if _, ok := s.data[key]; ok {
			n++
		}
		delete(s.data, key)
		delete(s.TTLs, key)
	}
	return redis.NewIntResult(n, nil)
}

// Scan returns every matching key in a single page.
func (s *Store) Scan(_ context.Context, _ uint64, match string, _ int64) *redis.ScanCmd {
	if s.Err != nil {
		return redis.NewScanCmdResult(nil, 0, s.Err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for key := range s.data {
		if ok, _ := path.Match(match, key); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return redis.NewScanCmdResult(keys, 0, nil)
}
