package cache

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process Cache backed by patrickmn/go-cache.
// Entries are stored as marshaled JSON so Get returns a copy, never a shared
// reference to the cached value.
type Memory struct {
	inner *gocache.Cache
}

// NewMemory creates a Memory cache. defaultTTL applies when Set receives a
// zero TTL; expired entries are purged every cleanupInterval.
func NewMemory(defaultTTL, cleanupInterval time.Duration) *Memory {
	return &Memory{inner: gocache.New(defaultTTL, cleanupInterval)}
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	raw, found := m.inner.Get(key)
	if !found {
		return false, nil
	}
	data, ok := raw.([]byte)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.inner.Set(key, data, ttl)
	return nil
}

// Delete implements Cache.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.inner.Delete(key)
	return nil
}

// Flush implements Cache.
func (m *Memory) Flush(_ context.Context) error {
	m.inner.Flush()
	return nil
}

// Len implements Cache.
func (m *Memory) Len(_ context.Context) int {
	return m.inner.ItemCount()
}
