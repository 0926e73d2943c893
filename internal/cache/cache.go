// Package cache provides the TTL cache abstraction used by the analyzer,
// predictor, and integrator. Entries are valid only for a fixed window after
// insertion; a stale read is bounded by the TTL, never indefinite.
package cache

import (
	"context"
	"time"
)

// Cache is a key/value store with per-entry expiry. Implementations must be
// safe for concurrent use. Values round-trip through JSON so call sites do
// not depend on whether the backend is in-process or distributed.
type Cache interface {
	// Get unmarshals the cached value into dest and reports whether the key
	// was present and unexpired.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set stores value under key for the given TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a single key.
	Delete(ctx context.Context, key string) error

	// Flush removes all entries.
	Flush(ctx context.Context) error

	// Len returns the number of live entries, when the backend can tell.
	Len(ctx context.Context) int
}
