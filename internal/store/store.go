package store

import (
	"context"
	"time"
)

// EvictCallback is called when an entry is evicted to make room for another.
// Not all providers support eviction callbacks (e.g., Redis relies on server-side eviction).
type EvictCallback func(key string)

// Store is the key-value backend the cache layer persists payloads in.
// Keys are canonical cache key strings; providers apply their own namespace.
//
// Errors returned by a provider are the backend's own errors. A missing key
// is not an error: Get reports it with ok == false.
type Store interface {
	// Get retrieves the payload stored under key.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key with no expiry, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the given keys. Absent keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Expire sets a time-to-live on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Exists reports whether key is currently live.
	Exists(ctx context.Context, key string) (bool, error)

	// Keys lists every live key in the store's namespace.
	Keys(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store (e.g., network connections).
	Close() error
}
