package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache,
	// has expired, or was unreadable.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted.
	// Callers of Manager never see it; corruption is degraded to a miss.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is the raw byte-level cache backend. The Manager layers entry
// framing and lazy expiry on top, so a Store only needs best-effort
// persistence: losing data is a performance problem, never a correctness
// one.
type Store interface {
	// Get returns the stored bytes for key, or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores data under key. ttl is advisory; stores that support
	// native expiry (Redis) use it, the file store ignores it and relies
	// on the Manager's lazy expiry check.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes the stored bytes for key. Deleting a missing key is
	// not an error.
	Delete(ctx context.Context, key string) error
}
