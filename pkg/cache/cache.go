// Package cache provides step-result caching for flow execution.
//
// A flow step is deterministic given its configuration slice, its input
// files, and the generated tool script. The runner hashes those three into a
// step key and consults the cache before launching the external tool, so
// re-running an unchanged flow is close to free.
//
// # Backends
//
//   - FileCache: JSON entries under a directory (CLI default, ~/.cache/rcxbench/)
//   - RedisCache: shared cache for compute-farm deployments
//   - NullCache: caching disabled (--no-cache)
package cache

import (
	"context"
	"time"
)

// Cache is the interface implemented by all cache backends.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves a value. The second return value reports whether the
	// key was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. A zero TTL means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// DefaultTTL is the default lifetime for cached step results.
const DefaultTTL = 30 * 24 * time.Hour
