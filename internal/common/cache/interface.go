// Package cache provides the cache abstraction used for status snapshots
// and evaluation claims.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key does not exist.
var ErrCacheMiss = errors.New("cache: key not found")

// Cache defines the unified interface for cache operations.
// The abstraction keeps business logic independent of the concrete backend.
type Cache interface {
	// Get retrieves the value for the given key.
	// Returns ErrCacheMiss when the key does not exist.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value with the given TTL (0 means no expiration).
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores a value only if the key does not exist.
	// Returns true when the value was stored.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes the given keys.
	Delete(ctx context.Context, keys ...string) error

	// Exists reports whether the key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// Ping verifies the cache connection is alive.
	Ping(ctx context.Context) error

	// Close closes the cache connection.
	Close() error
}
