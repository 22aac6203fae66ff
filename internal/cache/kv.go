// Package cache provides the hot key/value store used for route geometry
// and per-vehicle live state. The KV interface covers the hash and list
// primitives the trackers need; production deployments back it with Redis,
// tests and single-node deployments with the in-memory implementation.
package cache

import (
	"context"
	"time"
)

// KV is the narrow contract between the live subsystem and the hot store.
//
// Hash writes are atomic per key: a concurrent reader observes either the
// full previous field set or the full new one, never a mix.
type KV interface {
	// HSet writes all fields of the hash at key in one atomic operation.
	HSet(ctx context.Context, key string, fields map[string]string) error

	// HGetAll returns all fields of the hash at key. A missing key yields
	// an empty map and no error.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// LPushTrim pushes value onto the head of the list at key and trims the
	// list to its keep newest entries, as one atomic operation.
	LPushTrim(ctx context.Context, key, value string, keep int) error

	// LRange returns list entries between start and stop inclusive, using
	// Redis index semantics (negative indexes count from the tail).
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// Del removes the given keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// Expire sets a TTL on key. A zero or negative ttl is a no-op.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}
