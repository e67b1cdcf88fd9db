// Package kv is the transient key-value store behind device sessions, CSRF
// state, rate limit counters and the license cache. Every entry carries a TTL
// and expiry is what reclaims abandoned pairing sessions.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or expired
var ErrNotFound = errors.New("kv: key not found")

// Store is implemented by RedisStore and MemoryStore
type Store interface {
	// Get returns the value stored at key or ErrNotFound
	Get(ctx context.Context, key string) (string, error)
	// Set stores value at key with the given TTL
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX stores value only if key is absent and reports whether it did
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Delete removes keys and returns how many existed
	Delete(ctx context.Context, keys ...string) (int64, error)
	// GetDel atomically reads and removes key
	GetDel(ctx context.Context, key string) (string, error)
	// Incr increments the counter at key, starting its window on the first hit
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Sweeper is implemented by stores that keep expired entries until asked to
// drop them. Redis expires keys itself and does not implement it.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}
