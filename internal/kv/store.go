// Package kv defines the key-value store that holds rate limit counters and
// provides Redis, PostgreSQL and in-memory implementations of it.
package kv

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrNotFound   = errors.New("kv: key not found")
	ErrInvalidTTL = errors.New("kv: ttl must be positive")
)

// Store is a key-value store with store-enforced expiry.
//
// After the TTL given to Put elapses, Get for that key must eventually
// return ErrNotFound. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound when the key
	// was never written or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value, and expires
	// it after ttl.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Ping checks if the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
