package kv

import (
	"context"
	"errors"
	"time"

	"github.com/modvault/modvault/internal/metrics"
)

// instrumentedStore records latency and outcome of every store operation.
type instrumentedStore struct {
	Store
	backend string
}

// Instrumented wraps a Store so its Get and Put calls are observed under
// the given backend label.
func Instrumented(store Store, backend string) Store {
	return &instrumentedStore{Store: store, backend: backend}
}

func (s *instrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	val, err := s.Store.Get(ctx, key)
	metrics.RecordKVOperation(s.backend, "get", outcome(err), time.Since(start))
	return val, err
}

func (s *instrumentedStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := s.Store.Put(ctx, key, value, ttl)
	metrics.RecordKVOperation(s.backend, "put", outcome(err), time.Since(start))
	return err
}

// Unwrap returns the decorated store.
func (s *instrumentedStore) Unwrap() Store {
	return s.Store
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "miss"
	default:
		return "error"
	}
}

// Unwrap returns the store beneath any decorators.
func Unwrap(store Store) Store {
	for {
		u, ok := store.(interface{ Unwrap() Store })
		if !ok {
			return store
		}
		store = u.Unwrap()
	}
}
