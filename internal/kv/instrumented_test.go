package kv

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modvault/modvault/internal/metrics"
)

func TestInstrumented(t *testing.T) {
	mem := NewMemoryStore(WithSweepInterval(0))
	store := Instrumented(mem, "instrumented_test")
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", []byte("v"), time.Minute))
	_, err := store.Get(ctx, "k")
	require.NoError(t, err)
	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 3, testutil.CollectAndCount(metrics.KVOperationDuration, "kv_operation_duration_seconds"))
	assert.NoError(t, store.Ping(ctx))

	assert.Same(t, mem, Unwrap(store))
	assert.Same(t, mem, Unwrap(Instrumented(store, "nested")))
	assert.Same(t, mem, Unwrap(mem))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "miss", outcome(ErrNotFound))
	assert.Equal(t, "error", outcome(context.DeadlineExceeded))
}
