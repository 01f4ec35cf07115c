package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	handler := NewHealthHandler()

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var response HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response.Status)
	assert.NotEmpty(t, response.Timestamp)
}

func TestReadyHandler(t *testing.T) {
	ready := func(h *HealthHandler) (*httptest.ResponseRecorder, ReadyResponse) {
		rec := httptest.NewRecorder()
		h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

		var response ReadyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		return rec, response
	}

	t.Run("ready without checks", func(t *testing.T) {
		rec, response := ready(NewHealthHandler())

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ready", response.Status)
		assert.Nil(t, response.Checks)
	})

	t.Run("not ready when drained", func(t *testing.T) {
		h := NewHealthHandler()
		h.SetReady(false)

		rec, response := ready(h)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "not ready", response.Status)
	})

	t.Run("reports each dependency", func(t *testing.T) {
		h := NewHealthHandler()
		h.AddCheck("store", func(ctx context.Context) error { return nil })
		h.AddCheck("database", func(ctx context.Context) error { return errors.New("down") })

		rec, response := ready(h)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, map[string]string{"store": "ok", "database": "fail"}, response.Checks)
	})

	t.Run("checks receive a deadline", func(t *testing.T) {
		h := NewHealthHandler()
		var hasDeadline bool
		h.AddCheck("store", func(ctx context.Context) error {
			_, hasDeadline = ctx.Deadline()
			return nil
		})

		rec, _ := ready(h)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, hasDeadline)
	})

	t.Run("slow check fails on timeout", func(t *testing.T) {
		h := NewHealthHandler()
		h.checkTimeout = 10 * time.Millisecond
		h.AddCheck("store", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})

		rec, response := ready(h)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "fail", response.Checks["store"])
	})
}

func TestHealthHandler_SetReady(t *testing.T) {
	handler := NewHealthHandler()
	assert.True(t, handler.IsReady())

	handler.SetReady(false)
	assert.False(t, handler.IsReady())

	handler.SetReady(true)
	assert.True(t, handler.IsReady())
}

func TestNotConfigured(t *testing.T) {
	rec := httptest.NewRecorder()
	NotConfigured(rec, httptest.NewRequest(http.MethodPost, "/api/v1/mods", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "service not configured", response.Error)
	assert.Equal(t, "SERVICE_NOT_CONFIGURED", response.Code)
}
