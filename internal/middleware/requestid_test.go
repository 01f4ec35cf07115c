package middleware

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// uuidRegex matches UUID v4 format.
var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestRequestID(t *testing.T) {
	capture := func(id *string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*id = GetRequestID(r.Context())
			w.WriteHeader(http.StatusOK)
		})
	}

	t.Run("generates ID when none provided", func(t *testing.T) {
		var capturedID string
		handler := RequestID()(capture(&capturedID))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

		responseID := rec.Header().Get(HeaderXRequestID)
		assert.True(t, uuidRegex.MatchString(responseID), "expected UUID format, got: %s", responseID)
		assert.Equal(t, responseID, capturedID)
	})

	t.Run("uses provided valid ID", func(t *testing.T) {
		var capturedID string
		handler := RequestID()(capture(&capturedID))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderXRequestID, "trace_abc-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "trace_abc-123", rec.Header().Get(HeaderXRequestID))
		assert.Equal(t, "trace_abc-123", capturedID)
	})

	tests := []struct {
		name string
		id   string
	}{
		{"rejects special characters", "id<script>"},
		{"rejects spaces", "has space"},
		{"rejects overlong IDs", strings.Repeat("a", requestIDMaxLength+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var capturedID string
			handler := RequestID()(capture(&capturedID))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set(HeaderXRequestID, tt.id)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.NotEqual(t, tt.id, capturedID)
			assert.True(t, uuidRegex.MatchString(capturedID))
		})
	}
}
