package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	handler := Handler()
	require.NotNil(t, handler)

	RecordRateLimitDecision("handler_test", true)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate_limit_decisions_total")
	assert.Contains(t, rec.Body.String(), "rate_limit_malformed_counters_total")
}

func TestRecordRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/test", "200"))

	RecordRequest("GET", "/test", 200, 100*time.Millisecond)

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/test", "200"))
	assert.Equal(t, before+1, after)
}

func TestRecordRateLimitDecision(t *testing.T) {
	allowed := RateLimitDecisionsTotal.WithLabelValues("decision_test", "allowed")
	denied := RateLimitDecisionsTotal.WithLabelValues("decision_test", "denied")

	RecordRateLimitDecision("decision_test", true)
	RecordRateLimitDecision("decision_test", true)
	RecordRateLimitDecision("decision_test", false)

	assert.Equal(t, float64(2), testutil.ToFloat64(allowed))
	assert.Equal(t, float64(1), testutil.ToFloat64(denied))
}

func TestRecordRateLimitStoreError(t *testing.T) {
	RecordRateLimitStoreError("store_error_test")
	assert.Equal(t, float64(1), testutil.ToFloat64(RateLimitStoreErrorsTotal.WithLabelValues("store_error_test")))
}

func TestRecordMalformedCounter(t *testing.T) {
	before := testutil.ToFloat64(RateLimitMalformedTotal)
	RecordMalformedCounter()
	assert.Equal(t, before+1, testutil.ToFloat64(RateLimitMalformedTotal))
}

func TestRecordKVOperation(t *testing.T) {
	RecordKVOperation("memory", "get", "ok", time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(KVOperationDuration, "kv_operation_duration_seconds"))
}
