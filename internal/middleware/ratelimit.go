package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/modvault/modvault/internal/metrics"
	"github.com/modvault/modvault/internal/ratelimit"
	"github.com/modvault/modvault/pkg/logger"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// resetLayout renders the reset header as ISO-8601 UTC with milliseconds.
const resetLayout = "2006-01-02T15:04:05.000Z07:00"

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	// IPHeader is the client address header set by the trusted reverse proxy.
	IPHeader string
	Logger   *logger.Logger
	// Now overrides the clock used for Retry-After.
	Now func() time.Time
}

// RateLimitResponse is the JSON response for rate limited requests.
type RateLimitResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	RetryAfter int    `json:"retry_after"`
}

// RateLimit returns a middleware that admits requests under policy.
//
// A store failure rejects the request with a generic 500: the limit is
// never bypassed because the store is unreachable.
func RateLimit(checker ratelimit.Checker, policy ratelimit.Policy, cfg RateLimitConfig) Middleware {
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := ClientIdentifier(r, cfg.IPHeader)

			result, err := checker.Check(r.Context(), caller, policy)
			if err != nil {
				metrics.RecordRateLimitStoreError(policy.Name)
				log.Error("rate limit check failed",
					"policy", policy.Name,
					"request_id", GetRequestID(r.Context()),
					"error", err.Error(),
				)
				writeJSON(w, http.StatusInternalServerError, ErrorResponse{
					Error: "internal server error",
					Code:  "INTERNAL_ERROR",
				})
				return
			}

			metrics.RecordRateLimitDecision(policy.Name, result.Allowed)
			setRateLimitHeaders(w, result)

			if !result.Allowed {
				retryAfter := result.RetryAfter(now())
				w.Header().Set(HeaderRetryAfter, strconv.Itoa(retryAfter))
				log.Debug("rate limit exceeded",
					"policy", policy.Name,
					"caller", caller,
					"retry_after", retryAfter,
				)
				writeJSON(w, http.StatusTooManyRequests, RateLimitResponse{
					Error:      "rate limit exceeded",
					Code:       "RATE_LIMIT_EXCEEDED",
					RetryAfter: retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders sets the quota headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, result *ratelimit.Result) {
	w.Header().Set(HeaderRateLimitLimit, strconv.Itoa(result.Limit))
	w.Header().Set(HeaderRateLimitRemaining, strconv.Itoa(result.Remaining))
	w.Header().Set(HeaderRateLimitReset, result.ResetAt.UTC().Format(resetLayout))
}
