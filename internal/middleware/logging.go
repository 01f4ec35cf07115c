package middleware

import (
	"net/http"
	"time"

	"github.com/modvault/modvault/pkg/logger"
)

// Logging returns a middleware that logs one line per request.
func Logging(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			keyvals := []interface{}{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", GetRequestID(r.Context()),
			}
			if rw.statusCode >= http.StatusInternalServerError {
				log.Error("request failed", keyvals...)
				return
			}
			log.Info("request handled", keyvals...)
		})
	}
}
