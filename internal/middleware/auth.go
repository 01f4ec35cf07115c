package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/modvault/modvault/internal/auth"
	"github.com/modvault/modvault/pkg/logger"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// Authenticate returns a middleware that attributes requests to a user.
//
// Requests without an Authorization header pass through anonymously. A
// header that is malformed or carries an invalid token is rejected with 401.
func Authenticate(verifier TokenVerifier, log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{
					Error: "invalid authorization header",
					Code:  "UNAUTHORIZED",
				})
				return
			}

			claims, err := verifier.Verify(r.Context(), strings.TrimSpace(token))
			if err != nil {
				log.Debug("rejected bearer token",
					"request_id", GetRequestID(r.Context()),
					"error", err.Error(),
				)
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{
					Error: "invalid token",
					Code:  "UNAUTHORIZED",
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.Subject)))
		})
	}
}
