// Package auth verifies bearer tokens so requests can be attributed to a
// user. Token issuance belongs to the login flow; Issue exists for tests
// and tooling.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Common errors
var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingSecret = errors.New("jwt secret is required")
)

// Claims are the token fields the service relies on.
type Claims struct {
	Subject string // User ID
	Role    string
}

// Verifier validates HS256-signed tokens.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifier creates a Verifier. When issuer is non-empty, tokens must
// carry a matching iss claim.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Verifier{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Verify parses and validates token and returns its claims.
func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, v.secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(v.now)),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.Parse([]byte(token), opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed.Subject() == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	claims := &Claims{Subject: parsed.Subject()}
	if role, ok := parsed.Get("role"); ok {
		if s, ok := role.(string); ok {
			claims.Role = s
		}
	}
	return claims, nil
}

// Issue signs a token for subject that expires after ttl.
func (v *Verifier) Issue(subject, role string, ttl time.Duration) (string, error) {
	now := v.now()
	builder := jwt.NewBuilder().
		Subject(subject).
		IssuedAt(now).
		Expiration(now.Add(ttl))
	if v.issuer != "" {
		builder = builder.Issuer(v.issuer)
	}
	if role != "" {
		builder = builder.Claim("role", role)
	}

	token, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, v.secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}
