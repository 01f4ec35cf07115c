// Package ratelimit implements fixed-window request limiting over an
// external key-value store.
//
// All counter state lives in the store; nothing is cached in process, so
// any number of stateless instances can share one store. Each check is one
// read and at most one write. The read-then-write is not atomic: callers
// racing near the ceiling can be admitted slightly past MaxRequests.
// AtomicLimiter removes that race when the store is Redis.
//
// Fixed windows also admit up to 2*MaxRequests across a window boundary.
// Both are accepted tradeoffs for a single round trip per request.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/modvault/modvault/internal/kv"
	"github.com/modvault/modvault/internal/metrics"
	"github.com/modvault/modvault/pkg/logger"
)

// KeyPrefix namespaces every counter key in the store.
const KeyPrefix = "ratelimit:"

// Common errors
var (
	ErrInvalidPolicy = errors.New("invalid rate limit policy")
	ErrUnknownPolicy = errors.New("unknown rate limit policy")
)

// Policy is the limit applied to one class of endpoints.
type Policy struct {
	Name          string `json:"name"`
	Identifier    string `json:"identifier"`
	MaxRequests   int    `json:"max_requests"`
	WindowSeconds int    `json:"window_seconds"`
}

// Window returns the window length.
func (p Policy) Window() time.Duration {
	return time.Duration(p.WindowSeconds) * time.Second
}

// Validate reports whether the policy can be enforced.
func (p Policy) Validate() error {
	switch {
	case p.Identifier == "":
		return fmt.Errorf("%w: %q has no identifier", ErrInvalidPolicy, p.Name)
	case p.MaxRequests <= 0:
		return fmt.Errorf("%w: %q max requests must be positive", ErrInvalidPolicy, p.Name)
	case p.WindowSeconds <= 0:
		return fmt.Errorf("%w: %q window must be positive", ErrInvalidPolicy, p.Name)
	}
	return nil
}

// Counter is the record persisted per (policy, caller) while a window is open.
type Counter struct {
	Count   int   `json:"count"`
	ResetAt int64 `json:"resetAt"` // unix milliseconds
}

// Result contains the outcome of a rate limit check.
type Result struct {
	Allowed   bool      // Whether the request is admitted
	Remaining int       // Requests left in the current window
	ResetAt   time.Time // When the current window closes
	Limit     int       // The policy ceiling
}

// RetryAfter returns the whole seconds until the window closes, at least 1.
func (r *Result) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(r.ResetAt.Sub(now).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Checker decides whether a caller may make one more request under a policy.
type Checker interface {
	// Check records one attempt by callerKey under p and returns the
	// decision. A denied attempt is not counted. Store failures are
	// returned as errors; a denial is not an error.
	Check(ctx context.Context, callerKey string, p Policy) (*Result, error)
}

// Key builds the store key for a caller under a policy.
func Key(p Policy, callerKey string) string {
	return KeyPrefix + p.Identifier + ":" + callerKey
}

// Limiter is the store-backed fixed-window Checker.
type Limiter struct {
	store kv.Store
	now   func() time.Time
	log   *logger.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLogger sets the logger used for malformed counter warnings.
func WithLogger(log *logger.Logger) Option {
	return func(l *Limiter) { l.log = log }
}

// NewLimiter creates a Limiter over store.
func NewLimiter(store kv.Store, opts ...Option) *Limiter {
	l := &Limiter{
		store: store,
		now:   time.Now,
		log:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ Checker = (*Limiter)(nil)

// Check implements Checker.
func (l *Limiter) Check(ctx context.Context, callerKey string, p Policy) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	key := Key(p, callerKey)
	now := l.now()
	nowMs := now.UnixMilli()

	counter, err := l.load(ctx, key)
	if err != nil {
		return nil, err
	}

	// The store should already have evicted stale records; expiry is
	// checked here too rather than trusted.
	if counter == nil || counter.ResetAt <= nowMs {
		fresh := Counter{Count: 1, ResetAt: nowMs + p.Window().Milliseconds()}
		if err := l.save(ctx, key, fresh, p.Window()); err != nil {
			return nil, err
		}
		return &Result{
			Allowed:   true,
			Remaining: p.MaxRequests - 1,
			ResetAt:   time.UnixMilli(fresh.ResetAt).UTC(),
			Limit:     p.MaxRequests,
		}, nil
	}

	if counter.Count >= p.MaxRequests {
		return &Result{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   time.UnixMilli(counter.ResetAt).UTC(),
			Limit:     p.MaxRequests,
		}, nil
	}

	counter.Count++
	ttl := time.Duration(counter.ResetAt-nowMs) * time.Millisecond
	if err := l.save(ctx, key, *counter, ttl); err != nil {
		return nil, err
	}

	return &Result{
		Allowed:   true,
		Remaining: p.MaxRequests - counter.Count,
		ResetAt:   time.UnixMilli(counter.ResetAt).UTC(),
		Limit:     p.MaxRequests,
	}, nil
}

// load returns nil when the counter is absent or unreadable.
func (l *Limiter) load(ctx context.Context, key string) (*Counter, error) {
	raw, err := l.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read rate limit counter: %w", err)
	}

	var c Counter
	if err := json.Unmarshal(raw, &c); err != nil || c.Count < 1 || c.ResetAt <= 0 {
		// A corrupt counter must never lock a caller out or let one through
		// forever; it is replaced by a fresh window.
		metrics.RecordMalformedCounter()
		l.log.Warn("malformed rate limit counter", "key", key)
		return nil, nil
	}
	return &c, nil
}

func (l *Limiter) save(ctx context.Context, key string, c Counter, ttl time.Duration) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode rate limit counter: %w", err)
	}
	if err := l.store.Put(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("write rate limit counter: %w", err)
	}
	return nil
}
