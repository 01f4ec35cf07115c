package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript runs the same fixed-window algorithm as Limiter inside
// Redis, so concurrent checks for one key are serialized. It reads and
// writes the same JSON counter, which keeps the two implementations
// interchangeable on one keyspace.
//
// Returns {allowed, count, resetAt}.
var fixedWindowScript = redis.NewScript(`
local max = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])

local count, reset_at = 0, 0
local raw = redis.call('GET', KEYS[1])
if raw then
  local ok, rec = pcall(cjson.decode, raw)
  if ok and type(rec) == 'table' then
    count = tonumber(rec['count']) or 0
    reset_at = tonumber(rec['resetAt']) or 0
  end
end

if count < 1 or reset_at <= now_ms then
  reset_at = now_ms + window_ms
  redis.call('SET', KEYS[1], string.format('{"count":1,"resetAt":%d}', reset_at), 'PX', window_ms)
  return {1, 1, reset_at}
end

if count >= max then
  return {0, count, reset_at}
end

count = count + 1
redis.call('SET', KEYS[1], string.format('{"count":%d,"resetAt":%d}', count, reset_at), 'PX', reset_at - now_ms)
return {1, count, reset_at}
`)

// AtomicLimiter is a Checker that evaluates each check in a single Redis
// script call. Decisions and headers match Limiter exactly.
type AtomicLimiter struct {
	client redis.Scripter
	now    func() time.Time
}

// NewAtomicLimiter creates an AtomicLimiter. Only WithClock is honored
// among the options.
func NewAtomicLimiter(client redis.Scripter, opts ...Option) *AtomicLimiter {
	l := &Limiter{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return &AtomicLimiter{client: client, now: l.now}
}

var _ Checker = (*AtomicLimiter)(nil)

// Check implements Checker.
func (a *AtomicLimiter) Check(ctx context.Context, callerKey string, p Policy) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	nowMs := a.now().UnixMilli()
	vals, err := fixedWindowScript.Run(ctx, a.client,
		[]string{Key(p, callerKey)},
		p.MaxRequests, p.Window().Milliseconds(), nowMs,
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("run rate limit script: %w", err)
	}
	if len(vals) != 3 {
		return nil, fmt.Errorf("run rate limit script: unexpected reply length %d", len(vals))
	}

	allowed := vals[0] == 1
	remaining := 0
	if allowed {
		remaining = p.MaxRequests - int(vals[1])
	}

	return &Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(vals[2]).UTC(),
		Limit:     p.MaxRequests,
	}, nil
}
