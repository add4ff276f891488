package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Fixed window: the first hit of a window sets its expiry.
var actionLimitScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {hits, ttl}
`)

// LimitDecision is the result of one limiter check.
type LimitDecision struct {
	Allowed    bool
	Hits       int
	RetryAfter time.Duration
}

// ActionLimiter caps lifecycle requests per (operation, uid) so an operator
// double-click cannot approve twice. It is not a lock over remote state.
type ActionLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewActionLimiter allows limit requests per window. A nil client or a
// non-positive limit disables limiting.
func NewActionLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *ActionLimiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "admin:rate_limit"
	}
	if window < time.Second {
		window = time.Second
	}
	return &ActionLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow consumes one hit for (operation, uid).
func (l *ActionLimiter) Allow(ctx context.Context, operation, uid string) (LimitDecision, error) {
	if l == nil || l.client == nil || l.limit <= 0 {
		return LimitDecision{Allowed: true}, nil
	}
	operation, uid = strings.TrimSpace(operation), strings.TrimSpace(uid)
	if operation == "" || uid == "" {
		return LimitDecision{Allowed: true}, nil
	}

	key := l.prefix + ":" + operation + ":" + uid
	windowMs := l.window.Milliseconds()
	raw, err := actionLimitScript.Run(ctx, l.client, []string{key}, windowMs).Result()
	if err != nil {
		return LimitDecision{Allowed: true}, err
	}

	hits, ttlMs, err := parseLimitReply(raw)
	if err != nil {
		return LimitDecision{Allowed: true}, err
	}
	if ttlMs < 0 {
		ttlMs = windowMs
	}

	decision := LimitDecision{Allowed: hits <= int64(l.limit), Hits: int(hits)}
	if !decision.Allowed {
		seconds := math.Max(1, math.Ceil(float64(ttlMs)/1000.0))
		decision.RetryAfter = time.Duration(seconds) * time.Second
	}
	return decision, nil
}

func parseLimitReply(raw interface{}) (hits int64, ttlMs int64, err error) {
	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected redis limiter response shape: %T", raw)
	}
	if hits, ok = values[0].(int64); !ok {
		return 0, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}
	if ttlMs, ok = values[1].(int64); !ok {
		return hits, 0, fmt.Errorf("unexpected redis limiter ttl type: %T", values[1])
	}
	return hits, ttlMs, nil
}
