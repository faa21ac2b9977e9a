package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// Limiter is a fixed-window counter shared across instances through Redis.
type Limiter struct {
	client redis.UniversalClient
	prefix string
}

func New(client redis.UniversalClient, prefix string) *Limiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "crowdfund:rate_limit"
	}
	return &Limiter{client: client, prefix: prefix}
}

// NewFromURL parses a redis:// URL and pings the server.
func NewFromURL(ctx context.Context, rawURL, prefix string) (*Limiter, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("ratelimit.NewFromURL: parse: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ratelimit.NewFromURL: ping: %w", err)
	}
	return New(client, prefix), nil
}

// Allow consumes one unit for subject in scope. When the window is exhausted
// it returns false and the seconds until the window resets.
func (l *Limiter) Allow(ctx context.Context, scope, subject string, limit int, window time.Duration) (bool, int, error) {
	if l == nil || l.client == nil || limit <= 0 || window <= 0 {
		return true, 0, nil
	}

	windowMs := max(window.Milliseconds(), 1000)
	key := fmt.Sprintf("%s:%s:%s", l.prefix, scope, subject)

	raw, err := fixedWindowScript.Run(ctx, l.client, []string{key}, windowMs).Result()
	if err != nil {
		return false, 0, fmt.Errorf("Allow: %w", err)
	}

	values, ok := raw.([]any)
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("Allow: unexpected limiter response %T", raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("Allow: unexpected count type %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok || ttlMs < 0 {
		ttlMs = windowMs
	}

	if count <= int64(limit) {
		return true, 0, nil
	}
	retryAfter := max(int(math.Ceil(float64(ttlMs)/1000.0)), 1)
	return false, retryAfter, nil
}

func (l *Limiter) PingContext(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.client.Ping(ctx).Err()
}

func (l *Limiter) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}
