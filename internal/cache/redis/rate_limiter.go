package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

const rateLimitPrefix = "ratelimit:"

// RateLimiter counts requests per key in a Redis sorted set. The check and
// the increment happen in one Lua call, so concurrent server instances share
// a single window per key.
type RateLimiter struct {
	rdb    *redis.Client
	script *redis.Script
	now    func() time.Time
}

var _ domain.RateLimiter = (*RateLimiter)(nil)

// NewRateLimiter creates a RateLimiter backed by c.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		rdb:    c.rdb,
		script: redis.NewScript(slidingWindowLua),
		now:    time.Now,
	}
}

// Allow counts one request for key if fewer than limit requests were
// counted in the trailing window. A rejected request is not counted.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateDecision, error) {
	if limit <= 0 {
		return domain.RateDecision{Allowed: true}, nil
	}
	now := rl.now().UnixMicro()

	res, err := rl.script.Run(ctx, rl.rdb,
		[]string{rateLimitPrefix + key},
		now, window.Microseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return domain.RateDecision{}, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	if len(res) != 3 {
		return domain.RateDecision{}, fmt.Errorf("redis: rate limit %s: unexpected reply of length %d", key, len(res))
	}

	d := domain.RateDecision{
		Allowed:   res[0] == 1,
		Remaining: max(limit-int(res[1]), 0),
	}
	if !d.Allowed {
		oldest := time.UnixMicro(res[2])
		d.RetryAfter = max(oldest.Add(window).Sub(rl.now()), 0)
	}
	return d, nil
}
