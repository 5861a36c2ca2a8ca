package middleware

import (
	"context"
	"errors"

	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/data/redisStore"
)

var errLimiterOffline = errors.New("rate limit store offline")

// countHit bumps the caller's fixed-window counter and returns the count for
// the current window. The counter lives in redis so every replica draws from
// the same per-IP budget.
func countHit(ctx context.Context, ip string) (int64, error) {
	store := redisStore.GetRedisStore(ctx, config.RedisRateLimitStore)
	if store == nil {
		return 0, errLimiterOffline
	}
	return store.IncrementWindow(ctx, "ratelimit:"+ip, config.RateLimitWindow)
}
