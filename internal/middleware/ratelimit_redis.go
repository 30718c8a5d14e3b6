// ratelimit_redis.go provides a Redis-backed rate limiter for multi-instance
// deployments. The in-memory RateLimiter in ratelimit.go is per-process; when
// several instances sit behind a load balancer, each instance enforces its own
// budget and the effective limit multiplies. Configuring redis.addr switches
// the auth and validation endpoints to this limiter so the budget is shared.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter enforces a shared per-client rate limit via redis_rate's
// GCRA implementation.
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

// NewRedisRateLimiter creates a limiter backed by the given Redis client,
// translating a RateLimitConfig into a per-minute GCRA limit.
func NewRedisRateLimiter(rdb *redis.Client, config RateLimitConfig) *RedisRateLimiter {
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit: redis_rate.Limit{
			Rate:   config.RequestsPerMinute,
			Period: time.Minute,
			Burst:  config.BurstSize,
		},
	}
}

// RedisRateLimitMiddleware creates a Gin middleware that rate limits requests
// against the shared Redis budget. Redis errors fail open: an unreachable
// Redis must not take the API down with it.
func RedisRateLimitMiddleware(limiter *RedisRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := getRateLimitKey(c)

		res, err := limiter.limiter.Allow(c.Request.Context(), key, limiter.limit)
		if err != nil {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit.Rate))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if res.Allowed == 0 {
			retryAfter := int(res.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}
