package security

import (
	"fmt"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Limit is a fixed-window Redis counter middleware. Authenticated
// requests are keyed by user id, anonymous ones by client IP.
func (r *RateLimiter) Limit(name string, limit int, window time.Duration) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		identity := e.RealIP()
		if e.Auth != nil {
			identity = fmt.Sprintf("user:%s", e.Auth.Id)
		}

		ctx := e.Request.Context()
		key := fmt.Sprintf("ratelimit:%s:%s", name, identity)

		count, err := r.redis.Incr(ctx, key).Result()
		if err != nil {
			// Rate limiting is best-effort; never block traffic on a
			// counter fault.
			return e.Next()
		}
		if count == 1 {
			r.redis.Expire(ctx, key, window)
		}

		if count > int64(limit) {
			return apis.NewApiError(429, "Rate limit exceeded. Please try again later.", nil)
		}

		return e.Next()
	}
}
