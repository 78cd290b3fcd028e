package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/duedatechanger/api/internal/logger"
	"github.com/duedatechanger/api/pkg/response"
)

type RateLimiter struct {
	redis redis.UniversalClient
	log   zerolog.Logger
}

func NewRateLimiter(redisClient redis.UniversalClient) *RateLimiter {
	return &RateLimiter{
		redis: redisClient,
		log:   logger.Get().With().Str("component", "ratelimit").Logger(),
	}
}

// Limit is a fixed-window counter per session user. Requests pass when Redis
// is unavailable.
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := GetUserID(c)
		if userID == "" {
			return c.Next()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, userID)
		ctx := c.UserContext()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			rl.log.Warn().Err(err).Str("key", key).Msg("Rate limit check skipped")
			return c.Next()
		}

		if count == 1 {
			rl.redis.Expire(ctx, key, window)
		}

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			c.Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))

		return c.Next()
	}
}

// UpdateLimit throttles bulk edit submissions.
func (rl *RateLimiter) UpdateLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("update", maxPerHour, time.Hour)
}
