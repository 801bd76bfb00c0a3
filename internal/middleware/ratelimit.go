package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// CodeRateLimited is the error code returned with a 429.
const CodeRateLimited = "RATE_LIMITED"

// CheckRateLimit counts a hit for id on resource in a fixed window and
// reports whether the hit is within limit.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	if rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		// a counter without a TTL would block id for good
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			if delErr := rdb.Del(ctx, key).Err(); delErr != nil {
				return false, fmt.Errorf("set rate limit window: %w (cleanup: %v)", err, delErr)
			}
			return false, fmt.Errorf("set rate limit window: %w", err)
		}
	}
	return cnt <= int64(limit), nil
}

// RateLimit returns a Fiber middleware enforcing limit requests per window,
// keyed by the authenticated user when known, otherwise by remote IP.
// Without Redis, or when Redis fails, requests pass.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil {
			return c.Next()
		}

		var id string
		if uid, ok := c.Locals("userID").(uint); ok {
			id = fmt.Sprintf("user:%d", uid)
		} else {
			id = "ip:" + c.IP()
		}

		allowed, err := CheckRateLimit(c.UserContext(), rdb, name, id, limit, window)
		if err != nil {
			Logger.WarnContext(c.UserContext(), "rate limit check failed, allowing request",
				slog.String("resource", name),
				slog.String("error", err.Error()),
			)
			return c.Next()
		}
		if !allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
				"code":  CodeRateLimited,
			})
		}
		return c.Next()
	}
}
