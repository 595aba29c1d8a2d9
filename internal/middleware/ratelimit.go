// Package middleware provides request logging, metrics, tracing and rate limiting middleware.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// CheckRateLimit checks if a resource has exceeded its rate limit.
// Returns true if allowed, false if limit exceeded.
// Rate limiting is disabled when APP_ENV is "test" or "development" so local workflows are not throttled.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	switch env {
	case "test", "development":
		return true, nil
	}

	if limit <= 0 {
		return true, nil
	}
	if rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		rdb.Expire(ctx, key, window)
	}
	return cnt <= int64(limit), nil
}

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	// Limit is the number of requests allowed per Window. Zero or less disables limiting.
	Limit  int
	Window time.Duration
	// Name keys the counter. Defaults to the request path.
	Name string
	// LimitReached answers a limited request. Defaults to a 429 error.
	LimitReached fiber.Handler
}

// RateLimit returns a Fiber middleware enforcing cfg.Limit requests per cfg.Window keyed by remote IP.
// It fails open: when Redis is unavailable the request proceeds.
func RateLimit(rdb *redis.Client, cfg RateLimitConfig) fiber.Handler {
	if cfg.LimitReached == nil {
		cfg.LimitReached = func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please try again later.")
		}
	}
	return func(c *fiber.Ctx) error {
		resource := cfg.Name
		if resource == "" {
			resource = c.Path()
		}
		id := "ip:" + c.IP()

		allowed, err := CheckRateLimit(c.UserContext(), rdb, resource, id, cfg.Limit, cfg.Window)
		if err != nil {
			if rdb != nil {
				Logger.WarnContext(c.UserContext(), "rate limit store unavailable, failing open",
					slog.String("resource", resource),
					slog.String("error", err.Error()),
				)
			}
			return c.Next()
		}

		if !allowed {
			return cfg.LimitReached(c)
		}
		return c.Next()
	}
}
