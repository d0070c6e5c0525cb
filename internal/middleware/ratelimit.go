package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ThrottleConfig bounds how many writes one client address may issue per window
type ThrottleConfig struct {
	Limit  int
	Window time.Duration
	Now    func() time.Time
}

func (c ThrottleConfig) normalized() ThrottleConfig {
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// throttleKey names the counter for an address in the window containing now
func throttleKey(ip string, now time.Time, window time.Duration) (string, time.Time) {
	start := now.Truncate(window)
	return fmt.Sprintf("wt:ip:%s:%d", ip, start.Unix()), start.Add(window)
}

// isWrite reports whether the request mutates state
func isWrite(method string) bool {
	switch method {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return false
	}
	return true
}

// WriteThrottle limits mutating requests per client IP with fixed windows
// counted in Redis. Reads pass through untouched. A Redis failure lets the
// request through.
func WriteThrottle(rdb *redis.Client, cfg ThrottleConfig, logger *zap.Logger) fiber.Handler {
	cfg = cfg.normalized()
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if cfg.Limit <= 0 || !isWrite(c.Method()) {
			return c.Next()
		}

		ctx := context.Background()
		now := cfg.Now()
		key, reset := throttleKey(c.IP(), now, cfg.Window)

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("write throttle unavailable", zap.Error(err))
			return c.Next()
		}
		if count == 1 {
			rdb.Expire(ctx, key, cfg.Window+time.Second)
		}

		remaining := int64(cfg.Limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if count > int64(cfg.Limit) {
			retryAfter := int64(reset.Sub(now).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set("Retry-After", strconv.FormatInt(retryAfter, 10))

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "rate_limit_exceeded",
				"message":     "Too many write requests",
				"limit":       cfg.Limit,
				"retry_after": retryAfter,
			})
		}

		return c.Next()
	}
}

// ResetWriteThrottle clears the current window for an address
func ResetWriteThrottle(ctx context.Context, rdb *redis.Client, ip string, cfg ThrottleConfig) error {
	cfg = cfg.normalized()
	key, _ := throttleKey(ip, cfg.Now(), cfg.Window)
	return rdb.Del(ctx, key).Err()
}
