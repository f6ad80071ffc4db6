package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/wallet_ledger/internal/apierror"
)

const tokenRateLimitPrefix = "rl:token:"

// TokenRateLimit caps token requests per email (or client IP when the body
// has none) within a one-minute window. It is a no-op without Redis and
// fails open on cache errors.
func TokenRateLimit(cache *redis.Client, maxPerMin int, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 10
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}

		var req struct {
			Email string `json:"email"`
		}
		_ = json.Unmarshal(c.Body(), &req)
		subject := strings.ToLower(strings.TrimSpace(req.Email))
		if subject == "" {
			subject = c.IP()
		}

		ctx := c.UserContext()
		key := tokenRateLimitPrefix + subject
		var (
			incr *redis.IntCmd
			ttl  *redis.DurationCmd
		)
		_, err := cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			ttl = pipe.TTL(ctx, key)
			return nil
		})
		if err != nil {
			logger.Warn("token rate limit unavailable", slog.Any("error", err))
			return c.Next()
		}
		// The window is re-armed whenever the counter has no expiry.
		if ttl.Val() < 0 {
			if err := cache.Expire(ctx, key, time.Minute).Err(); err != nil {
				logger.Warn("token rate limit window not set", slog.String("key", key), slog.Any("error", err))
			}
		}
		count := incr.Val()
		if count > int64(maxPerMin) {
			return apierror.New(http.StatusTooManyRequests, apierror.CodeRateLimited, "Too many token requests, try again later")
		}
		return c.Next()
	}
}
