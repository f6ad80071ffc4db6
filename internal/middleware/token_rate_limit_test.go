package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/wallet_ledger/internal/logging"
)

func rateLimitedApp(cache *redis.Client, max int) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: testErrorHandler})
	app.Post("/token", TokenRateLimit(cache, max, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func postEmail(t *testing.T, app *fiber.App, email string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/token", strings.NewReader(`{"email":"`+email+`"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp.StatusCode
}

func TestTokenRateLimitPerEmail(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()
	app := rateLimitedApp(cache, 2)

	for i := 0; i < 2; i++ {
		if status := postEmail(t, app, "a@example.com"); status != fiber.StatusOK {
			t.Fatalf("request %d: expected 200 got %d", i, status)
		}
	}
	if status := postEmail(t, app, "A@example.com"); status != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", status)
	}
	if status := postEmail(t, app, "b@example.com"); status != fiber.StatusOK {
		t.Fatalf("other emails keep their own budget, got %d", status)
	}

	if ttl := mr.TTL(tokenRateLimitPrefix + "a@example.com"); ttl <= 0 {
		t.Fatalf("expected the window to expire, ttl=%v", ttl)
	}
}

func TestTokenRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer cache.Close()
	app := rateLimitedApp(cache, 1)
	mr.Close()

	for i := 0; i < 3; i++ {
		if status := postEmail(t, app, "a@example.com"); status != fiber.StatusOK {
			t.Fatalf("expected fail-open 200 got %d", status)
		}
	}
}

func TestTokenRateLimitWithoutCache(t *testing.T) {
	app := rateLimitedApp(nil, 1)
	for i := 0; i < 3; i++ {
		if status := postEmail(t, app, "a@example.com"); status != fiber.StatusOK {
			t.Fatalf("expected 200 got %d", status)
		}
	}
}

func TestTokenRateLimitRearmsWindowWithoutExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()
	app := rateLimitedApp(cache, 2)

	key := tokenRateLimitPrefix + "stuck@example.com"
	if err := mr.Set(key, "5"); err != nil {
		t.Fatalf("seed counter: %v", err)
	}

	if status := postEmail(t, app, "stuck@example.com"); status != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", status)
	}
	if ttl := mr.TTL(key); ttl <= 0 {
		t.Fatalf("expected the counter to regain an expiry, ttl=%v", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if status := postEmail(t, app, "stuck@example.com"); status != fiber.StatusOK {
		t.Fatalf("expected the window to reset, got %d", status)
	}
}
