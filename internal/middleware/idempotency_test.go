package middleware

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/wallet_ledger/internal/apierror"
	"github.com/congo-pay/wallet_ledger/internal/logging"
)

const testAccountHeader = "X-Test-Account"

func testErrorHandler(c *fiber.Ctx, err error) error {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Status).JSON(fiber.Map{"code": apiErr.Code})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"code": apierror.CodeInternal})
}

type idempotencyHarness struct {
	app   *fiber.App
	calls *atomic.Int32
	mr    *miniredis.Miniredis
}

func setupTestApp(t *testing.T, withCache bool) idempotencyHarness {
	t.Helper()

	var cache *redis.Client
	var mr *miniredis.Miniredis
	if withCache {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			t.Fatalf("start miniredis: %v", err)
		}
		cache = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() {
			cache.Close()
			mr.Close()
		})
	}

	calls := new(atomic.Int32)
	app := fiber.New(fiber.Config{ErrorHandler: testErrorHandler})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(accountIDLocal, c.Get(testAccountHeader))
		return c.Next()
	})
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/resource", func(c *fiber.Ctx) error {
		n := calls.Add(1)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"call": n})
	})
	app.Post("/broken", func(c *fiber.Ctx) error {
		calls.Add(1)
		return apierror.New(fiber.StatusBadRequest, "INSUFFICIENT_BALANCE", "no")
	})

	return idempotencyHarness{app: app, calls: calls, mr: mr}
}

func (h idempotencyHarness) post(t *testing.T, path, account, key, body string) (int, string, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(testAccountHeader, account)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := h.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(payload), resp.Header.Get("Idempotent-Replayed")
}

func TestIdempotencyHeaderIsOptional(t *testing.T) {
	h := setupTestApp(t, true)

	for i := 0; i < 2; i++ {
		status, _, _ := h.post(t, "/resource", "acc-1", "", `{"amount":10}`)
		if status != fiber.StatusOK {
			t.Fatalf("expected %d got %d", fiber.StatusOK, status)
		}
	}
	if got := h.calls.Load(); got != 2 {
		t.Fatalf("expected handler to run twice, ran %d times", got)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	h := setupTestApp(t, true)

	status, first, _ := h.post(t, "/resource", "acc-1", "abc123", `{"amount":10}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected status %d got %d", fiber.StatusOK, status)
	}

	status, second, replayed := h.post(t, "/resource", "acc-1", "abc123", `{"amount":10}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected cached status %d got %d", fiber.StatusOK, status)
	}
	if second != first {
		t.Fatalf("expected cached payload %s got %s", first, second)
	}
	if replayed != "true" {
		t.Fatalf("expected replay marker header")
	}
	if got := h.calls.Load(); got != 1 {
		t.Fatalf("expected handler to run once, ran %d times", got)
	}
}

func TestIdempotencyKeyReuseWithDifferentBody(t *testing.T) {
	h := setupTestApp(t, true)

	h.post(t, "/resource", "acc-1", "k1", `{"amount":10}`)
	status, _, _ := h.post(t, "/resource", "acc-1", "k1", `{"amount":99}`)
	if status != fiber.StatusConflict {
		t.Fatalf("expected %d got %d", fiber.StatusConflict, status)
	}
}

func TestIdempotencyKeysAreScopedPerAccount(t *testing.T) {
	h := setupTestApp(t, true)

	h.post(t, "/resource", "acc-1", "shared", `{"amount":10}`)
	_, _, replayed := h.post(t, "/resource", "acc-2", "shared", `{"amount":10}`)
	if replayed != "" {
		t.Fatalf("a different account must not see another account's response")
	}
	if got := h.calls.Load(); got != 2 {
		t.Fatalf("expected handler to run twice, ran %d times", got)
	}
}

func TestIdempotencyInFlightRequestConflicts(t *testing.T) {
	h := setupTestApp(t, true)

	if err := h.mr.Set(idempotencyPrefix+"acc-1:busy", inProgressMarker); err != nil {
		t.Fatalf("seed marker: %v", err)
	}
	status, _, _ := h.post(t, "/resource", "acc-1", "busy", `{}`)
	if status != fiber.StatusConflict {
		t.Fatalf("expected %d got %d", fiber.StatusConflict, status)
	}
	if h.calls.Load() != 0 {
		t.Fatalf("handler must not run while the key is reserved")
	}
}

func TestIdempotencyReleasesKeyOnHandlerError(t *testing.T) {
	h := setupTestApp(t, true)

	for i := 0; i < 2; i++ {
		status, _, _ := h.post(t, "/broken", "acc-1", "retry-me", `{}`)
		if status != fiber.StatusBadRequest {
			t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
		}
	}
	if got := h.calls.Load(); got != 2 {
		t.Fatalf("expected failed request to be retryable, handler ran %d times", got)
	}
}

func TestIdempotencyWithoutCacheIsNoop(t *testing.T) {
	h := setupTestApp(t, false)

	h.post(t, "/resource", "acc-1", "abc", `{}`)
	h.post(t, "/resource", "acc-1", "abc", `{}`)
	if got := h.calls.Load(); got != 2 {
		t.Fatalf("expected handler to run twice, ran %d times", got)
	}
}
