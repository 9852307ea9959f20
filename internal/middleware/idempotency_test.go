package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/topup-ng/topup_ng/internal/logging"
)

func setupTestApp(t *testing.T) (*fiber.App, *atomic.Int32, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))

	var handled atomic.Int32
	app.Post("/purchases/airtime", func(c *fiber.Ctx) error {
		handled.Add(1)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "success"})
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}

	return app, &handled, cleanup
}

func TestIdempotencyPassesThroughWithoutKey(t *testing.T) {
	app, handled, cleanup := setupTestApp(t)
	defer cleanup()

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(fiber.MethodPost, "/purchases/airtime", strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
	}
	// No key means no replay: both requests hit the handler.
	if handled.Load() != 2 {
		t.Fatalf("handler invocations = %d, want 2", handled.Load())
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	app, handled, cleanup := setupTestApp(t)
	defer cleanup()

	first := httptest.NewRequest(fiber.MethodPost, "/purchases/airtime", strings.NewReader(`{"amount":50000}`))
	first.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	first.Header.Set(idempotencyKeyHeader, "abc123")

	resp, err := app.Test(first)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	payload, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	second := httptest.NewRequest(fiber.MethodPost, "/purchases/airtime", strings.NewReader(`{"amount":50000}`))
	second.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	second.Header.Set(idempotencyKeyHeader, "abc123")

	resp2, err := app.Test(second)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	cached, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()

	if resp2.StatusCode != fiber.StatusOK {
		t.Fatalf("replayed status = %d, want 200", resp2.StatusCode)
	}
	if string(cached) != string(payload) {
		t.Fatalf("replayed payload %s, want %s", cached, payload)
	}
	if handled.Load() != 1 {
		t.Fatalf("handler invocations = %d, want 1", handled.Load())
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	app, handled, cleanup := setupTestApp(t)
	defer cleanup()

	first := httptest.NewRequest(fiber.MethodPost, "/purchases/airtime", strings.NewReader(`{"amount":50000}`))
	first.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	first.Header.Set(idempotencyKeyHeader, "abc123")
	if _, err := app.Test(first); err != nil {
		t.Fatalf("first request: %v", err)
	}

	second := httptest.NewRequest(fiber.MethodPost, "/purchases/airtime", strings.NewReader(`{"amount":999999}`))
	second.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	second.Header.Set(idempotencyKeyHeader, "abc123")

	resp, err := app.Test(second)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 for key reuse with new payload", resp.StatusCode)
	}
	if handled.Load() != 1 {
		t.Fatalf("handler invocations = %d, want 1", handled.Load())
	}
}

func TestIdempotencyIgnoresSafeMethods(t *testing.T) {
	app, _, cleanup := setupTestApp(t)
	defer cleanup()

	app.Get("/wallet", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"balance": 0})
	})

	req := httptest.NewRequest(fiber.MethodGet, "/wallet", nil)
	req.Header.Set(idempotencyKeyHeader, "abc123")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
