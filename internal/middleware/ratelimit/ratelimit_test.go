package ratelimit

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newLimited(t *testing.T, perMinute int) (*fiber.App, *fakeClock) {
	t.Helper()
	rl := New(Config{RequestsPerMinute: perMinute})
	t.Cleanup(rl.Stop)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	rl.now = clock.now

	app := fiber.New()
	app.Post("/api/websites", rl.Middleware(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	return app, clock
}

func post(t *testing.T, app *fiber.App) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("POST", "/api/websites", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp.StatusCode
}

func TestRateLimiterRejectsAfterBurst(t *testing.T) {
	app, clock := newLimited(t, 2)

	for i := 0; i < 2; i++ {
		if code := post(t, app); code != fiber.StatusCreated {
			t.Fatalf("request %d status = %d", i, code)
		}
	}

	resp, err := app.Test(httptest.NewRequest("POST", "/api/websites", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "30" {
		t.Errorf("Retry-After = %q, want 30", resp.Header.Get("Retry-After"))
	}

	clock.advance(31 * time.Second)
	if code := post(t, app); code != fiber.StatusCreated {
		t.Fatalf("after refill status = %d", code)
	}
}

func TestEvictIdle(t *testing.T) {
	rl := New(Config{RequestsPerMinute: 10, IdleTimeout: time.Minute})
	defer rl.Stop()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	rl.now = clock.now

	rl.allow("10.0.0.1")
	clock.advance(2 * time.Minute)
	rl.allow("10.0.0.2")
	rl.evictIdle()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.buckets["10.0.0.1"]; ok {
		t.Error("idle bucket was not evicted")
	}
	if _, ok := rl.buckets["10.0.0.2"]; !ok {
		t.Error("active bucket was evicted")
	}
}
