package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func TestLoginRateLimitWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	app := fiber.New()
	app.Post("/login", LoginRateLimit(cache, 2), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	statuses := loginAttempts(t, app, "a@example.com", 3)
	if statuses[0] != fiber.StatusOK || statuses[1] != fiber.StatusOK || statuses[2] != fiber.StatusTooManyRequests {
		t.Fatalf("unexpected statuses %v", statuses)
	}
	if s := loginAttempts(t, app, "b@example.com", 1); s[0] != fiber.StatusOK {
		t.Fatalf("other email should not be limited, got %d", s[0])
	}
}

func TestLoginRateLimitInProcess(t *testing.T) {
	app := fiber.New()
	app.Post("/login", LoginRateLimit(nil, 2), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	statuses := loginAttempts(t, app, "a@example.com", 3)
	if statuses[2] != fiber.StatusTooManyRequests {
		t.Fatalf("expected third attempt to be limited, got %v", statuses)
	}
}

func TestLoginRateLimitIsPerClient(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	for name, limiter := range map[string]fiber.Handler{"redis": LoginRateLimit(cache, 2), "in-process": LoginRateLimit(nil, 2)} {
		t.Run(name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ProxyHeader: fiber.HeaderXForwardedFor})
			app.Post("/login", limiter, func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

			statuses := loginAttemptsFrom(t, app, "203.0.113.9", "victim@example.com", 3)
			if statuses[2] != fiber.StatusTooManyRequests {
				t.Fatalf("expected the guessing client to be limited, got %v", statuses)
			}
			if s := loginAttemptsFrom(t, app, "198.51.100.7", "victim@example.com", 1); s[0] != fiber.StatusOK {
				t.Fatalf("owner on another address should still log in, got %d", s[0])
			}
		})
	}
}

func loginAttempts(t *testing.T, app *fiber.App, email string, n int) []int {
	t.Helper()
	return loginAttemptsFrom(t, app, "", email, n)
}

func loginAttemptsFrom(t *testing.T, app *fiber.App, ip, email string, n int) []int {
	t.Helper()
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		req := httptest.NewRequest(fiber.MethodPost, "/login", strings.NewReader(`{"email":"`+email+`"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		if ip != "" {
			req.Header.Set(fiber.HeaderXForwardedFor, ip)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		resp.Body.Close()
		out = append(out, resp.StatusCode)
	}
	return out
}
