package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// LoginRateLimit limits login attempts per client IP and email pair to
// maxPerMin per minute, so one client guessing passwords for an email does not
// lock its owner out. The counter lives in Redis when a client is configured;
// otherwise each process keeps its own token buckets.
func LoginRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	local := newLocalLimiter(maxPerMin)
	return func(c *fiber.Ctx) error {
		var req struct {
			Email string `json:"email"`
		}
		_ = c.BodyParser(&req)
		subject := loginSubject(c.IP(), req.Email)

		if cache == nil {
			if !local.allow(subject) {
				return fiber.NewError(http.StatusTooManyRequests, "too many login attempts, try again later")
			}
			return c.Next()
		}

		key := "rl:login:" + subject
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err == nil && cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many login attempts, try again later")
		}
		return c.Next()
	}
}

type localLimiter struct {
	mu       sync.Mutex
	perMin   int
	limiters map[string]*rate.Limiter
}

func newLocalLimiter(perMin int) *localLimiter {
	return &localLimiter{perMin: perMin, limiters: make(map[string]*rate.Limiter)}
}

func (l *localLimiter) allow(subject string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[subject]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.perMin)
		l.limiters[subject] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

func loginSubject(ip, email string) string {
	return ip + "|" + strings.TrimSpace(email)
}
