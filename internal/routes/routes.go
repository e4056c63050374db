package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/badbank/badbank/internal/account"
	"github.com/badbank/badbank/internal/auth"
	"github.com/badbank/badbank/internal/config"
	"github.com/badbank/badbank/internal/ledger"
	"github.com/badbank/badbank/internal/middleware"
	"github.com/badbank/badbank/internal/notification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	Store  account.Store
	Codec  account.BalanceCodec
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Store == nil || d.Codec == nil {
		return fmt.Errorf("account store and balance codec are required")
	}
	// Redis is optional in development only.
	if !isDev(d.Cfg.AppEnv) && d.Cache == nil {
		return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Metrics())
	app.Use(middleware.Audit(d.Logger))
	if isDev(d.Cfg.AppEnv) {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Services and handlers
	var notifier notification.Notifier = notification.NewLoggerNotifier(d.Logger.With(slog.String("component", "notification")))
	if d.Cache != nil {
		notifier = notification.Multi{notifier, notification.NewRedisNotifier(d.Cache, "")}
	}
	tokens := auth.NewService(d.Cfg.JWTSecret, d.Cfg.AccessTokenTTL, d.Cfg.AppName)
	accountSvc := account.NewService(d.Store, d.Codec, d.Cfg.BcryptCost)
	ledgerSvc := ledger.NewService(d.Store, d.Codec, notifier, d.Logger)

	RegisterAccountRoutes(app, AccountRoutes{
		Accounts:    account.NewHandler(accountSvc, tokens),
		Ledger:      ledger.NewHandler(ledgerSvc),
		Auth:        middleware.JWTAuth(tokens),
		LoginLimit:  middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit),
		Idempotency: idempotency(d),
	})

	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	return nil
}

func idempotency(d Deps) fiber.Handler {
	if d.Cache == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "", "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}
