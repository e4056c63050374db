package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/badbank/badbank/internal/account"
	"github.com/badbank/badbank/internal/ledger"
	"github.com/badbank/badbank/internal/middleware"
)

// AccountRoutes bundles the handlers and guards mounted under /account.
type AccountRoutes struct {
	Accounts    *account.Handler
	Ledger      *ledger.Handler
	Auth        fiber.Handler
	LoginLimit  fiber.Handler
	Idempotency fiber.Handler
}

// RegisterAccountRoutes wires the /account endpoints.
func RegisterAccountRoutes(r fiber.Router, ar AccountRoutes) {
	g := r.Group("/account")

	// Public
	g.Post("/create", ar.Accounts.Create)
	g.Post("/login", ar.LoginLimit, ar.Accounts.Login)

	// Owner or admin
	g.Post("/update", ar.Auth, ar.Idempotency, ar.Ledger.Update)
	g.Get("/balance/:email", ar.Auth, ar.Ledger.Balance)
	g.Get("/history/:email", ar.Auth, ar.Ledger.History)
	g.Post("/findOne", ar.Auth, ar.Accounts.FindOne)

	// Owner only
	g.Post("/update-password", ar.Auth, ar.Accounts.ChangePassword)

	// Admin only
	g.Get("/all", ar.Auth, middleware.RequireAdmin(), ar.Accounts.All)
}
