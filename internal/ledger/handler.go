package ledger

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/badbank/badbank/internal/account"
	"github.com/badbank/badbank/internal/middleware"
)

const maxHistoryLimit = 500

// Handler exposes balance adjustment and lookup endpoints.
type Handler struct {
	ledger   *Service
	validate *validator.Validate
}

// NewHandler builds the ledger handler.
func NewHandler(ledger *Service) *Handler {
	return &Handler{ledger: ledger, validate: validator.New()}
}

type updateRequest struct {
	Email  string          `json:"email" validate:"required,email"`
	Amount decimal.Decimal `json:"amount"`
}

type historyView struct {
	ID        string      `json:"id"`
	Kind      string      `json:"kind"`
	Amount    json.Number `json:"amount"`
	Balance   json.Number `json:"balance"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Update applies a signed amount to the balance: positive deposits,
// negative withdraws.
func (h *Handler) Update(c *fiber.Ctx) error {
	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "a valid email is required")
	}
	if err := middleware.AuthorizeAccount(c, req.Email); err != nil {
		return err
	}
	res, err := h.ledger.Adjust(c.UserContext(), req.Email, req.Amount)
	if err != nil {
		return account.HTTPError(err)
	}
	return c.JSON(fiber.Map{"success": true, "balance": json.Number(res.Balance.String())})
}

// Balance returns the current balance of the account in the path.
func (h *Handler) Balance(c *fiber.Ctx) error {
	email := c.Params("email")
	if err := middleware.AuthorizeAccount(c, email); err != nil {
		return err
	}
	balance, err := h.ledger.Balance(c.UserContext(), email)
	if err != nil {
		return account.HTTPError(err)
	}
	return c.JSON(fiber.Map{"success": true, "balance": json.Number(balance.String())})
}

// History lists recent adjustments, newest first.
func (h *Handler) History(c *fiber.Ctx) error {
	email := c.Params("email")
	if err := middleware.AuthorizeAccount(c, email); err != nil {
		return err
	}
	limit := DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			return fiber.NewError(http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxHistoryLimit))
		}
		limit = n
	}
	items, err := h.ledger.History(c.UserContext(), email, limit)
	if err != nil {
		return account.HTTPError(err)
	}
	views := make([]historyView, 0, len(items))
	for _, it := range items {
		views = append(views, historyView{
			ID:        it.ID,
			Kind:      string(it.Kind),
			Amount:    json.Number(it.Amount.String()),
			Balance:   json.Number(it.Balance.String()),
			CreatedAt: it.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"success": true, "transactions": views})
}
