package account

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/badbank/badbank/internal/auth"
	"github.com/badbank/badbank/internal/codec"
	"github.com/badbank/badbank/internal/middleware"
)

// Handler exposes the account HTTP endpoints.
type Handler struct {
	accounts *Service
	tokens   *auth.Service
	validate *validator.Validate
}

// NewHandler builds the account handler.
func NewHandler(accounts *Service, tokens *auth.Service) *Handler {
	return &Handler{accounts: accounts, tokens: tokens, validate: validator.New()}
}

type createRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type findRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type changePasswordRequest struct {
	Email           string `json:"email" validate:"required,email"`
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72,nefield=CurrentPassword"`
}

// ProfileView is the JSON shape of a sanitized account.
type ProfileView struct {
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Balance   json.Number `json:"balance"`
	Role      Role        `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// View renders p for a response body.
func (p Profile) View() ProfileView {
	return ProfileView{
		Name:      p.Name,
		Email:     p.Email,
		Balance:   json.Number(p.Balance.String()),
		Role:      p.Role,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// Create registers a new user account.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	if _, err := h.accounts.Create(c.UserContext(), CreateInput{Name: req.Name, Email: req.Email, Password: req.Password}); err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"success": true, "message": "Account created"})
}

// Login verifies credentials and returns the profile with an access token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	profile, err := h.accounts.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return HTTPError(err)
	}
	token, exp, err := h.tokens.Issue(profile.Email, profile.Name, string(profile.Role))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"success":   true,
		"user":      profile.View(),
		"token":     token,
		"expiresAt": exp.UTC(),
	})
}

// FindOne returns the sanitized profile of the requested account.
func (h *Handler) FindOne(c *fiber.Ctx) error {
	var req findRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	if err := middleware.AuthorizeAccount(c, req.Email); err != nil {
		return err
	}
	profile, err := h.accounts.Find(c.UserContext(), req.Email)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(fiber.Map{"success": true, "user": profile.View()})
}

// All lists every account. Mounted behind RequireAdmin.
func (h *Handler) All(c *fiber.Ctx) error {
	profiles, err := h.accounts.List(c.UserContext())
	if err != nil {
		return HTTPError(err)
	}
	users := make([]ProfileView, 0, len(profiles))
	for _, p := range profiles {
		users = append(users, p.View())
	}
	return c.JSON(fiber.Map{"success": true, "users": users})
}

// ChangePassword lets the owner replace their password.
func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	var req changePasswordRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	if err := middleware.AuthorizeOwner(c, req.Email); err != nil {
		return err
	}
	if err := h.accounts.ChangePassword(c.UserContext(), req.Email, req.CurrentPassword, req.NewPassword); err != nil {
		return HTTPError(err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Password updated"})
}

func (h *Handler) bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(dst); err != nil {
		return fiber.NewError(http.StatusBadRequest, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "nefield":
		return fe.Field() + " must differ from " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}

// HTTPError maps account, ledger and codec failures to fiber errors. The
// message never carries ciphertext, keys or hashes.
func HTTPError(err error) error {
	switch {
	case errors.Is(err, ErrDuplicateEmail):
		return fiber.NewError(http.StatusBadRequest, "Email already exists")
	case errors.Is(err, ErrAccountNotFound):
		return fiber.NewError(http.StatusNotFound, "Account not found")
	case errors.Is(err, ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "Insufficient funds")
	case errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, "Amount must be non-zero, have at most two decimal places and not exceed the adjustment limit")
	case errors.Is(err, ErrInvalidCredentials):
		return fiber.NewError(http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, codec.ErrIntegrity), errors.Is(err, codec.ErrFormat):
		return fiber.NewError(http.StatusInternalServerError, "Balance unavailable")
	case errors.Is(err, ErrStorage):
		return fiber.NewError(http.StatusInternalServerError, "Storage unavailable")
	default:
		return err
	}
}
