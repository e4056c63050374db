package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/badbank/badbank/internal/auth"
)

const claimsKey = "auth_claims"

// JWTAuth validates the bearer access token and stores its claims on the
// request context.
func JWTAuth(tokens *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		claims, err := tokens.Parse(strings.TrimSpace(authz[len("Bearer "):]))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// Claims returns the verified claims of the request, or nil when the route
// is not behind JWTAuth.
func Claims(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(claimsKey).(*auth.Claims)
	return claims
}

// RequireAdmin rejects callers whose token lacks the admin role.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := Claims(c)
		if claims == nil {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		if !claims.IsAdmin() {
			return fiber.NewError(http.StatusForbidden, "admin role required")
		}
		return c.Next()
	}
}

// AuthorizeAccount returns a fiber error unless the caller owns email or is
// an admin.
func AuthorizeAccount(c *fiber.Ctx, email string) error {
	claims := Claims(c)
	if claims == nil {
		return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
	}
	if !claims.CanAccess(email) {
		return fiber.NewError(http.StatusForbidden, "not allowed to access this account")
	}
	return nil
}

// AuthorizeOwner is AuthorizeAccount without the admin override.
func AuthorizeOwner(c *fiber.Ctx, email string) error {
	claims := Claims(c)
	if claims == nil {
		return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
	}
	if claims.Email() != email {
		return fiber.NewError(http.StatusForbidden, "only the account owner may do this")
	}
	return nil
}
