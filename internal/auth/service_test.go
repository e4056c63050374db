package auth

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	svc := NewService("secret", time.Hour, "badbank")
	token, exp, err := svc.Issue("a@example.com", "Ada", "user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry in the past: %v", exp)
	}

	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Email() != "a@example.com" || claims.Name != "Ada" || claims.IsAdmin() {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if !claims.CanAccess("a@example.com") || claims.CanAccess("b@example.com") {
		t.Fatalf("owner check wrong")
	}
}

func TestAdminCanAccessAnyAccount(t *testing.T) {
	claims := &Claims{Role: RoleAdmin}
	claims.Subject = "root@example.com"
	if !claims.CanAccess("someone@example.com") {
		t.Fatalf("admin should access every account")
	}
}

func TestParseRejectsForeignAndExpiredTokens(t *testing.T) {
	svc := NewService("secret", time.Hour, "badbank")

	foreign, _, err := NewService("other-secret", time.Hour, "badbank").Issue("a@example.com", "A", "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Parse(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for foreign signature, got %v", err)
	}

	otherIssuer, _, _ := NewService("secret", time.Hour, "elsewhere").Issue("a@example.com", "A", "user")
	if _, err := svc.Parse(otherIssuer); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for other issuer, got %v", err)
	}

	expiring := NewService("secret", time.Minute, "badbank")
	expiring.now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, _, err := expiring.Issue("a@example.com", "A", "user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Parse(stale); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for expired token, got %v", err)
	}

	if _, err := svc.Parse("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for garbage, got %v", err)
	}
}
