package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// CreateInput carries the fields needed to open an account.
type CreateInput struct {
	Name     string
	Email    string
	Password string
	Role     Role
}

// Service manages the account lifecycle.
type Service struct {
	store Store
	codec BalanceCodec
	cost  int
	now   func() time.Time
}

// NewService creates a new account service. A zero cost falls back to
// bcrypt.DefaultCost.
func NewService(store Store, codec BalanceCodec, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{store: store, codec: codec, cost: bcryptCost, now: func() time.Time { return time.Now().UTC() }}
}

// Create registers a new account with a sealed zero balance.
func (s *Service) Create(ctx context.Context, in CreateInput) (Profile, error) {
	role := in.Role
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return Profile{}, fmt.Errorf("unknown role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return Profile{}, fmt.Errorf("hash password: %w", err)
	}
	sealed, err := s.codec.Seal(decimal.Zero)
	if err != nil {
		return Profile{}, fmt.Errorf("seal opening balance: %w", err)
	}

	now := s.now()
	a := Account{
		ID:            uuid.New().String(),
		Name:          in.Name,
		Email:         in.Email,
		PasswordHash:  hash,
		SealedBalance: sealed,
		Role:          role,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, a); err != nil {
		return Profile{}, err
	}
	return Profile{Name: a.Name, Email: a.Email, Balance: decimal.Zero, Role: a.Role, CreatedAt: now, UpdatedAt: now}, nil
}

// Authenticate checks the password and returns the caller's profile.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Profile, error) {
	a, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return Profile{}, err
	}
	if err := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)); err != nil {
		return Profile{}, ErrInvalidCredentials
	}
	return s.profile(a)
}

// Find returns the sanitized profile for email.
func (s *Service) Find(ctx context.Context, email string) (Profile, error) {
	a, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return Profile{}, err
	}
	return s.profile(a)
}

// List returns every profile. A single unreadable balance fails the whole call.
func (s *Service) List(ctx context.Context) ([]Profile, error) {
	accounts, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	profiles := make([]Profile, 0, len(accounts))
	for _, a := range accounts {
		p, err := s.profile(a)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", a.Email, err)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, email, current, next string) error {
	a, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.store.SetPassword(ctx, email, hash)
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) profile(a Account) (Profile, error) {
	balance, err := s.codec.Open(a.SealedBalance)
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		Name:      a.Name,
		Email:     a.Email,
		Balance:   balance,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}, nil
}

// IsDomainError reports whether err is an expected business outcome rather
// than an infrastructure failure.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrDuplicateEmail) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidCredentials)
}
