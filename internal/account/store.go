//go:generate mockgen -source=./store.go -destination=./mock/store.go -package=accountmock
package account

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store persists accounts keyed by email. Implementations serialize Mutate
// calls per account and never see plaintext balances.
type Store interface {
	// Create inserts a new account or fails with ErrDuplicateEmail.
	Create(ctx context.Context, a Account) error
	// FindByEmail returns the account or ErrAccountNotFound.
	FindByEmail(ctx context.Context, email string) (Account, error)
	// List returns every account ordered by creation time.
	List(ctx context.Context) ([]Account, error)
	// Mutate applies fn atomically and returns the updated account.
	Mutate(ctx context.Context, email string, fn MutateFunc) (Account, error)
	// SetPassword replaces the password hash.
	SetPassword(ctx context.Context, email string, hash []byte) error
	// Entries returns up to limit history entries, newest first.
	Entries(ctx context.Context, email string, limit int) ([]Entry, error)
	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
}

// BalanceCodec seals balances for storage and opens them for authorized reads.
type BalanceCodec interface {
	Seal(amount decimal.Decimal) (string, error)
	Open(sealed string) (decimal.Decimal, error)
}
