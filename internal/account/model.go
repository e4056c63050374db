package account

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role gates access to administrative views.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Account is the persisted record. The balance is only ever held sealed.
type Account struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  []byte
	SealedBalance string
	Role          Role
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EntryKind tells deposits from withdrawals in the history.
type EntryKind string

const (
	KindDeposit    EntryKind = "deposit"
	KindWithdrawal EntryKind = "withdrawal"
)

// Entry is one line of an account's transaction history. Amount is absolute;
// SealedBalance is the balance after the adjustment.
type Entry struct {
	ID            string
	Email         string
	Kind          EntryKind
	Amount        decimal.Decimal
	SealedBalance string
	CreatedAt     time.Time
}

// Mutation is what a MutateFunc asks the store to persist.
type Mutation struct {
	SealedBalance string
	UpdatedAt     time.Time
	Entry         *Entry
}

// MutateFunc computes a mutation from the current record. It runs while the
// store holds the account lock; returning an error aborts without writing.
type MutateFunc func(current Account) (Mutation, error)

// Profile is the sanitized view returned to callers.
type Profile struct {
	Name      string
	Email     string
	Balance   decimal.Decimal
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}
