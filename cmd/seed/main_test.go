package main

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/badbank/badbank/internal/account"
	"github.com/badbank/badbank/internal/codec"
	"github.com/badbank/badbank/internal/ledger"
	"github.com/badbank/badbank/internal/logging"
)

const sample = `
accounts:
  - name: Root
    email: root@badbank.test
    password: rootpassword
    role: admin
  - name: Alice
    email: alice@badbank.test
    password: alicepassword
    opening_balance: 125.50
`

func TestParseSeed(t *testing.T) {
	seeds, err := parseSeed([]byte(sample))
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	require.Equal(t, "admin", seeds[0].Role)
	require.True(t, seeds[0].OpeningBalance.IsZero())
	require.Equal(t, "user", seeds[1].Role)
	require.True(t, seeds[1].OpeningBalance.Equal(decimal.RequireFromString("125.5")))
}

func TestParseSeedRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"missing email":    "accounts:\n  - name: x\n    password: longenough\n",
		"short password":   "accounts:\n  - email: a@b.c\n    password: short\n",
		"negative balance": "accounts:\n  - email: a@b.c\n    password: longenough\n    opening_balance: -1\n",
		"duplicate":        "accounts:\n  - email: a@b.c\n    password: longenough\n  - email: a@b.c\n    password: longenough\n",
		"not yaml":         "accounts: [",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseSeed([]byte(raw))
			require.Error(t, err)
		})
	}
}

func newSeeder(t *testing.T) seeder {
	t.Helper()
	c, err := codec.New("seed-secret", "seed-salt")
	require.NoError(t, err)
	store := account.NewMemoryRepository()
	return seeder{
		accounts: account.NewService(store, c, bcrypt.MinCost),
		ledger:   ledger.NewService(store, c, nil, logging.Discard()),
		logger:   logging.Discard(),
	}
}

func TestSeederCreatesMissingAccountsOnce(t *testing.T) {
	ctx := context.Background()
	s := newSeeder(t)
	seeds, err := parseSeed([]byte(sample))
	require.NoError(t, err)

	created, err := s.run(ctx, seeds)
	require.NoError(t, err)
	require.Equal(t, 2, created)

	admin, err := s.accounts.Find(ctx, "root@badbank.test")
	require.NoError(t, err)
	require.Equal(t, account.RoleAdmin, admin.Role)

	balance, err := s.ledger.Balance(ctx, "alice@badbank.test")
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.RequireFromString("125.5")), "balance %s", balance)

	created, err = s.run(ctx, seeds)
	require.NoError(t, err)
	require.Zero(t, created)

	balance, err = s.ledger.Balance(ctx, "alice@badbank.test")
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.RequireFromString("125.5")), "re-run must not fund twice")
}

func TestSeederFundsAccountLeftUnfunded(t *testing.T) {
	ctx := context.Background()
	s := newSeeder(t)
	_, err := s.accounts.Create(ctx, account.CreateInput{Name: "Alice", Email: "alice@badbank.test", Password: "alicepassword"})
	require.NoError(t, err)

	seeds, err := parseSeed([]byte(sample))
	require.NoError(t, err)
	created, err := s.run(ctx, seeds)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	balance, err := s.ledger.Balance(ctx, "alice@badbank.test")
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.RequireFromString("125.5")), "balance %s", balance)
}

func TestSeederRejectsOversizedOpeningBalance(t *testing.T) {
	ctx := context.Background()
	s := newSeeder(t)
	seeds, err := parseSeed([]byte("accounts:\n  - email: big@badbank.test\n    password: longenough\n    opening_balance: 1e50000000\n"))
	require.NoError(t, err)

	_, err = s.run(ctx, seeds)
	require.ErrorIs(t, err, account.ErrInvalidAmount)
}
