package account

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestMemoryMutateAbortLeavesStateUnchanged(t *testing.T) {
	store := NewMemoryRepository()
	ctx := context.Background()
	if err := store.Create(ctx, Account{Email: "m@example.com", SealedBalance: "s0"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := store.Mutate(ctx, "m@example.com", func(Account) (Mutation, error) {
		return Mutation{}, ErrInsufficientFunds
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected fn error to pass through, got %v", err)
	}
	a, _ := store.FindByEmail(ctx, "m@example.com")
	if a.SealedBalance != "s0" {
		t.Fatalf("state changed after aborted mutate: %q", a.SealedBalance)
	}
	entries, _ := store.Entries(ctx, "m@example.com", 0)
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestMemoryMutateUnknownAccount(t *testing.T) {
	store := NewMemoryRepository()
	_, err := store.Mutate(context.Background(), "ghost@example.com", func(Account) (Mutation, error) {
		t.Fatalf("fn must not run for a missing account")
		return Mutation{}, nil
	})
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryMutateSerializesPerAccount(t *testing.T) {
	store := NewMemoryRepository()
	ctx := context.Background()
	if err := store.Create(ctx, Account{Email: "c@example.com", SealedBalance: "0"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	const workers = 100
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Mutate(ctx, "c@example.com", func(cur Account) (Mutation, error) {
				n := decimal.RequireFromString(cur.SealedBalance)
				return Mutation{SealedBalance: n.Add(decimal.NewFromInt(1)).String()}, nil
			})
			if err != nil {
				t.Errorf("mutate: %v", err)
			}
		}()
	}
	wg.Wait()

	a, _ := store.FindByEmail(ctx, "c@example.com")
	if a.SealedBalance != fmt.Sprint(workers) {
		t.Fatalf("expected %d, got %s", workers, a.SealedBalance)
	}
}

func TestMemoryEntriesNewestFirstWithLimit(t *testing.T) {
	store := NewMemoryRepository()
	ctx := context.Background()
	if err := store.Create(ctx, Account{Email: "h@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 1; i <= 3; i++ {
		i := i
		_, err := store.Mutate(ctx, "h@example.com", func(Account) (Mutation, error) {
			return Mutation{Entry: &Entry{ID: fmt.Sprint(i), Kind: KindDeposit, Amount: decimal.NewFromInt(int64(i))}}, nil
		})
		if err != nil {
			t.Fatalf("mutate: %v", err)
		}
	}

	entries, err := store.Entries(ctx, "h@example.com", 2)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "3" || entries[1].ID != "2" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if _, err := store.Entries(ctx, "nobody@example.com", 0); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryListOrderedByCreation(t *testing.T) {
	store := NewMemoryRepository()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, email := range []string{"c@example.com", "a@example.com", "b@example.com"} {
		if err := store.Create(ctx, Account{Email: email, CreatedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	accounts, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(accounts) != 3 || accounts[0].Email != "c@example.com" || accounts[2].Email != "b@example.com" {
		t.Fatalf("unexpected order %+v", accounts)
	}
}

func TestMemorySetPassword(t *testing.T) {
	store := NewMemoryRepository()
	ctx := context.Background()
	if err := store.SetPassword(ctx, "none@example.com", []byte("h")); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Create(ctx, Account{Email: "p@example.com", PasswordHash: []byte("old")}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.SetPassword(ctx, "p@example.com", []byte("new")); err != nil {
		t.Fatalf("set password: %v", err)
	}
	a, _ := store.FindByEmail(ctx, "p@example.com")
	if string(a.PasswordHash) != "new" {
		t.Fatalf("password not updated")
	}
}
