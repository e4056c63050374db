package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/badbank/badbank/internal/account"
	accountmock "github.com/badbank/badbank/internal/account/mock"
	"github.com/badbank/badbank/internal/codec"
	"github.com/badbank/badbank/internal/logging"
	"github.com/badbank/badbank/internal/notification"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notification.Message
}

func (r *recordingNotifier) Send(_ context.Context, m notification.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
	return nil
}

type fixture struct {
	ledger   *Service
	store    account.Store
	codec    *codec.Codec
	notifier *recordingNotifier
}

func newFixture(t *testing.T, emails ...string) fixture {
	t.Helper()
	c, err := codec.New("ledger-secret", "ledger-salt")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	store := account.NewMemoryRepository()
	accounts := account.NewService(store, c, bcrypt.MinCost)
	for _, email := range emails {
		if _, err := accounts.Create(context.Background(), account.CreateInput{Name: email, Email: email, Password: "password1"}); err != nil {
			t.Fatalf("create %s: %v", email, err)
		}
	}
	n := &recordingNotifier{}
	return fixture{ledger: NewService(store, c, n, logging.Discard()), store: store, codec: c, notifier: n}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f fixture) mustBalance(t *testing.T, email, want string) {
	t.Helper()
	got, err := f.ledger.Balance(context.Background(), email)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !got.Equal(dec(want)) {
		t.Fatalf("expected balance %s, got %s", want, got)
	}
}

func TestScenarioSeedWithdrawDeposit(t *testing.T) {
	f := newFixture(t, "a@x.com")
	ctx := context.Background()

	if _, err := f.ledger.Adjust(ctx, "a@x.com", dec("10")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := f.ledger.Adjust(ctx, "a@x.com", dec("-15")); !errors.Is(err, account.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	f.mustBalance(t, "a@x.com", "10")

	res, err := f.ledger.Adjust(ctx, "a@x.com", dec("-10"))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !res.Balance.IsZero() {
		t.Fatalf("expected 0 after withdraw, got %s", res.Balance)
	}
	f.mustBalance(t, "a@x.com", "0")

	if _, err := f.ledger.Adjust(ctx, "a@x.com", dec("5")); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	f.mustBalance(t, "a@x.com", "5")
}

func TestDepositReturnsNewBalance(t *testing.T) {
	f := newFixture(t, "d@x.com")
	ctx := context.Background()

	for _, d := range []string{"0.01", "2.5", "100", "1234.5678"} {
		before, _ := f.ledger.Balance(ctx, "d@x.com")
		res, err := f.ledger.Adjust(ctx, "d@x.com", dec(d))
		if err != nil {
			t.Fatalf("deposit %s: %v", d, err)
		}
		want := before.Add(dec(d))
		if !res.Balance.Equal(want) {
			t.Fatalf("expected %s, got %s", want, res.Balance)
		}
		f.mustBalance(t, "d@x.com", want.String())
	}
}

func TestWithdrawBeyondBalanceLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, "w@x.com")
	ctx := context.Background()
	if _, err := f.ledger.Adjust(ctx, "w@x.com", dec("3")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before, _ := f.store.FindByEmail(ctx, "w@x.com")

	for _, d := range []string{"-3.01", "-4", "-1000"} {
		if _, err := f.ledger.Adjust(ctx, "w@x.com", dec(d)); !errors.Is(err, account.ErrInsufficientFunds) {
			t.Fatalf("adjust %s: expected insufficient funds, got %v", d, err)
		}
	}
	after, _ := f.store.FindByEmail(ctx, "w@x.com")
	if after.SealedBalance != before.SealedBalance {
		t.Fatalf("sealed balance rewritten by a rejected withdrawal")
	}
	items, _ := f.ledger.History(ctx, "w@x.com", 0)
	if len(items) != 1 {
		t.Fatalf("expected a single history entry, got %d", len(items))
	}
}

func TestZeroDeltaRejected(t *testing.T) {
	f := newFixture(t, "z@x.com")
	if _, err := f.ledger.Adjust(context.Background(), "z@x.com", decimal.Zero); !errors.Is(err, account.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := f.ledger.Withdraw(context.Background(), "z@x.com", dec("-1")); !errors.Is(err, account.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount for negative withdraw, got %v", err)
	}
}

func TestOutOfRangeAmountsRejected(t *testing.T) {
	f := newFixture(t, "r@x.com")
	ctx := context.Background()

	for _, raw := range []string{"1e50000000", "-1e50000000", "1e-50000000", "0.001", "-0.005", "1000000000000.01", "1e13"} {
		if _, err := f.ledger.Adjust(ctx, "r@x.com", dec(raw)); !errors.Is(err, account.ErrInvalidAmount) {
			t.Fatalf("amount %s: expected invalid amount, got %v", raw, err)
		}
	}
	f.mustBalance(t, "r@x.com", "0")
	if items, _ := f.ledger.History(ctx, "r@x.com", 0); len(items) != 0 {
		t.Fatalf("rejected amounts must not be recorded, got %d entries", len(items))
	}

	for _, raw := range []string{"0.010", "1e12", "12.5"} {
		if _, err := f.ledger.Adjust(ctx, "r@x.com", dec(raw)); err != nil {
			t.Fatalf("amount %s: %v", raw, err)
		}
	}
	f.mustBalance(t, "r@x.com", "1000000000012.51")
}

func TestAdjustUnknownAccount(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ledger.Adjust(context.Background(), "ghost@x.com", dec("1")); !errors.Is(err, account.ErrAccountNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentAdjustmentsDoNotLoseUpdates(t *testing.T) {
	f := newFixture(t, "c@x.com")
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.ledger.Adjust(ctx, "c@x.com", decimal.NewFromInt(1)); err != nil {
				t.Errorf("adjust: %v", err)
			}
		}()
	}
	wg.Wait()

	f.mustBalance(t, "c@x.com", "50")
	if len(f.notifier.messages) != workers {
		t.Fatalf("expected %d events, got %d", workers, len(f.notifier.messages))
	}
}

func TestTamperedBalanceFailsClosed(t *testing.T) {
	f := newFixture(t, "t@x.com")
	ctx := context.Background()

	other, err := codec.New("someone-else", "ledger-salt")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	foreign, _ := other.Seal(dec("1000"))
	if _, err := f.store.Mutate(ctx, "t@x.com", func(account.Account) (account.Mutation, error) {
		return account.Mutation{SealedBalance: foreign}, nil
	}); err != nil {
		t.Fatalf("plant foreign balance: %v", err)
	}

	if _, err := f.ledger.Adjust(ctx, "t@x.com", dec("1")); !errors.Is(err, codec.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
	if _, err := f.ledger.Balance(ctx, "t@x.com"); !errors.Is(err, codec.ErrIntegrity) {
		t.Fatalf("expected integrity error on read, got %v", err)
	}

	if _, err := f.store.Mutate(ctx, "t@x.com", func(account.Account) (account.Mutation, error) {
		return account.Mutation{SealedBalance: "250"}, nil
	}); err != nil {
		t.Fatalf("plant plaintext balance: %v", err)
	}
	if _, err := f.ledger.Adjust(ctx, "t@x.com", dec("1")); !errors.Is(err, codec.ErrFormat) {
		t.Fatalf("expected format error, got %v", err)
	}
}

func TestHistoryAndEvents(t *testing.T) {
	f := newFixture(t, "h@x.com")
	ctx := context.Background()

	for _, d := range []string{"10", "-4", "2"} {
		if _, err := f.ledger.Adjust(ctx, "h@x.com", dec(d)); err != nil {
			t.Fatalf("adjust %s: %v", d, err)
		}
	}
	items, err := f.ledger.History(ctx, "h@x.com", 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Kind != account.KindDeposit || !items[0].Amount.Equal(dec("2")) || !items[0].Balance.Equal(dec("8")) {
		t.Fatalf("unexpected newest item %+v", items[0])
	}
	if items[1].Kind != account.KindWithdrawal || !items[1].Amount.Equal(dec("4")) || !items[1].Balance.Equal(dec("6")) {
		t.Fatalf("unexpected second item %+v", items[1])
	}

	if len(f.notifier.messages) != 3 {
		t.Fatalf("expected 3 events, got %d", len(f.notifier.messages))
	}
	if m := f.notifier.messages[1]; m.Kind != notification.KindWithdrawal || m.Amount != "4" || m.Email != "h@x.com" {
		t.Fatalf("unexpected event %+v", m)
	}
}

func TestStorageErrorPassesThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := accountmock.NewMockStore(ctrl)
	storageErr := account.NewStorageError("mutate", errors.New("connection reset"))
	store.EXPECT().Mutate(gomock.Any(), "s@x.com", gomock.Any()).Return(account.Account{}, storageErr)

	c, err := codec.New("ledger-secret", "ledger-salt")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	n := &recordingNotifier{}
	l := NewService(store, c, n, logging.Discard())

	_, err = l.Adjust(context.Background(), "s@x.com", dec("1"))
	if !errors.Is(err, account.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if account.Reason(err) != "StorageError" {
		t.Fatalf("unexpected reason %s", account.Reason(err))
	}
	if len(n.messages) != 0 {
		t.Fatalf("no event expected on failure")
	}
}
