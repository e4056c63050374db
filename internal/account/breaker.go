package account

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings tunes the circuit breaker around a Store.
type BreakerSettings struct {
	Name        string
	MaxFailures uint32
	OpenTimeout time.Duration
}

// BreakerStore stops calling a failing store after MaxFailures consecutive
// storage errors. Domain outcomes such as ErrAccountNotFound pass through and
// never count as failures.
type BreakerStore struct {
	next   Store
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

// NewBreakerStore wraps next with a circuit breaker.
func NewBreakerStore(next Store, settings BreakerSettings, logger *slog.Logger) *BreakerStore {
	if settings.Name == "" {
		settings.Name = "account-store"
	}
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &BreakerStore{next: next, logger: logger.With(slog.String("component", "store_breaker"))}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    settings.Name,
		Timeout: settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return b
}

// State reports the current breaker state.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) do(op string, call func() error) error {
	var outcome error
	_, err := b.cb.Execute(func() (interface{}, error) {
		err := call()
		if err != nil && !errors.Is(err, ErrStorage) {
			outcome = err
			return nil, nil
		}
		return nil, err
	})
	if outcome != nil {
		return outcome
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return NewStorageError(op, err)
	}
	return err
}

func (b *BreakerStore) Create(ctx context.Context, a Account) error {
	return b.do("create", func() error { return b.next.Create(ctx, a) })
}

func (b *BreakerStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	var a Account
	err := b.do("find", func() (err error) {
		a, err = b.next.FindByEmail(ctx, email)
		return err
	})
	return a, err
}

func (b *BreakerStore) List(ctx context.Context) ([]Account, error) {
	var accounts []Account
	err := b.do("list", func() (err error) {
		accounts, err = b.next.List(ctx)
		return err
	})
	return accounts, err
}

func (b *BreakerStore) Mutate(ctx context.Context, email string, fn MutateFunc) (Account, error) {
	var a Account
	err := b.do("mutate", func() (err error) {
		a, err = b.next.Mutate(ctx, email, fn)
		return err
	})
	return a, err
}

func (b *BreakerStore) SetPassword(ctx context.Context, email string, hash []byte) error {
	return b.do("set password", func() error { return b.next.SetPassword(ctx, email, hash) })
}

func (b *BreakerStore) Entries(ctx context.Context, email string, limit int) ([]Entry, error) {
	var entries []Entry
	err := b.do("entries", func() (err error) {
		entries, err = b.next.Entries(ctx, email, limit)
		return err
	})
	return entries, err
}

func (b *BreakerStore) Ping(ctx context.Context) error {
	return b.do("ping", func() error { return b.next.Ping(ctx) })
}

var _ Store = (*BreakerStore)(nil)
