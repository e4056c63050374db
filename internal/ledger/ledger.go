package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/badbank/badbank/internal/account"
	"github.com/badbank/badbank/internal/notification"
)

// DefaultHistoryLimit bounds History when the caller passes no limit.
const DefaultHistoryLimit = 50

const (
	// MaxScale is the number of decimal places an amount may carry.
	MaxScale = 2

	maxAmountDigits  = 12
	maxWrittenDigits = 18
)

// MaxAmount caps the absolute value of a single adjustment.
var MaxAmount = decimal.New(1, maxAmountDigits)

// validAmount reports whether delta is a usable adjustment. The exponent is
// checked before any comparison because decimal rescales through powers of
// ten, which for "1e50000000" means a fifty million digit integer.
func validAmount(delta decimal.Decimal) bool {
	if delta.IsZero() {
		return false
	}
	if exp := delta.Exponent(); exp > maxAmountDigits || exp < -maxWrittenDigits {
		return false
	}
	if !delta.Equal(delta.Truncate(MaxScale)) {
		return false
	}
	return !delta.Abs().GreaterThan(MaxAmount)
}

// Result is the outcome of a successful adjustment.
type Result struct {
	Email   string
	Balance decimal.Decimal
	Entry   account.Entry
}

// HistoryItem is a history entry with its post-operation balance opened.
type HistoryItem struct {
	ID        string
	Kind      account.EntryKind
	Amount    decimal.Decimal
	Balance   decimal.Decimal
	CreatedAt time.Time
}

// Service applies signed balance adjustments. It is not idempotent: calling
// Adjust twice with the same arguments moves the balance twice.
type Service struct {
	store    account.Store
	codec    account.BalanceCodec
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a ledger over store. A nil notifier disables events.
func NewService(store account.Store, codec account.BalanceCodec, notifier notification.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		codec:    codec,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "ledger")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Adjust adds delta to the balance of email. A negative delta that would
// leave the balance below zero fails with account.ErrInsufficientFunds and
// changes nothing. Zero, amounts with more than MaxScale decimal places and
// amounts beyond MaxAmount fail with account.ErrInvalidAmount.
func (s *Service) Adjust(ctx context.Context, email string, delta decimal.Decimal) (Result, error) {
	kind := account.KindDeposit
	if delta.IsNegative() {
		kind = account.KindWithdrawal
	}
	if !validAmount(delta) {
		adjustmentsTotal.WithLabelValues(string(kind), account.Reason(account.ErrInvalidAmount)).Inc()
		return Result{}, account.ErrInvalidAmount
	}

	start := time.Now()
	var result Result
	_, err := s.store.Mutate(ctx, email, func(current account.Account) (account.Mutation, error) {
		balance, err := s.codec.Open(current.SealedBalance)
		if err != nil {
			return account.Mutation{}, err
		}
		next := balance.Add(delta)
		if delta.IsNegative() && next.IsNegative() {
			return account.Mutation{}, account.ErrInsufficientFunds
		}
		sealed, err := s.codec.Seal(next)
		if err != nil {
			return account.Mutation{}, fmt.Errorf("seal balance: %w", err)
		}

		now := s.now()
		entry := account.Entry{
			ID:            uuid.New().String(),
			Email:         email,
			Kind:          kind,
			Amount:        delta.Abs(),
			SealedBalance: sealed,
			CreatedAt:     now,
		}
		result = Result{Email: email, Balance: next, Entry: entry}
		return account.Mutation{SealedBalance: sealed, UpdatedAt: now, Entry: &entry}, nil
	})
	adjustLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		reason := account.Reason(err)
		adjustmentsTotal.WithLabelValues(string(kind), reason).Inc()
		level := slog.LevelWarn
		if !account.IsDomainError(err) {
			level = slog.LevelError
		}
		s.logger.LogAttrs(ctx, level, "adjustment rejected",
			slog.String("email", email),
			slog.String("kind", string(kind)),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		return Result{}, err
	}

	adjustmentsTotal.WithLabelValues(string(kind), "ok").Inc()
	adjustedAmount.WithLabelValues(string(kind)).Add(delta.Abs().InexactFloat64())
	s.publish(ctx, result.Entry)
	return result, nil
}

// Deposit credits a positive amount.
func (s *Service) Deposit(ctx context.Context, email string, amount decimal.Decimal) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, account.ErrInvalidAmount
	}
	return s.Adjust(ctx, email, amount)
}

// Withdraw debits a positive amount.
func (s *Service) Withdraw(ctx context.Context, email string, amount decimal.Decimal) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, account.ErrInvalidAmount
	}
	return s.Adjust(ctx, email, amount.Neg())
}

// Balance returns the opened balance of email.
func (s *Service) Balance(ctx context.Context, email string) (decimal.Decimal, error) {
	a, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return decimal.Zero, err
	}
	return s.codec.Open(a.SealedBalance)
}

// History returns up to limit entries, newest first.
func (s *Service) History(ctx context.Context, email string, limit int) ([]HistoryItem, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	entries, err := s.store.Entries(ctx, email, limit)
	if err != nil {
		return nil, err
	}
	items := make([]HistoryItem, 0, len(entries))
	for _, e := range entries {
		balance, err := s.codec.Open(e.SealedBalance)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		items = append(items, HistoryItem{
			ID:        e.ID,
			Kind:      e.Kind,
			Amount:    e.Amount,
			Balance:   balance,
			CreatedAt: e.CreatedAt,
		})
	}
	return items, nil
}

func (s *Service) publish(ctx context.Context, e account.Entry) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Send(ctx, notification.Message{
		Kind:      string(e.Kind),
		Email:     e.Email,
		Amount:    e.Amount.String(),
		EntryID:   e.ID,
		CreatedAt: e.CreatedAt,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("publish ledger event", slog.String("entry_id", e.ID), slog.String("error", err.Error()))
	}
}
