package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KindDeposit indicates a credited balance adjustment.
	KindDeposit = "deposit"
	// KindWithdrawal indicates a debited balance adjustment.
	KindWithdrawal = "withdrawal"

	// DefaultChannel is the pub/sub channel ledger events are published on.
	DefaultChannel = "badbank:ledger"
)

// Message describes a ledger event. It never carries the resulting balance.
type Message struct {
	Kind      string    `json:"kind"`
	Email     string    `json:"email"`
	Amount    string    `json:"amount"`
	EntryID   string    `json:"entry_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", message.Kind,
		"email", message.Email,
		"amount", message.Amount,
		"entry_id", message.EntryID,
	)
	return nil
}

// RedisNotifier publishes notifications as JSON on a redis channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier builds a publisher. An empty channel uses DefaultChannel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{client: client, channel: channel}
}

// Send publishes the message.
func (n *RedisNotifier) Send(ctx context.Context, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Multi fans a message out to several notifiers and returns the first error.
type Multi []Notifier

// Send delivers to every notifier even if one fails.
func (m Multi) Send(ctx context.Context, message Message) error {
	var first error
	for _, n := range m {
		if err := n.Send(ctx, message); err != nil && first == nil {
			first = err
		}
	}
	return first
}
