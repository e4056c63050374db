package infra

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry bounds how hard start-up connections are retried.
type Retry struct {
	Attempts uint64
	Delay    time.Duration
	Logger   *slog.Logger
}

func (r Retry) do(ctx context.Context, what string, op func() error) error {
	attempts := r.Attempts
	if attempts == 0 {
		attempts = 1
	}
	exp := backoff.NewExponentialBackOff()
	if r.Delay > 0 {
		exp.InitialInterval = r.Delay
	}
	exp.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, attempts-1), ctx)
	return backoff.RetryNotify(op, policy, func(err error, next time.Duration) {
		if r.Logger == nil {
			return
		}
		r.Logger.Warn("connect failed, retrying",
			slog.String("target", what),
			slog.Duration("backoff", next),
			slog.String("error", err.Error()),
		)
	})
}
