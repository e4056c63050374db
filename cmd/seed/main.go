// Command seed creates accounts listed in a YAML file, for example the first
// admin of a fresh deployment. Accounts that already exist are left alone.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/badbank/badbank/internal/account"
	"github.com/badbank/badbank/internal/codec"
	"github.com/badbank/badbank/internal/config"
	"github.com/badbank/badbank/internal/infra"
	"github.com/badbank/badbank/internal/ledger"
	"github.com/badbank/badbank/internal/logging"
)

func main() {
	flags := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	file := flags.StringP("file", "f", "seed.yaml", "YAML file listing accounts to create")
	envFile := flags.String("env-file", ".env", "Optional dotenv file")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateStore(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	seeds, err := loadSeedFile(*file)
	if err != nil {
		logger.Error("read seed file", "file", *file, "error", err)
		os.Exit(1)
	}

	balances, err := codec.New(cfg.EncryptionKey, cfg.EncryptionSalt)
	if err != nil {
		logger.Error("init balance codec", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, closeStore, err := infra.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("open account store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	s := seeder{
		accounts: account.NewService(store, balances, cfg.BcryptCost),
		ledger:   ledger.NewService(store, balances, nil, logger),
		logger:   logger,
	}
	created, err := s.run(ctx, seeds)
	if err != nil {
		logger.Error("seed failed", "created", created, "error", err)
		os.Exit(1)
	}
	logger.Info("seed complete", "created", created, "listed", len(seeds))
}

type seeder struct {
	accounts *account.Service
	ledger   *ledger.Service
	logger   *slog.Logger
}

func (s seeder) run(ctx context.Context, seeds []seedAccount) (int, error) {
	created := 0
	for _, sa := range seeds {
		_, err := s.accounts.Create(ctx, account.CreateInput{
			Name:     sa.Name,
			Email:    sa.Email,
			Password: sa.Password,
			Role:     account.Role(sa.Role),
		})
		if errors.Is(err, account.ErrDuplicateEmail) {
			if err := s.fundUntouched(ctx, sa); err != nil {
				return created, err
			}
			continue
		}
		if err != nil {
			return created, fmt.Errorf("create %s: %w", sa.Email, err)
		}
		created++

		if err := s.fund(ctx, sa); err != nil {
			return created, err
		}
		s.logger.Info("account created", "email", sa.Email, "role", sa.Role)
	}
	return created, nil
}

func (s seeder) fund(ctx context.Context, sa seedAccount) error {
	if !sa.OpeningBalance.IsPositive() {
		return nil
	}
	if _, err := s.ledger.Adjust(ctx, sa.Email, sa.OpeningBalance); err != nil {
		s.logger.Error("account created without opening balance", "email", sa.Email, "error", err)
		return fmt.Errorf("fund %s: %w", sa.Email, err)
	}
	return nil
}

// fundUntouched funds an existing account whose history is empty. That is
// the state a run that failed between create and fund leaves behind.
func (s seeder) fundUntouched(ctx context.Context, sa seedAccount) error {
	if !sa.OpeningBalance.IsPositive() {
		s.logger.Info("account exists, skipping", "email", sa.Email)
		return nil
	}
	history, err := s.ledger.History(ctx, sa.Email, 1)
	if err != nil {
		return fmt.Errorf("history %s: %w", sa.Email, err)
	}
	if len(history) > 0 {
		s.logger.Info("account exists, skipping", "email", sa.Email)
		return nil
	}
	s.logger.Warn("account exists without opening balance, funding", "email", sa.Email)
	return s.fund(ctx, sa)
}
