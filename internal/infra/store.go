package infra

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/badbank/badbank/internal/account"
	"github.com/badbank/badbank/internal/config"
)

// OpenStore builds the account store selected by cfg.StoreDriver, wrapped in
// a circuit breaker. The returned close func releases the connection.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (account.Store, func(), error) {
	retry := Retry{Attempts: cfg.StoreConnectAttempts, Delay: cfg.StoreConnectDelay, Logger: logger}
	breaker := account.BreakerSettings{
		Name:        "account-store-" + cfg.StoreDriver,
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout,
	}

	switch cfg.StoreDriver {
	case config.DriverMemory, "":
		return account.NewMemoryRepository(), func() {}, nil

	case config.DriverPostgres:
		dbURL, err := WithDatabase(cfg.DatabaseURL, cfg.StoreName)
		if err != nil {
			return nil, nil, err
		}
		pool, err := NewPostgresPool(ctx, dbURL, retry)
		if err != nil {
			return nil, nil, err
		}
		if err := RunMigrations(logger, dbURL); err != nil {
			pool.Close()
			return nil, nil, err
		}
		store := account.NewBreakerStore(account.NewPostgresRepository(pool), breaker, logger)
		return store, pool.Close, nil

	case config.DriverMySQL:
		db, err := NewMySQL(ctx, cfg.MySQLDSN, cfg.StoreName, retry)
		if err != nil {
			return nil, nil, err
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
		repo := account.NewGormRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			closeDB()
			return nil, nil, err
		}
		return account.NewBreakerStore(repo, breaker, logger), closeDB, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
