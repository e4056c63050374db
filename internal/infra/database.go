package infra

import (
	"context"
	"fmt"
	neturl "net/url"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPostgresPool configures a PostgreSQL connection pool and waits for the
// server to answer a ping.
func NewPostgresPool(ctx context.Context, url string, retry Retry) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := retry.do(ctx, "postgres", func() error { return pool.Ping(ctx) }); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// WithDatabase replaces the database name in a postgres:// URL. An empty name
// returns the URL unchanged.
func WithDatabase(rawURL, database string) (string, error) {
	if database == "" {
		return rawURL, nil
	}
	u, err := neturl.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return "", fmt.Errorf("STORE_NAME needs DATABASE_URL in URL form")
	}
	u.Path = "/" + database
	return u.String(), nil
}
