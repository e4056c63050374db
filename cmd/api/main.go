package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/badbank/badbank/internal/codec"
	"github.com/badbank/badbank/internal/config"
	"github.com/badbank/badbank/internal/infra"
	"github.com/badbank/badbank/internal/logging"
	"github.com/badbank/badbank/internal/server"
)

func main() {
	envFile := envFileFlag(os.Args[1:])
	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	flags := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	flags.String("env-file", envFile, "Optional dotenv file")
	config.BindFlags(flags, &cfg)
	_ = flags.Parse(os.Args[1:])

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	balances, err := codec.New(cfg.EncryptionKey, cfg.EncryptionSalt)
	if err != nil {
		logger.Error("init balance codec", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := infra.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("open account store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	var cache *redis.Client
	if cfg.RedisURL != "" {
		retry := infra.Retry{Attempts: cfg.StoreConnectAttempts, Delay: cfg.StoreConnectDelay, Logger: logger}
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL, retry)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	srv, err := server.New(cfg, store, balances, cache, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Address(), "store", cfg.StoreDriver)
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}

// envFileFlag picks --env-file out of args before the full flag set exists,
// since the file feeds the defaults of every other flag.
func envFileFlag(args []string) string {
	pre := pflag.NewFlagSet("pre", pflag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.SetOutput(io.Discard)
	pre.Usage = func() {}
	envFile := pre.String("env-file", ".env", "")
	_ = pre.Parse(args)
	return *envFile
}
