package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Store drivers understood by STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config captures application runtime configuration loaded from the
// environment, an optional .env file and command-line flags.
type Config struct {
	AppName   string `env:"APP_NAME,default=badbank"`
	AppEnv    string `env:"APP_ENV,default=development"`
	Port      string `env:"PORT,default=8080"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	StoreDriver          string        `env:"STORE_DRIVER,default=memory"`
	DatabaseURL          string        `env:"DATABASE_URL"`
	MySQLDSN             string        `env:"MYSQL_DSN"`
	StoreName            string        `env:"STORE_NAME"`
	StoreConnectAttempts uint64        `env:"STORE_CONNECT_ATTEMPTS,default=5"`
	StoreConnectDelay    time.Duration `env:"STORE_CONNECT_DELAY,default=1s"`
	RedisURL             string        `env:"REDIS_URL"`

	EncryptionKey  string        `env:"ENCRYPTION_KEY"`
	EncryptionSalt string        `env:"ENCRYPTION_SALT"`
	JWTSecret      string        `env:"JWT_SECRET"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL,default=1h"`
	BcryptCost     int           `env:"BCRYPT_COST,default=10"`

	LoginRateLimit     int           `env:"LOGIN_RATE_LIMIT,default=10"`
	IdempotencyTTL     time.Duration `env:"IDEMPOTENCY_TTL,default=24h"`
	ShutdownPeriod     time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	BreakerMaxFailures uint32        `env:"BREAKER_MAX_FAILURES,default=5"`
	BreakerOpenTimeout time.Duration `env:"BREAKER_OPEN_TIMEOUT,default=30s"`
}

// Load reads an optional dotenv file, then decodes the environment into a
// Config. Variables already present in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf(".env load: %w", err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("env decode: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// BindFlags registers command-line overrides for the most commonly tuned
// settings on fs. Values already in cfg become the flag defaults.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.Port, "port", "p", cfg.Port, "HTTP listen port")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (json, text)")
	fs.StringVarP(&cfg.StoreDriver, "store", "s", cfg.StoreDriver, "Account store driver (memory, postgres, mysql)")
	fs.StringVarP(&cfg.DatabaseURL, "database-url", "d", cfg.DatabaseURL, "PostgreSQL connection URL")
	fs.StringVar(&cfg.MySQLDSN, "mysql-dsn", cfg.MySQLDSN, "MySQL DSN")
	fs.StringVar(&cfg.StoreName, "store-name", cfg.StoreName, "Database name override")
	fs.StringVarP(&cfg.RedisURL, "redis-url", "r", cfg.RedisURL, "Redis URL; empty disables redis features")
	fs.DurationVar(&cfg.ShutdownPeriod, "shutdown-timeout", cfg.ShutdownPeriod, "Graceful shutdown timeout")
}

func (c *Config) normalize() {
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.LogFormat = strings.ToLower(c.LogFormat)
	c.StoreDriver = strings.ToLower(c.StoreDriver)
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	c.normalize()

	switch {
	case c.EncryptionKey == "":
		return errors.New("ENCRYPTION_KEY must be set")
	case c.EncryptionSalt == "":
		return errors.New("ENCRYPTION_SALT must be set")
	case c.JWTSecret == "":
		return errors.New("JWT_SECRET must be set")
	case c.AccessTokenTTL <= 0:
		return errors.New("ACCESS_TOKEN_TTL must be positive")
	case c.LoginRateLimit <= 0:
		return errors.New("LOGIN_RATE_LIMIT must be positive")
	}
	return c.ValidateStore()
}

// ValidateStore checks only the store settings, for tools that never serve
// HTTP.
func (c *Config) ValidateStore() error {
	c.normalize()
	if c.StoreConnectAttempts == 0 {
		return errors.New("STORE_CONNECT_ATTEMPTS must be at least 1")
	}

	switch c.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be set for the postgres store")
		}
	case DriverMySQL:
		if c.MySQLDSN == "" {
			return errors.New("MYSQL_DSN must be set for the mysql store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
