package infra

import (
	"context"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewMySQL opens a gorm handle on MySQL. A non-empty database replaces the
// DSN's database name.
func NewMySQL(ctx context.Context, dsn, database string, retry Retry) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("mysql dsn is required")
	}

	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	if database != "" {
		cfg.DBName = database
	}
	cfg.ParseTime = true

	db, err := gorm.Open(mysql.Open(cfg.FormatDSN()), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql handle: %w", err)
	}

	if err := retry.do(ctx, "mysql", func() error { return sqlDB.PingContext(ctx) }); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}
