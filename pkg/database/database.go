// Package database builds pooled connections to the external (MySQL)
// and internal (PostgreSQL) databases from configuration.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tributary-data/tributary/pkg/config"
	"github.com/tributary-data/tributary/pkg/errors"
	"github.com/tributary-data/tributary/pkg/logger"
)

// OpenExternal opens a pooled connection to the external MySQL database.
// The connection is validated with a ping before being returned.
func OpenExternal(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.Type != "mysql" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported external database type %q", cfg.Type)
	}

	db, err := sql.Open("mysql", ExternalDSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open external database")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 5
	}
	db.SetMaxOpenConns(poolSize + cfg.MaxOverflow)
	db.SetMaxIdleConns(poolSize)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "external database unreachable")
	}

	logger.Get().Info("connected to external database",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.Int("pool_size", poolSize))

	return db, nil
}

// OpenInternal opens a pooled connection to the internal PostgreSQL
// database.
func OpenInternal(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.Type != "postgresql" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported internal database type %q", cfg.Type)
	}

	poolConfig, err := pgxpool.ParseConfig(InternalDSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse internal connection string")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 5
	}
	poolConfig.MaxConns = int32(poolSize + cfg.MaxOverflow)
	poolConfig.MinConns = int32(poolSize / 2)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create internal connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "internal database unreachable")
	}

	logger.Get().Info("connected to internal database",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.Int32("max_connections", poolConfig.MaxConns))

	return pool, nil
}

// ExternalDSN builds the MySQL DSN from configuration. parseTime makes
// DATETIME columns scan as time.Time instead of []byte.
func ExternalDSN(cfg config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.Database
	mc.ParseTime = true
	return mc.FormatDSN()
}

// InternalDSN builds the PostgreSQL connection URL from configuration.
// Credentials are URL-escaped so special characters in passwords survive.
func InternalDSN(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   cfg.Database,
	}
	return u.String()
}
