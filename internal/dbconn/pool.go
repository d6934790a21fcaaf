// Package dbconn creates and migrates the shared PostgreSQL connection pool
// used by both the ingestor (for Enqueue) and the projector (for the
// per-snapshot transaction), following the teacher's
// pkg/store/metadata/postgres/connection.go pattern.
package dbconn

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kengreim/vnas-stats/internal/config"
	"github.com/kengreim/vnas-stats/internal/logger"
)

// NewPool creates, configures, and pings a pgx connection pool.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	cfg.ApplyDefaults()

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod

	logger.Info("creating postgresql connection pool",
		"host", cfg.Host, "port", cfg.Port, "database", cfg.Database,
		"max_conns", cfg.MaxConns, "min_conns", cfg.MinConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgresql: %w", err)
	}

	logger.Info("postgresql connection pool ready")
	return pool, nil
}

// ClosePool closes the pool gracefully, logging the event.
func ClosePool(pool *pgxpool.Pool) {
	if pool == nil {
		return
	}
	logger.Info("closing postgresql connection pool")
	pool.Close()
}
