package dbconn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/kengreim/vnas-stats/internal/config"
	"github.com/kengreim/vnas-stats/internal/dbconn/migrations"
	"github.com/kengreim/vnas-stats/internal/logger"
)

// RunMigrations applies the embedded schema migrations for the queue,
// payload, session, and activity tables (§6). golang-migrate uses a
// PostgreSQL advisory lock internally, so concurrent ingestor/projector
// startup is safe.
func RunMigrations(ctx context.Context, cfg *config.DatabaseConfig) error {
	cfg.ApplyDefaults()

	db, err := sql.Open("pgx", cfg.ConnectionString())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database for migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "schema_migrations",
		DatabaseName:    cfg.Database,
	})
	if err != nil {
		return fmt.Errorf("create postgres migration driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	logger.Info("applying database migrations")
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		logger.Warn("database schema is in a dirty state", "version", version)
	} else {
		logger.Info("database schema up to date", "version", version)
	}

	return nil
}
