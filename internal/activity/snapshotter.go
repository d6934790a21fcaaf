// Package activity implements the periodic activity snapshotter (§4.9): an
// out-of-band, read-only job that emits one coarse activity row per tick in
// its own transaction.
package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kengreim/vnas-stats/internal/logger"
)

// Snapshotter periodically records active-session counts, independent of
// the projector's per-snapshot transactions (§4.9, §5).
type Snapshotter struct {
	pool     *pgxpool.Pool
	interval time.Duration
}

// New builds a Snapshotter over pool with the given tick interval.
func New(pool *pgxpool.Pool, interval time.Duration) *Snapshotter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Snapshotter{pool: pool, interval: interval}
}

// Run ticks until ctx is cancelled, recording one row per tick. Consumers
// are expected to collapse consecutive-duplicate rows at query time, so
// failures here are logged and skipped rather than retried (§4.9).
func (s *Snapshotter) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.recordOnce(ctx); err != nil {
				logger.Warn("activity snapshot failed", logger.Err(err))
			}
		}
	}
}

func (s *Snapshotter) recordOnce(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var activeControllers, activeCallsigns, activePositions int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM controller_sessions WHERE is_active`).Scan(&activeControllers); err != nil {
		return err
	}
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM callsign_sessions WHERE is_active`).Scan(&activeCallsigns); err != nil {
		return err
	}
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM position_sessions WHERE is_active`).Scan(&activePositions); err != nil {
		return err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO activity_stats (id, observed_at, active_controllers, active_callsigns, active_positions)
		VALUES ($1, now(), $2, $3, $4)`,
		id, activeControllers, activeCallsigns, activePositions)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Debug("recorded activity snapshot",
		"active_controllers", activeControllers,
		"active_callsigns", activeCallsigns,
		"active_positions", activePositions)
	return nil
}
