// Package projector implements the projector loop: backlog drain on
// startup, then a LISTEN/notify-driven claim-and-apply cycle that never
// trusts the notify payload (§4.7, §5, §9).
package projector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kengreim/vnas-stats/internal/dbconn"
	"github.com/kengreim/vnas-stats/internal/logger"
	"github.com/kengreim/vnas-stats/internal/metrics"
	"github.com/kengreim/vnas-stats/internal/queue"
	sessionpg "github.com/kengreim/vnas-stats/internal/session/postgres"
)

// Config holds the projector loop's tunables (§6, AMBIENT STACK config section).
type Config struct {
	BacklogBatchSize int
	NotifyBatchSize  int
}

// Health is the subset of process state the /health endpoint reports for
// the projector binary (§6 Process surface).
type Health struct {
	mu                   sync.RWMutex
	lastProcessedUpdated time.Time
	lastError            error
}

func (h *Health) snapshot() (time.Time, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastProcessedUpdated, h.lastError
}

func (h *Health) recordSuccess(updatedAt time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastProcessedUpdated = updatedAt
	h.lastError = nil
}

func (h *Health) recordError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastError = err
}

// LastProcessedUpdatedAt reports the updated_at of the most recently
// committed snapshot, for health/readiness checks.
func (h *Health) LastProcessedUpdatedAt() time.Time {
	t, _ := h.snapshot()
	return t
}

// LastError reports the most recent per-snapshot processing error, if any.
func (h *Health) LastError() error {
	_, err := h.snapshot()
	return err
}

// Loop is the projector's long-lived task.
type Loop struct {
	pool    *pgxpool.Pool
	cfg     Config
	health  Health
	metrics *metrics.ProjectorMetrics
}

// New builds a projector Loop over pool.
func New(pool *pgxpool.Pool, cfg Config) *Loop {
	if cfg.BacklogBatchSize <= 0 {
		cfg.BacklogBatchSize = 25
	}
	if cfg.NotifyBatchSize <= 0 {
		cfg.NotifyBatchSize = 10
	}
	return &Loop{pool: pool, cfg: cfg, metrics: metrics.NewProjectorMetrics()}
}

// Health exposes the loop's health state for the HTTP health handler.
func (l *Loop) Health() *Health { return &l.health }

// Run drains up to BacklogBatchSize queued snapshots, then blocks listening
// for notifications, draining up to NotifyBatchSize snapshots on every
// wakeup, until ctx is cancelled (§5 cancellation, §9 "drain backlog before
// entering the notify loop"). A pass that reaches its cap stops even if rows
// remain; those rows are claimed on a later wakeup.
func (l *Loop) Run(ctx context.Context) error {
	logger.Info("projector starting backlog drain")
	if err := l.drainUntilEmpty(ctx, l.cfg.BacklogBatchSize); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("backlog drain failed", logger.Err(err))
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+queue.NotifyChannel); err != nil {
		return err
	}
	logger.Info("projector listening for notifications", "channel", queue.NotifyChannel)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Block until a notification arrives or the context is cancelled.
		// Notifications may be coalesced or dropped by the transport; the
		// drain below never trusts the notify payload's content (§5).
		_, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("wait for notification failed", logger.Err(err))
			continue
		}

		if err := l.drainUntilEmpty(ctx, l.cfg.NotifyBatchSize); err != nil && ctx.Err() == nil {
			logger.Error("notify-triggered drain failed", logger.Err(err))
		}
	}
}

// drainUntilEmpty repeatedly claims and applies one snapshot at a time until
// a claim finds no unread rows, up to maxIterations per call as a
// starvation guard against a pathologically large backlog monopolizing the
// notify loop.
func (l *Loop) drainUntilEmpty(ctx context.Context, maxIterations int) error {
	drained := 0
	defer func() { l.metrics.ObserveBatchSize(drained) }()

	for i := 0; i < maxIterations; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		processed, err := l.drainOneSnapshot(ctx)
		if err != nil {
			return err
		}
		if !processed {
			return nil
		}
		drained++
	}
	return nil
}

// drainOneSnapshot claims exactly one queue row and, if found, applies its
// Session Writer phases and acknowledges it, all within a single
// transaction (§4.2, §4.7): claim, project, archive, and delete the queue
// row are one atomic unit. If Session Writer application fails the whole
// transaction rolls back, leaving the queue row in place for the next
// attempt (§4.7 "exactly-once with respect to durable state").
func (l *Loop) drainOneSnapshot(ctx context.Context) (bool, error) {
	var found bool
	var updatedAt time.Time

	err := dbconn.WithTransaction(ctx, l.pool, func(tx pgx.Tx) error {
		claimed, err := queue.ClaimBatch(ctx, tx, 1)
		if err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		found = true

		item := claimed[0]
		if err := sessionpg.ApplySnapshot(ctx, tx, item, l.metrics); err != nil {
			return fmt.Errorf("apply snapshot %s (updated_at=%s): %w", item.ID, item.UpdatedAt, err)
		}
		updatedAt = item.UpdatedAt
		return nil
	})

	if err != nil {
		l.metrics.ObserveSnapshot(false)
		l.health.recordError(err)
		logger.Error("failed to apply snapshot, queue row retained for retry", logger.Err(err))
		return found, err
	}

	if found {
		l.metrics.ObserveSnapshot(true)
		l.health.recordSuccess(updatedAt)
	}

	return found, nil
}
