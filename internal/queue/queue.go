// Package queue implements the durable snapshot queue (§4.2): a
// transactional append + notify, and skip-locked batch reads for the
// projector, backed by the same PostgreSQL database as the session tables.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotifyChannel is the well-known LISTEN/NOTIFY channel name carrying newly
// enqueued row ids (§4.2, §6).
const NotifyChannel = "vnas_datafeed_queue"

// Queued is one row of the durable queue (§3).
type Queued struct {
	ID        uuid.UUID
	UpdatedAt time.Time
	Payload   []byte
	CreatedAt time.Time
}

// Queue is the durable, transactional append/claim/acknowledge queue.
type Queue struct {
	pool *pgxpool.Pool
}

// New wraps an existing connection pool.
func New(pool *pgxpool.Pool) *Queue {
	return &Queue{pool: pool}
}

// Enqueue inserts one queue row and emits a NOTIFY carrying its id, both
// inside one transaction so the two effects are atomic (§4.2).
func (q *Queue) Enqueue(ctx context.Context, payload []byte, updatedAt time.Time) (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("generate queue id: %w", err)
	}

	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("begin enqueue transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO datafeed_queue (id, updated_at, payload, created_at)
		 VALUES ($1, $2, $3, now())`,
		id, updatedAt, payload,
	)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("insert queue row: %w", err)
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, id.String()); err != nil {
		return uuid.UUID{}, fmt.Errorf("notify queue channel: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.UUID{}, fmt.Errorf("commit enqueue transaction: %w", err)
	}

	return id, nil
}

// ClaimBatch locks up to limit unread rows in updated_at ascending order
// within tx, skipping rows currently locked by any other reader. Returned
// rows are held under tx until the caller commits or rolls back (§4.2, §5).
func ClaimBatch(ctx context.Context, tx pgx.Tx, limit int) ([]Queued, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, updated_at, payload, created_at
		 FROM datafeed_queue
		 ORDER BY updated_at
		 FOR UPDATE SKIP LOCKED
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim batch: %w", err)
	}
	defer rows.Close()

	var out []Queued
	for rows.Next() {
		var item Queued
		if err := rows.Scan(&item.ID, &item.UpdatedAt, &item.Payload, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan queued row: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queued rows: %w", err)
	}
	return out, nil
}

// Acknowledge deletes the queue row inside tx, the same transaction that
// produced the projection effects (§4.2, §4.7 Phase D).
func Acknowledge(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `DELETE FROM datafeed_queue WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("acknowledge queue row %s: %w", id, err)
	}
	return nil
}

// Pool exposes the underlying pool for callers that need to begin their own
// transaction.
func (q *Queue) Pool() *pgxpool.Pool { return q.pool }
