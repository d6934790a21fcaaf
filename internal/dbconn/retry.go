package dbconn

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maxTransactionRetries = 3

// isRetryableError reports whether err is a transient PostgreSQL conflict
// (deadlock or serialization failure) that a retried transaction could
// resolve.
func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40P01", "40001":
			return true
		}
	}
	return false
}

// WithTransaction runs fn inside a single pgx transaction on pool, retrying
// on deadlock or serialization failure with a short linear backoff. Every
// snapshot is projected within exactly one such transaction (§4.7, §5).
func WithTransaction(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < maxTransactionRetries; attempt++ {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback(ctx)
			if isRetryableError(err) {
				lastErr = err
				time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
				continue
			}
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			if isRetryableError(err) {
				lastErr = err
				time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
				continue
			}
			return err
		}

		return nil
	}

	return lastErr
}
