// Package payload implements the write-once, zstd-compressed archive of
// every distinct snapshot, keyed by updated_at (§4.8).
package payload

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/klauspost/compress/zstd"
)

// CompressionAlgo is recorded alongside every archived payload (§6).
const CompressionAlgo = "zstd"

var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("payload: init zstd encoder: %v", err))
	}
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("payload: init zstd decoder: %v", err))
	}
}

// Compress zstd-compresses raw snapshot bytes.
func Compress(raw []byte) []byte {
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)))
}

// Decompress reverses Compress.
func Decompress(compressed []byte) ([]byte, error) {
	out, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	return out, nil
}

// UpsertResult reports whether the archive insert happened or the payload
// was already archived under this updated_at (§3 "Archived payload").
type UpsertResult struct {
	PayloadID uuid.UUID
	Inserted  bool
}

// Upsert archives raw under updatedAt, skipping if a row already exists for
// that timestamp (idempotent replay, §8 "Duplicate replay").
func Upsert(ctx context.Context, tx pgx.Tx, raw []byte, updatedAt time.Time) (UpsertResult, error) {
	compressed := Compress(raw)

	id, err := uuid.NewV7()
	if err != nil {
		return UpsertResult{}, fmt.Errorf("generate payload id: %w", err)
	}

	var insertedID uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO datafeed_payloads
		   (id, updated_at, payload_compressed, original_size_bytes, compression_algo, created_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (updated_at) DO NOTHING
		 RETURNING id`,
		id, updatedAt, compressed, len(raw), CompressionAlgo,
	).Scan(&insertedID)

	if err == nil {
		return UpsertResult{PayloadID: insertedID, Inserted: true}, nil
	}
	if err != pgx.ErrNoRows {
		return UpsertResult{}, fmt.Errorf("upsert payload: %w", err)
	}

	// Conflict: another process already archived this updated_at.
	var existingID uuid.UUID
	if err := tx.QueryRow(ctx,
		`SELECT id FROM datafeed_payloads WHERE updated_at = $1`, updatedAt,
	).Scan(&existingID); err != nil {
		return UpsertResult{}, fmt.Errorf("look up existing payload: %w", err)
	}
	return UpsertResult{PayloadID: existingID, Inserted: false}, nil
}

// FindExisting reports whether a payload has already been archived under
// updatedAt, without compressing or writing anything. The Session Writer
// calls this first so a duplicate replay short-circuits before touching the
// active set (§4.7 Phase D, duplicate replay).
func FindExisting(ctx context.Context, tx pgx.Tx, updatedAt time.Time) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx,
		`SELECT id FROM datafeed_payloads WHERE updated_at = $1`, updatedAt,
	).Scan(&id)
	switch {
	case err == nil:
		return id, true, nil
	case err == pgx.ErrNoRows:
		return uuid.Nil, false, nil
	default:
		return uuid.Nil, false, fmt.Errorf("look up existing payload: %w", err)
	}
}

// InsertMessage records the audit trail row linking a drained queue id to
// its archived payload id (§6).
func InsertMessage(ctx context.Context, tx pgx.Tx, queueID, payloadID uuid.UUID, enqueuedAt, processedAt time.Time) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate message id: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO datafeed_messages (id, queue_id, payload_id, enqueued_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, queueID, payloadID, enqueuedAt, processedAt,
	)
	if err != nil {
		return fmt.Errorf("insert datafeed message: %w", err)
	}
	return nil
}

// Fetch returns the decompressed bytes for the payload archived under
// updatedAt, for the out-of-scope read API to call.
func Fetch(ctx context.Context, tx pgx.Tx, updatedAt time.Time) ([]byte, error) {
	var compressed []byte
	if err := tx.QueryRow(ctx,
		`SELECT payload_compressed FROM datafeed_payloads WHERE updated_at = $1`, updatedAt,
	).Scan(&compressed); err != nil {
		return nil, fmt.Errorf("fetch payload: %w", err)
	}
	if bytes.Equal(compressed, nil) {
		return nil, nil
	}
	return Decompress(compressed)
}
