package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CallsignSessionDetail is one row of a callsign session, for the
// out-of-scope read API to eventually expose.
type CallsignSessionDetail struct {
	ID        uuid.UUID
	Prefix    string
	Suffix    string
	StartTime time.Time
	EndTime   *time.Time
	LastSeen  time.Time
	IsActive  bool
}

// PositionSessionDetail is one row of a position session, for the
// out-of-scope read API to eventually expose.
type PositionSessionDetail struct {
	ID         uuid.UUID
	PositionID string
	StartTime  time.Time
	EndTime    *time.Time
	LastSeen   time.Time
	IsActive   bool
}

// FetchCallsignSessionDetails returns a single callsign session by id. The
// session store's write path never needs this; it exists so a future read
// API has a ready-made query to call instead of writing one from scratch.
func FetchCallsignSessionDetails(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*CallsignSessionDetail, error) {
	var d CallsignSessionDetail
	err := tx.QueryRow(ctx, `
		SELECT id, prefix, suffix, start_time, end_time, last_seen, is_active
		FROM callsign_sessions WHERE id = $1`, id,
	).Scan(&d.ID, &d.Prefix, &d.Suffix, &d.StartTime, &d.EndTime, &d.LastSeen, &d.IsActive)
	if err != nil {
		return nil, fmt.Errorf("fetch callsign session %s: %w", id, err)
	}
	return &d, nil
}

// FetchPositionSessionDetails returns a single position session by id.
func FetchPositionSessionDetails(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*PositionSessionDetail, error) {
	var d PositionSessionDetail
	err := tx.QueryRow(ctx, `
		SELECT id, position_id, start_time, end_time, last_seen, is_active
		FROM position_sessions WHERE id = $1`, id,
	).Scan(&d.ID, &d.PositionID, &d.StartTime, &d.EndTime, &d.LastSeen, &d.IsActive)
	if err != nil {
		return nil, fmt.Errorf("fetch position session %s: %w", id, err)
	}
	return &d, nil
}
