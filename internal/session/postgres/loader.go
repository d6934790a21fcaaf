// Package postgres implements the Session Writer and Active-Set Loader
// against the relational session store described in §4.5 and §4.7.
package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kengreim/vnas-stats/internal/session"
)

// LoadActiveSet rehydrates the three active-session indices at the start of
// a snapshot transaction (§4.5). The returned ActiveSet is exclusive to the
// caller's transaction and must not be reused across snapshots.
func LoadActiveSet(ctx context.Context, tx pgx.Tx) (*session.ActiveSet, error) {
	set := session.NewActiveSet()

	rows, err := tx.Query(ctx, `
		SELECT cs.id, cs.cid, cs.login_time, cs.callsign_session_id,
		       ps.position_id, cs.position_session_id, cs.connected_callsign
		FROM controller_sessions cs
		JOIN position_sessions ps ON ps.id = cs.position_session_id
		WHERE cs.is_active`)
	if err != nil {
		return nil, fmt.Errorf("load active controller sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ac session.ActiveController
		if err := rows.Scan(&ac.ControllerSessionID, &ac.CID, &ac.LoginTime,
			&ac.CallsignSessionID, &ac.PositionID, &ac.PositionSessionID, &ac.ConnectedCallsign); err != nil {
			return nil, fmt.Errorf("scan active controller session: %w", err)
		}
		set.ByCID[ac.CID] = ac
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active controller sessions: %w", err)
	}

	callsignRows, err := tx.Query(ctx,
		`SELECT id, prefix, suffix FROM callsign_sessions WHERE is_active`)
	if err != nil {
		return nil, fmt.Errorf("load active callsign sessions: %w", err)
	}
	defer callsignRows.Close()

	for callsignRows.Next() {
		var id uuid.UUID
		var key session.CallsignKey
		if err := callsignRows.Scan(&id, &key.Prefix, &key.Suffix); err != nil {
			return nil, fmt.Errorf("scan active callsign session: %w", err)
		}
		set.Callsigns[key] = id
	}
	if err := callsignRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active callsign sessions: %w", err)
	}

	positionRows, err := tx.Query(ctx,
		`SELECT id, position_id FROM position_sessions WHERE is_active`)
	if err != nil {
		return nil, fmt.Errorf("load active position sessions: %w", err)
	}
	defer positionRows.Close()

	for positionRows.Next() {
		var id uuid.UUID
		var positionID string
		if err := positionRows.Scan(&id, &positionID); err != nil {
			return nil, fmt.Errorf("scan active position session: %w", err)
		}
		set.Positions[positionID] = id
	}
	if err := positionRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active position sessions: %w", err)
	}

	return set, nil
}
