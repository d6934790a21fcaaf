package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kengreim/vnas-stats/internal/logger"
	"github.com/kengreim/vnas-stats/internal/metrics"
	"github.com/kengreim/vnas-stats/internal/payload"
	"github.com/kengreim/vnas-stats/internal/queue"
	"github.com/kengreim/vnas-stats/internal/session"
	"github.com/kengreim/vnas-stats/internal/vatsim"
)

// ApplySnapshot runs the full Session Writer (§4.7) for one dequeued
// message, inside tx: a duplicate-replay check, then (if new) Active-Set
// Loader, Reconciler, Phase A–D. The caller owns tx's lifetime (begin/
// commit/rollback) so that any failure in any phase rolls back the whole
// snapshot atomically, leaving the queue row in place for the next
// claim_batch to retry. m may be nil (metrics disabled).
func ApplySnapshot(ctx context.Context, tx pgx.Tx, q queue.Queued, m *metrics.ProjectorMetrics) error {
	var snap vatsim.Snapshot
	if err := json.Unmarshal(q.Payload, &snap); err != nil {
		return fmt.Errorf("parse snapshot payload: %w", err)
	}

	// A duplicate enqueue of the same updated_at must be a no-op on session
	// tables (§8 "Duplicate replay"). Checked first, against the archive
	// only, so a replay never touches the active set or the Reconciler.
	existingPayloadID, exists, err := payload.FindExisting(ctx, tx, snap.UpdatedAt)
	if err != nil {
		return err
	}
	if exists {
		m.ObserveDuplicateSkip()
		logger.Info("skipping duplicate snapshot replay", logger.UpdatedAt(snap.UpdatedAt), logger.Duplicate(true))

		if err := payload.InsertMessage(ctx, tx, q.ID, existingPayloadID, q.CreatedAt, time.Now().UTC()); err != nil {
			return err
		}
		return queue.Acknowledge(ctx, tx, q.ID)
	}

	set, err := LoadActiveSet(ctx, tx)
	if err != nil {
		return err
	}

	records := session.ParseRecords(snap.Controllers)
	actions := session.Reconcile(records, set)
	for _, a := range actions {
		m.ObserveAction(actionKindLabel(a.Kind))
	}

	closeStart := time.Now()
	if err := applyClose(ctx, tx, actions, snap.UpdatedAt); err != nil {
		return err
	}
	m.ObservePhaseDuration("close", time.Since(closeStart))

	activeCallsignIDs := make(map[uuid.UUID]struct{})
	activePositionIDs := make(map[uuid.UUID]struct{})

	openStart := time.Now()
	if err := applyOpens(ctx, tx, actions, set, snap.UpdatedAt, activeCallsignIDs, activePositionIDs); err != nil {
		return err
	}
	m.ObservePhaseDuration("open", time.Since(openStart))

	finalizeStart := time.Now()
	if err := finalizeUnreferenced(ctx, tx, set, activeCallsignIDs, activePositionIDs, snap.UpdatedAt); err != nil {
		return err
	}
	m.ObservePhaseDuration("finalize", time.Since(finalizeStart))

	archiveStart := time.Now()
	result, err := payload.Upsert(ctx, tx, q.Payload, snap.UpdatedAt)
	if err != nil {
		return err
	}
	m.ObservePhaseDuration("archive", time.Since(archiveStart))
	if !result.Inserted {
		// Another transaction archived this updated_at between our check
		// above and here; treat it the same as a caught-upfront duplicate.
		m.ObserveDuplicateSkip()
		logger.Info("skipping duplicate snapshot replay", logger.UpdatedAt(snap.UpdatedAt), logger.Duplicate(true))
	}

	if err := payload.InsertMessage(ctx, tx, q.ID, result.PayloadID, q.CreatedAt, time.Now().UTC()); err != nil {
		return err
	}

	if err := queue.Acknowledge(ctx, tx, q.ID); err != nil {
		return err
	}

	logger.Info("projected snapshot",
		logger.UpdatedAt(snap.UpdatedAt),
		"closes", countKind(actions, session.ActionClose),
		"updates", countKind(actions, session.ActionUpdateExisting),
		"creates", countKind(actions, session.ActionCreateNew))

	return nil
}

func actionKindLabel(kind session.ActionKind) string {
	switch kind {
	case session.ActionUpdateExisting:
		return "update_existing"
	case session.ActionCreateNew:
		return "create_new"
	default:
		return "close"
	}
}

func countKind(actions []session.ControllerAction, kind session.ActionKind) int {
	n := 0
	for _, a := range actions {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// applyClose is Phase A: batch-close every Close.* action's controller
// session before any open is applied, so the (cid) WHERE is_active unique
// index never sees two actives for the same CID mid-transaction.
func applyClose(ctx context.Context, tx pgx.Tx, actions []session.ControllerAction, updatedAt time.Time) error {
	for _, a := range actions {
		if a.Kind != session.ActionClose {
			continue
		}
		_, err := tx.Exec(ctx, `
			UPDATE controller_sessions
			SET is_active = FALSE,
			    end_time = $2,
			    last_seen = $2,
			    duration = $2 - start_time
			WHERE id = $1`,
			a.ControllerSessionID, updatedAt)
		if err != nil {
			return fmt.Errorf("close controller session %s: %w", a.ControllerSessionID, err)
		}
		logger.Debug("closed controller session",
			logger.ControllerSessID(a.ControllerSessionID), "reason", string(a.Reason))
	}
	return nil
}

// applyOpens is Phase B: apply UpdateExisting and CreateNew actions in list
// order, recording every callsign/position session id touched into the
// "seen-this-snapshot" sets consumed by Phase C.
func applyOpens(ctx context.Context, tx pgx.Tx, actions []session.ControllerAction, set *session.ActiveSet,
	updatedAt time.Time, activeCallsignIDs, activePositionIDs map[uuid.UUID]struct{}) error {

	for _, a := range actions {
		switch a.Kind {
		case session.ActionUpdateExisting:
			if err := updateExisting(ctx, tx, a, updatedAt); err != nil {
				return err
			}
			activeCallsignIDs[a.CallsignSessionID] = struct{}{}
			activePositionIDs[a.PositionSessionID] = struct{}{}

		case session.ActionCreateNew:
			callsignID, positionID, err := createNew(ctx, tx, a, set, updatedAt)
			if err != nil {
				return err
			}
			activeCallsignIDs[callsignID] = struct{}{}
			activePositionIDs[positionID] = struct{}{}
		}
	}
	return nil
}

func updateExisting(ctx context.Context, tx pgx.Tx, a session.ControllerAction, updatedAt time.Time) error {
	rec := a.Record

	if _, err := tx.Exec(ctx, `UPDATE callsign_sessions SET last_seen = $2 WHERE id = $1`,
		a.CallsignSessionID, updatedAt); err != nil {
		return fmt.Errorf("advance callsign session %s: %w", a.CallsignSessionID, err)
	}
	if _, err := tx.Exec(ctx, `UPDATE position_sessions SET last_seen = $2 WHERE id = $1`,
		a.PositionSessionID, updatedAt); err != nil {
		return fmt.Errorf("advance position session %s: %w", a.PositionSessionID, err)
	}

	_, err := tx.Exec(ctx, `
		UPDATE controller_sessions
		SET last_seen = $2,
		    is_observer = $3,
		    name = $4,
		    user_rating = $5,
		    requested_rating = $6,
		    connected_callsign = $7,
		    primary_position_id = $8
		WHERE id = $1`,
		a.ControllerSessionID, updatedAt, rec.IsObserver, rec.RealName,
		rec.UserRating, rec.RequestedRating, rec.Callsign.String(), rec.PrimaryPositionID)
	if err != nil {
		return fmt.Errorf("advance controller session %s: %w", a.ControllerSessionID, err)
	}
	return nil
}

// createNew ensures the callsign and position sessions exist (reusing an
// active one under the (prefix,suffix)/position_id map if present, else
// acquiring a row-level lock and inserting), then inserts the new
// controller session referencing both.
func createNew(ctx context.Context, tx pgx.Tx, a session.ControllerAction, set *session.ActiveSet, updatedAt time.Time) (callsignID, positionID uuid.UUID, err error) {
	callsignID, err = ensureCallsignSession(ctx, tx, set, a.CallsignKey, updatedAt)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	positionID, err = ensurePositionSession(ctx, tx, set, a.PositionID, updatedAt)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	rec := a.Record
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("generate controller session id: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO controller_sessions
		  (id, cid, login_time, start_time, end_time, duration, last_seen, is_active,
		   is_observer, name, user_rating, requested_rating, connected_callsign,
		   primary_position_id, callsign_session_id, position_session_id)
		VALUES
		  ($1, $2, $3, $3, NULL, NULL, $3, TRUE, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, a.CID, rec.LoginTime, rec.IsObserver, rec.RealName,
		rec.UserRating, rec.RequestedRating, rec.Callsign.String(),
		a.PositionID, callsignID, positionID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("insert controller session for cid %d: %w", a.CID, err)
	}

	logger.Debug("opened controller session", logger.CID(a.CID), logger.ControllerSessID(id))
	return callsignID, positionID, nil
}

func ensureCallsignSession(ctx context.Context, tx pgx.Tx, set *session.ActiveSet, key session.CallsignKey, updatedAt time.Time) (uuid.UUID, error) {
	if id, ok := set.Callsigns[key]; ok {
		if _, err := tx.Exec(ctx, `UPDATE callsign_sessions SET last_seen = $2 WHERE id = $1`, id, updatedAt); err != nil {
			return uuid.Nil, fmt.Errorf("advance callsign session %s: %w", id, err)
		}
		return id, nil
	}

	// Row-level lock against a concurrent writer racing to open the same
	// (prefix, suffix) before this transaction commits.
	var existing uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT id FROM callsign_sessions
		WHERE prefix = $1 AND suffix = $2 AND is_active
		FOR UPDATE`, key.Prefix, key.Suffix).Scan(&existing)
	switch {
	case err == nil:
		set.Callsigns[key] = existing
		if _, err := tx.Exec(ctx, `UPDATE callsign_sessions SET last_seen = $2 WHERE id = $1`, existing, updatedAt); err != nil {
			return uuid.Nil, fmt.Errorf("advance callsign session %s: %w", existing, err)
		}
		return existing, nil
	case err != pgx.ErrNoRows:
		return uuid.Nil, fmt.Errorf("lock callsign session (%s,%s): %w", key.Prefix, key.Suffix, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate callsign session id: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO callsign_sessions (id, prefix, suffix, start_time, last_seen, is_active)
		VALUES ($1, $2, $3, $4, $4, TRUE)`,
		id, key.Prefix, key.Suffix, updatedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert callsign session (%s,%s): %w", key.Prefix, key.Suffix, err)
	}
	set.Callsigns[key] = id
	return id, nil
}

func ensurePositionSession(ctx context.Context, tx pgx.Tx, set *session.ActiveSet, positionID string, updatedAt time.Time) (uuid.UUID, error) {
	if id, ok := set.Positions[positionID]; ok {
		if _, err := tx.Exec(ctx, `UPDATE position_sessions SET last_seen = $2 WHERE id = $1`, id, updatedAt); err != nil {
			return uuid.Nil, fmt.Errorf("advance position session %s: %w", id, err)
		}
		return id, nil
	}

	var existing uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT id FROM position_sessions
		WHERE position_id = $1 AND is_active
		FOR UPDATE`, positionID).Scan(&existing)
	switch {
	case err == nil:
		set.Positions[positionID] = existing
		if _, err := tx.Exec(ctx, `UPDATE position_sessions SET last_seen = $2 WHERE id = $1`, existing, updatedAt); err != nil {
			return uuid.Nil, fmt.Errorf("advance position session %s: %w", existing, err)
		}
		return existing, nil
	case err != pgx.ErrNoRows:
		return uuid.Nil, fmt.Errorf("lock position session %s: %w", positionID, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate position session id: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO position_sessions (id, position_id, start_time, last_seen, is_active)
		VALUES ($1, $2, $3, $3, TRUE)`,
		id, positionID, updatedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert position session %s: %w", positionID, err)
	}
	set.Positions[positionID] = id
	return id, nil
}

// finalizeUnreferenced is Phase C: every callsign/position session that was
// active at load time but was not touched ("seen") during this snapshot is
// closed now. This is the reference-counted lifetime: a shared session
// stays open exactly as long as >=1 controller session references it
// within a snapshot.
func finalizeUnreferenced(ctx context.Context, tx pgx.Tx, set *session.ActiveSet,
	activeCallsignIDs, activePositionIDs map[uuid.UUID]struct{}, updatedAt time.Time) error {

	for _, id := range set.Callsigns {
		if _, ok := activeCallsignIDs[id]; ok {
			continue
		}
		_, err := tx.Exec(ctx, `
			UPDATE callsign_sessions
			SET is_active = FALSE, end_time = $2, last_seen = $2, duration = $2 - start_time
			WHERE id = $1`, id, updatedAt)
		if err != nil {
			return fmt.Errorf("close orphaned callsign session %s: %w", id, err)
		}
	}

	for _, id := range set.Positions {
		if _, ok := activePositionIDs[id]; ok {
			continue
		}
		_, err := tx.Exec(ctx, `
			UPDATE position_sessions
			SET is_active = FALSE, end_time = $2, last_seen = $2, duration = $2 - start_time
			WHERE id = $1`, id, updatedAt)
		if err != nil {
			return fmt.Errorf("close orphaned position session %s: %w", id, err)
		}
	}

	return nil
}
