//go:build integration

package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/google/uuid"

	"github.com/kengreim/vnas-stats/internal/config"
	"github.com/kengreim/vnas-stats/internal/dbconn"
	"github.com/kengreim/vnas-stats/internal/queue"
	sessionpg "github.com/kengreim/vnas-stats/internal/session/postgres"
	"github.com/kengreim/vnas-stats/internal/vatsim"
)

// ApplySnapshotSuite exercises the Session Writer end-to-end against a real
// PostgreSQL instance, covering the scenarios narrated across the snapshot
// lifecycle: first login, continuation, handoff, and drop.
type ApplySnapshotSuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
}

func TestApplySnapshotSuite(t *testing.T) {
	suite.Run(t, new(ApplySnapshotSuite))
}

func (s *ApplySnapshotSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("vnas_stats_test"),
		postgres.WithUsername("vnas"),
		postgres.WithPassword("vnas"),
		testcontainers.WithWaitStrategyAndDeadline(2*time.Minute,
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	s.Require().NoError(err)
	s.container = container

	host, err := container.Host(ctx)
	s.Require().NoError(err)
	port, err := container.MappedPort(ctx, "5432")
	s.Require().NoError(err)

	dbCfg := config.DatabaseConfig{
		Host:     host,
		Port:     port.Int(),
		Database: "vnas_stats_test",
		User:     "vnas",
		Password: "vnas",
		SSLMode:  "disable",
	}
	dbCfg.ApplyDefaults()

	s.Require().NoError(dbconn.RunMigrations(ctx, &dbCfg))

	pool, err := dbconn.NewPool(ctx, &dbCfg)
	s.Require().NoError(err)
	s.pool = pool
}

func (s *ApplySnapshotSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *ApplySnapshotSuite) SetupTest() {
	ctx := context.Background()
	_, err := s.pool.Exec(ctx, `
		TRUNCATE datafeed_queue, datafeed_messages, datafeed_payloads,
		         controller_sessions, callsign_sessions, position_sessions,
		         activity_stats`)
	s.Require().NoError(err)
}

func (s *ApplySnapshotSuite) applySnapshot(snap vatsim.Snapshot) {
	ctx := context.Background()
	raw, err := json.Marshal(snap)
	s.Require().NoError(err)

	id, err := uuid.NewV7()
	s.Require().NoError(err)
	item := queue.Queued{ID: id, UpdatedAt: snap.UpdatedAt, Payload: raw, CreatedAt: time.Now().UTC()}

	err = dbconn.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		return sessionpg.ApplySnapshot(ctx, tx, item, nil)
	})
	s.Require().NoError(err)
}

// TestFirstLoginThenContinuationThenDrop walks scenarios A, B, and E from a
// single controller's lifecycle.
func (s *ApplySnapshotSuite) TestFirstLoginThenContinuationThenDrop() {
	ctx := context.Background()
	login := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	s.applySnapshot(vatsim.Snapshot{
		UpdatedAt: login.Add(time.Second),
		Controllers: []vatsim.Controller{
			{
				PrimaryPositionID: "DEN_TWR",
				IsActive:          true,
				LoginTime:         login,
				VatsimData:        vatsim.VatsimData{CID: "900001", Callsign: "DEN_TWR", RealName: "Test Controller"},
			},
		},
	})

	var activeCount int
	s.Require().NoError(s.pool.QueryRow(ctx,
		`SELECT count(*) FROM controller_sessions WHERE cid = 900001 AND is_active`).Scan(&activeCount))
	s.Equal(1, activeCount)

	// Continuation: same login_time, same position.
	s.applySnapshot(vatsim.Snapshot{
		UpdatedAt: login.Add(16 * time.Second),
		Controllers: []vatsim.Controller{
			{
				PrimaryPositionID: "DEN_TWR",
				IsActive:          true,
				LoginTime:         login,
				VatsimData:        vatsim.VatsimData{CID: "900001", Callsign: "DEN_TWR", RealName: "Test Controller"},
			},
		},
	})

	var sessionCount int
	s.Require().NoError(s.pool.QueryRow(ctx,
		`SELECT count(*) FROM controller_sessions WHERE cid = 900001`).Scan(&sessionCount))
	s.Equal(1, sessionCount, "continuation must not open a second session")

	// Drop: controller absent from the next snapshot entirely.
	s.applySnapshot(vatsim.Snapshot{UpdatedAt: login.Add(32 * time.Second)})

	var stillActive int
	s.Require().NoError(s.pool.QueryRow(ctx,
		`SELECT count(*) FROM controller_sessions WHERE cid = 900001 AND is_active`).Scan(&stillActive))
	s.Equal(0, stillActive)

	var endTimeSet bool
	s.Require().NoError(s.pool.QueryRow(ctx,
		`SELECT end_time IS NOT NULL FROM controller_sessions WHERE cid = 900001`).Scan(&endTimeSet))
	s.True(endTimeSet)
}

// TestSharedCallsignSessionSurvivesHandoff covers a reconnect/handoff where
// a new controller session is created under a pre-existing shared callsign.
func (s *ApplySnapshotSuite) TestSharedCallsignSessionSurvivesHandoff() {
	ctx := context.Background()
	login := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	s.applySnapshot(vatsim.Snapshot{
		UpdatedAt: login.Add(time.Second),
		Controllers: []vatsim.Controller{
			{
				PrimaryPositionID: "DEN_TWR",
				IsActive:          true,
				LoginTime:         login,
				VatsimData:        vatsim.VatsimData{CID: "900002", Callsign: "DEN_TWR"},
			},
		},
	})

	var firstCallsignID string
	s.Require().NoError(s.pool.QueryRow(ctx,
		`SELECT callsign_session_id FROM controller_sessions WHERE cid = 900002`).Scan(&firstCallsignID))

	// Handoff: new login_time for the same cid on the same position.
	s.applySnapshot(vatsim.Snapshot{
		UpdatedAt: login.Add(2 * time.Hour),
		Controllers: []vatsim.Controller{
			{
				PrimaryPositionID: "DEN_TWR",
				IsActive:          true,
				LoginTime:         login.Add(time.Hour),
				VatsimData:        vatsim.VatsimData{CID: "900002", Callsign: "DEN_TWR"},
			},
		},
	})

	var secondCallsignID string
	s.Require().NoError(s.pool.QueryRow(ctx,
		`SELECT callsign_session_id FROM controller_sessions WHERE cid = 900002 AND is_active`).Scan(&secondCallsignID))

	s.Equal(firstCallsignID, secondCallsignID, "the shared callsign session stays open across a handoff on the same position")
}

// TestDuplicateEnqueueIsNoOpOnSessionTables drives the real queue path
// (queue.Enqueue / queue.ClaimBatch / queue.Acknowledge), enqueuing the same
// updated_at twice, and asserts the second drain changes no session table
// and leaves the queue fully drained (§8 "Duplicate replay", Scenario F).
func (s *ApplySnapshotSuite) TestDuplicateEnqueueIsNoOpOnSessionTables() {
	ctx := context.Background()
	q := queue.New(s.pool)

	login := time.Date(2026, 7, 30, 13, 0, 0, 0, time.UTC)
	snap := vatsim.Snapshot{
		UpdatedAt: login.Add(time.Second),
		Controllers: []vatsim.Controller{
			{
				PrimaryPositionID: "SFO_TWR",
				IsActive:          true,
				LoginTime:         login,
				VatsimData:        vatsim.VatsimData{CID: "900003", Callsign: "SFO_TWR", RealName: "Test Controller"},
			},
		},
	}
	raw, err := json.Marshal(snap)
	s.Require().NoError(err)

	_, err = q.Enqueue(ctx, raw, snap.UpdatedAt)
	s.Require().NoError(err)
	_, err = q.Enqueue(ctx, raw, snap.UpdatedAt)
	s.Require().NoError(err)

	var queuedBefore int
	s.Require().NoError(s.pool.QueryRow(ctx, `SELECT count(*) FROM datafeed_queue`).Scan(&queuedBefore))
	s.Equal(2, queuedBefore, "both enqueues land in the durable queue")

	drainNext := func() bool {
		processed := false
		err := dbconn.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
			claimed, err := queue.ClaimBatch(ctx, tx, 1)
			if err != nil {
				return err
			}
			if len(claimed) == 0 {
				return nil
			}
			processed = true
			return sessionpg.ApplySnapshot(ctx, tx, claimed[0], nil)
		})
		s.Require().NoError(err)
		return processed
	}

	s.Require().True(drainNext(), "first drain processes the original snapshot")

	var controllerSessionCount, callsignSessionCount, positionSessionCount int
	s.Require().NoError(s.pool.QueryRow(ctx,
		`SELECT count(*) FROM controller_sessions WHERE cid = 900003`).Scan(&controllerSessionCount))
	s.Require().NoError(s.pool.QueryRow(ctx, `SELECT count(*) FROM callsign_sessions`).Scan(&callsignSessionCount))
	s.Require().NoError(s.pool.QueryRow(ctx, `SELECT count(*) FROM position_sessions`).Scan(&positionSessionCount))

	s.Require().True(drainNext(), "second drain processes the duplicate and still reports a claimed row")

	var controllerSessionCountAfter, callsignSessionCountAfter, positionSessionCountAfter int
	s.Require().NoError(s.pool.QueryRow(ctx,
		`SELECT count(*) FROM controller_sessions WHERE cid = 900003`).Scan(&controllerSessionCountAfter))
	s.Require().NoError(s.pool.QueryRow(ctx, `SELECT count(*) FROM callsign_sessions`).Scan(&callsignSessionCountAfter))
	s.Require().NoError(s.pool.QueryRow(ctx, `SELECT count(*) FROM position_sessions`).Scan(&positionSessionCountAfter))

	s.Equal(controllerSessionCount, controllerSessionCountAfter, "duplicate replay must not change controller_sessions")
	s.Equal(callsignSessionCount, callsignSessionCountAfter, "duplicate replay must not change callsign_sessions")
	s.Equal(positionSessionCount, positionSessionCountAfter, "duplicate replay must not change position_sessions")

	s.False(drainNext(), "queue must be fully drained after both rows are processed")

	var queuedAfter int
	s.Require().NoError(s.pool.QueryRow(ctx, `SELECT count(*) FROM datafeed_queue`).Scan(&queuedAfter))
	s.Equal(0, queuedAfter)

	var payloadCount int
	s.Require().NoError(s.pool.QueryRow(ctx,
		`SELECT count(*) FROM datafeed_payloads WHERE updated_at = $1`, snap.UpdatedAt).Scan(&payloadCount))
	s.Equal(1, payloadCount, "only one archive row is kept for the duplicated updated_at")

	var messageCount int
	s.Require().NoError(s.pool.QueryRow(ctx, `SELECT count(*) FROM datafeed_messages`).Scan(&messageCount))
	s.Equal(2, messageCount, "both queue rows are still recorded in the audit trail")
}

