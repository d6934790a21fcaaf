package logger

import (
	"fmt"
	"log/slog"
	"time"
)

// Standard field keys for structured logging across the ingestor and
// projector. Keep using these constructors rather than ad-hoc key strings
// so log aggregation queries stay consistent.
const (
	// Snapshot / feed
	KeyUpdatedAt    = "updated_at"
	KeyFeedURL      = "feed_url"
	KeyTickInterval = "tick_interval"

	// Queue
	KeyQueueID     = "queue_id"
	KeyPayloadID   = "payload_id"
	KeyBatchSize   = "batch_size"
	KeyBufferLen   = "buffer_len"
	KeyDuplicate   = "duplicate"
	KeyCompression = "compression"

	// Reconciliation / session domain
	KeyCID              = "cid"
	KeyCallsign         = "callsign"
	KeyPrefix           = "prefix"
	KeySuffix           = "suffix"
	KeyPositionID       = "position_id"
	KeyControllerSessID = "controller_session_id"
	KeyCallsignSessID   = "callsign_session_id"
	KeyPositionSessID   = "position_session_id"
	KeyCloseReason      = "close_reason"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyAttempt    = "attempt"
)

func UpdatedAt(t time.Time) slog.Attr  { return slog.Time(KeyUpdatedAt, t) }
func FeedURL(u string) slog.Attr       { return slog.String(KeyFeedURL, u) }
func QueueID(id string) slog.Attr      { return slog.String(KeyQueueID, id) }
func PayloadID(id string) slog.Attr    { return slog.String(KeyPayloadID, id) }
func BatchSize(n int) slog.Attr        { return slog.Int(KeyBatchSize, n) }
func BufferLen(n int) slog.Attr        { return slog.Int(KeyBufferLen, n) }
func Duplicate(b bool) slog.Attr       { return slog.Bool(KeyDuplicate, b) }
func CID(cid int64) slog.Attr          { return slog.Int64(KeyCID, cid) }
func Callsign(cs string) slog.Attr     { return slog.String(KeyCallsign, cs) }
func Prefix(p string) slog.Attr        { return slog.String(KeyPrefix, p) }
func Suffix(s string) slog.Attr        { return slog.String(KeySuffix, s) }
func PositionID(p string) slog.Attr    { return slog.String(KeyPositionID, p) }
func CloseReason(r string) slog.Attr   { return slog.String(KeyCloseReason, r) }
func ControllerSessID(id fmt.Stringer) slog.Attr { return slog.String(KeyControllerSessID, id.String()) }
func CallsignSessID(id fmt.Stringer) slog.Attr   { return slog.String(KeyCallsignSessID, id.String()) }
func PositionSessID(id fmt.Stringer) slog.Attr   { return slog.String(KeyPositionSessID, id.String()) }
func DurationMs(ms int64) slog.Attr    { return slog.Int64(KeyDurationMs, ms) }
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
