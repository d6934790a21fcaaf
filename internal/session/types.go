// Package session implements the snapshot reconciliation core: the pure
// classification of incoming controller records against the active-set
// loaded at the start of a snapshot transaction (§4.5, §4.6).
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/kengreim/vnas-stats/internal/vatsim"
)

// CallsignKey identifies a shared callsign session by its parsed parts.
// Infix is deliberately excluded: §3 defines the shared key as (prefix, suffix).
type CallsignKey struct {
	Prefix string
	Suffix string
}

// ActiveController is one entry of the active-by-CID map loaded by the
// Active-Set Loader (§4.5).
type ActiveController struct {
	ControllerSessionID uuid.UUID
	CID                 int64
	LoginTime           time.Time
	CallsignSessionID   uuid.UUID
	PositionID          string
	PositionSessionID   uuid.UUID
	ConnectedCallsign   string
}

// ActiveSet is the projector's exclusive mutable state for one snapshot. It
// is never shared across snapshots or goroutines (§5).
type ActiveSet struct {
	ByCID      map[int64]ActiveController
	Callsigns  map[CallsignKey]uuid.UUID
	Positions  map[string]uuid.UUID
}

// NewActiveSet builds an empty ActiveSet with initialized maps.
func NewActiveSet() *ActiveSet {
	return &ActiveSet{
		ByCID:     make(map[int64]ActiveController),
		Callsigns: make(map[CallsignKey]uuid.UUID),
		Positions: make(map[string]uuid.UUID),
	}
}

// CloseReason distinguishes why a controller session was closed (§4.6).
// Both MissingFromDatafeed and DeactivatedPosition close with the same
// end_time; the distinction is preserved only in logs (§8 open question).
type CloseReason string

const (
	ReasonMissingFromDatafeed          CloseReason = "missing_from_datafeed"
	ReasonDeactivatedPosition          CloseReason = "deactivated_position"
	ReasonReconnectedOrChangedPosition CloseReason = "reconnected_or_changed_position"
)

// ControllerRecord is a single parsed, validated controller entry from an
// incoming snapshot, ready for classification.
type ControllerRecord struct {
	CID               int64
	Callsign          vatsim.Callsign
	LoginTime         time.Time
	PrimaryPositionID string
	IsActive          bool
	IsObserver        bool
	RealName          string
	UserRating        string
	RequestedRating   string
}

// ActionKind discriminates the ControllerAction union (§4.6).
type ActionKind int

const (
	ActionUpdateExisting ActionKind = iota
	ActionCreateNew
	ActionClose
)

// ControllerAction is one emitted step of the reconciler's output plan. Only
// the fields relevant to Kind are populated.
type ControllerAction struct {
	Kind ActionKind

	// Populated for UpdateExisting and Close.
	ControllerSessionID uuid.UUID
	CallsignSessionID    uuid.UUID
	PositionSessionID    uuid.UUID

	// Populated for CreateNew and Close.
	CID               int64
	CallsignKey       CallsignKey
	PositionID        string
	ConnectedCallsign string

	// Populated for UpdateExisting and CreateNew.
	Record ControllerRecord

	// Populated for Close only.
	Reason CloseReason
}
