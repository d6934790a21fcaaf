package session

import (
	"time"

	"github.com/kengreim/vnas-stats/internal/logger"
)

// sameMicrosecond reports whether a and b are equal at microsecond
// precision. Coarser comparison is forbidden by §4.6: a legitimate rapid
// reconnect can shift login_time by single-digit microseconds, and a naive
// second-level comparison would misclassify it as a continuation.
func sameMicrosecond(a, b time.Time) bool {
	return a.Truncate(time.Microsecond).Equal(b.Truncate(time.Microsecond))
}

// Reconcile classifies every record in a snapshot against set, mutating set
// in place by consuming entries from ByCID as records are matched. It
// returns an ordered action plan; callers must apply Close actions before
// Update/Create actions (§4.7 Phase A precedes Phase B).
//
// Every CID in set.ByCID that never appeared in this snapshot gets a
// Close(MissingFromDatafeed) action, and set.ByCID is empty on return.
func Reconcile(records []ControllerRecord, set *ActiveSet) []ControllerAction {
	var closes []ControllerAction
	var opens []ControllerAction

	for _, rec := range records {
		prior, hadPrior := set.ByCID[rec.CID]
		delete(set.ByCID, rec.CID)

		if rec.IsActive {
			switch {
			case hadPrior && sameMicrosecond(prior.LoginTime, rec.LoginTime) && prior.PositionID == rec.PrimaryPositionID:
				opens = append(opens, ControllerAction{
					Kind:                 ActionUpdateExisting,
					ControllerSessionID:  prior.ControllerSessionID,
					CallsignSessionID:    prior.CallsignSessionID,
					PositionSessionID:    prior.PositionSessionID,
					Record:               rec,
				})
			case hadPrior:
				closes = append(closes, ControllerAction{
					Kind:                 ActionClose,
					ControllerSessionID:  prior.ControllerSessionID,
					CID:                  rec.CID,
					CallsignSessionID:    prior.CallsignSessionID,
					PositionSessionID:    prior.PositionSessionID,
					ConnectedCallsign:    prior.ConnectedCallsign,
					Reason:               ReasonReconnectedOrChangedPosition,
				})
				opens = append(opens, ControllerAction{
					Kind:        ActionCreateNew,
					CID:         rec.CID,
					CallsignKey: CallsignKey{Prefix: rec.Callsign.Prefix, Suffix: rec.Callsign.Suffix},
					PositionID:  rec.PrimaryPositionID,
					Record:      rec,
				})
			default:
				opens = append(opens, ControllerAction{
					Kind:        ActionCreateNew,
					CID:         rec.CID,
					CallsignKey: CallsignKey{Prefix: rec.Callsign.Prefix, Suffix: rec.Callsign.Suffix},
					PositionID:  rec.PrimaryPositionID,
					Record:      rec,
				})
			}
		} else if hadPrior {
			closes = append(closes, ControllerAction{
				Kind:                ActionClose,
				ControllerSessionID: prior.ControllerSessionID,
				CID:                 rec.CID,
				CallsignSessionID:   prior.CallsignSessionID,
				PositionSessionID:   prior.PositionSessionID,
				ConnectedCallsign:   prior.ConnectedCallsign,
				Reason:              ReasonDeactivatedPosition,
			})
		}
		// is_active=false with no prior entry: never tracked, ignored.
	}

	for cid, prior := range set.ByCID {
		closes = append(closes, ControllerAction{
			Kind:                ActionClose,
			ControllerSessionID: prior.ControllerSessionID,
			CID:                 cid,
			CallsignSessionID:   prior.CallsignSessionID,
			PositionSessionID:   prior.PositionSessionID,
			ConnectedCallsign:   prior.ConnectedCallsign,
			Reason:              ReasonMissingFromDatafeed,
		})
	}
	for cid := range set.ByCID {
		delete(set.ByCID, cid)
	}

	logger.Debug("reconciled snapshot", "closes", len(closes), "opens", len(opens))

	return append(closes, opens...)
}
