package session

import (
	"strconv"

	"github.com/kengreim/vnas-stats/internal/logger"
	"github.com/kengreim/vnas-stats/internal/vatsim"
)

// ParseRecords converts the raw controller entries of a snapshot into
// ControllerRecord values, skipping (with a warning) any entry whose cid or
// callsign fails to parse — the snapshot as a whole is still processed
// (§4.6 rule 1).
func ParseRecords(controllers []vatsim.Controller) []ControllerRecord {
	records := make([]ControllerRecord, 0, len(controllers))

	for _, c := range controllers {
		cid, err := strconv.ParseInt(c.VatsimData.CID, 10, 64)
		if err != nil {
			logger.Warn("skipping controller record with unparsable cid",
				logger.Err(err), "raw_cid", c.VatsimData.CID)
			continue
		}

		callsign, err := vatsim.ParseCallsign(c.VatsimData.Callsign)
		if err != nil {
			logger.Warn("skipping controller record with unparsable callsign",
				logger.Err(err), logger.CID(cid))
			continue
		}

		records = append(records, ControllerRecord{
			CID:               cid,
			Callsign:          callsign,
			LoginTime:         c.LoginTime,
			PrimaryPositionID: c.PrimaryPositionID,
			IsActive:          c.IsActive,
			IsObserver:        c.IsObserver,
			RealName:          c.VatsimData.RealName,
			UserRating:        c.VatsimData.UserRating,
			RequestedRating:   c.VatsimData.RequestedRating,
		})
	}

	return records
}
