package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kengreim/vnas-stats/internal/vatsim"
)

func TestParseRecordsSkipsUnparsableEntriesButKeepsTheRest(t *testing.T) {
	t.Parallel()

	login := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	controllers := []vatsim.Controller{
		{
			PrimaryPositionID: "DEN_TWR",
			IsActive:          true,
			LoginTime:         login,
			VatsimData:        vatsim.VatsimData{CID: "100", Callsign: "DEN_TWR", RealName: "Someone"},
		},
		{
			// Unparsable cid.
			PrimaryPositionID: "DEN_GND",
			IsActive:          true,
			LoginTime:         login,
			VatsimData:        vatsim.VatsimData{CID: "not-a-number", Callsign: "DEN_GND"},
		},
		{
			// Unparsable callsign (single segment).
			PrimaryPositionID: "DEN_APP",
			IsActive:          true,
			LoginTime:         login,
			VatsimData:        vatsim.VatsimData{CID: "200", Callsign: "DEN"},
		},
		{
			PrimaryPositionID: "SCT_APP",
			IsActive:          true,
			LoginTime:         login,
			VatsimData:        vatsim.VatsimData{CID: "300", Callsign: "SCT_N_APP"},
		},
	}

	records := ParseRecords(controllers)

	require.Len(t, records, 2)
	assert.Equal(t, int64(100), records[0].CID)
	assert.Equal(t, "DEN_TWR", records[0].Callsign.String())
	assert.Equal(t, int64(300), records[1].CID)
	assert.Equal(t, "SCT_N_APP", records[1].Callsign.String())
}

func TestParseRecordsEmptyInput(t *testing.T) {
	t.Parallel()

	records := ParseRecords(nil)
	assert.Empty(t, records)
}
