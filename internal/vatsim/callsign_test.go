package vatsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCallsign(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    Callsign
		wantErr bool
	}{
		{"two segments", "DEN_TWR", Callsign{Prefix: "DEN", Suffix: "TWR"}, false},
		{"three segments", "SCT_N_APP", Callsign{Prefix: "SCT", Infix: "N", Suffix: "APP"}, false},
		{"one segment", "DEN", Callsign{}, true},
		{"four segments", "SCT_N_E_APP", Callsign{}, true},
		{"empty string", "", Callsign{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseCallsign(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				var invalid *ErrInvalidCallsign
				assert.ErrorAs(t, err, &invalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCallsignString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cs   Callsign
		want string
	}{
		{"no infix", Callsign{Prefix: "DEN", Suffix: "TWR"}, "DEN_TWR"},
		{"with infix", Callsign{Prefix: "SCT", Infix: "N", Suffix: "APP"}, "SCT_N_APP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cs.String())
		})
	}
}

func TestParseCallsignRoundTrip(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"DEN_TWR", "SCT_N_APP"} {
		cs, err := ParseCallsign(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, cs.String())
	}
}
