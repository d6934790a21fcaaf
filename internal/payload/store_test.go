package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", []byte{}},
		{"small json", []byte(`{"updatedAt":"2026-07-30T00:00:00Z","controllers":[]}`)},
		{"repetitive payload", []byte(repeat("ABCDEFG_1234 ", 500))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			compressed := Compress(tt.raw)
			got, err := Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, tt.raw, got)
		})
	}
}

func TestDecompressRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := Decompress([]byte("not a zstd frame"))
	require.Error(t, err)
}

func repeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
