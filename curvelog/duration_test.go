package curvelog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDurationValid(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"T#1d19h56m1s172ms", 169561172},
		{"T#4m17s47ms", 257047},
		{"T#500ms", 500},
		{"T#15s250ms", 15250},
		{"T#5h10m5s300ms", 18605300},
		{"T#0ms", 0},
		{"T#12ms", 12},
		{"T#1m0ms", 60000},
		{"T#2d0ms", 172800000},
		{"T#90m0ms", 5400000},
		{"T#1h5ms", 3600005},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := DecodeDuration(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeDurationInvalid(t *testing.T) {
	for _, in := range []string{
		"",
		"T#",
		"T#5s",
		"T#1h2d3ms",
		"T#-5ms",
		"5ms",
		" T#5ms",
		"T#5ms ",
		"T#ms",
		"T#1h1h5ms",
		"T#1.5s0ms",
		"t#5ms",
		"T#99999999999999999999ms",
		"T#200000000000d0ms",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := DecodeDuration(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDuration))

			var de *DurationError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, in, de.Input)
		})
	}
}

func TestFormatDurationIsCanonical(t *testing.T) {
	assert.Equal(t, "T#1d19h56m1s172ms", FormatDuration(169561172))
	assert.Equal(t, "T#500ms", FormatDuration(500))
	assert.Equal(t, "T#1h30m0s0ms", FormatDuration(5400000))
	assert.Equal(t, "T#0ms", FormatDuration(0))

	for _, ms := range []int64{0, 1, 999, 1000, 61001, 3600000, 169561172} {
		got, err := DecodeDuration(FormatDuration(ms))
		require.NoError(t, err)
		assert.Equal(t, ms, got)
	}
}
