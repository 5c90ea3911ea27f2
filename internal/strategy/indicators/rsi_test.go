package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgeFundSim/internal/ports"
)

func TestRSI(t *testing.T) {
	tests := []struct {
		name         string
		prices       []float64
		period       int
		expectedLast float64
		expectedLen  int
		expectError  bool
	}{
		{
			name:         "wilder smoothing over mixed changes",
			prices:       []float64{100, 102, 101, 103, 102, 104}, // +2 -1 +2 -1 +2
			period:       3,
			expectedLast: 77.272727,
			expectedLen:  3,
		},
		{
			name:         "strictly increasing series",
			prices:       []float64{100, 102, 104, 106, 108},
			period:       3,
			expectedLast: 100,
			expectedLen:  2,
		},
		{
			name:         "strictly decreasing series",
			prices:       []float64{106, 104, 102, 100},
			period:       3,
			expectedLast: 0,
			expectedLen:  1,
		},
		{
			name:        "period requires one extra price",
			prices:      []float64{1, 2, 3},
			period:      3,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RSI(tt.prices, tt.period)
			if tt.expectError {
				assert.ErrorIs(t, err, ports.ErrInsufficientData)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.expectedLen)
			assert.InDelta(t, tt.expectedLast, Last(got), 1e-4)
			for _, v := range got {
				assert.False(t, math.IsNaN(v))
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 100.0)
			}
		})
	}
}

func TestRSI_FlatSeriesIsNotNaN(t *testing.T) {
	got, err := RSI([]float64{5, 5, 5, 5, 5}, 4)
	require.NoError(t, err)
	for _, v := range got {
		assert.Equal(t, 100.0, v)
	}
}
