package indicators

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgeFundSim/internal/ports"
)

func TestSMA(t *testing.T) {
	tests := []struct {
		name        string
		prices      []float64
		period      int
		expected    []float64
		expectError error
	}{
		{
			name:     "three period over five prices",
			prices:   []float64{1, 2, 3, 4, 5},
			period:   3,
			expected: []float64{2, 3, 4},
		},
		{
			name:     "period equals length",
			prices:   []float64{10, 20, 30},
			period:   3,
			expected: []float64{20},
		},
		{
			name:     "period one is identity",
			prices:   []float64{4, 5, 6},
			period:   1,
			expected: []float64{4, 5, 6},
		},
		{
			name:        "insufficient data",
			prices:      []float64{1, 2},
			period:      3,
			expectError: ports.ErrInsufficientData,
		},
		{
			name:        "zero period",
			prices:      []float64{1, 2, 3},
			period:      0,
			expectError: ErrInvalidPeriod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SMA(tt.prices, tt.period)
			if tt.expectError != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.expectError))
				return
			}
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.expected, got, 1e-9)
			assert.Len(t, got, len(tt.prices)-tt.period+1)
		})
	}
}

func TestEMA(t *testing.T) {
	prices := []float64{2, 4, 6, 8, 10}

	got, err := EMA(prices, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Seed is SMA(2,4,6)=4, alpha=0.5.
	assert.InDelta(t, 4.0, got[0], 1e-9)
	assert.InDelta(t, 8*0.5+4*0.5, got[1], 1e-9)
	assert.InDelta(t, 10*0.5+6*0.5, got[2], 1e-9)

	_, err = EMA(prices[:2], 3)
	assert.ErrorIs(t, err, ports.ErrInsufficientData)
}

func TestEMA_ConstantSeries(t *testing.T) {
	prices := []float64{7, 7, 7, 7, 7, 7, 7}
	got, err := EMA(prices, 4)
	require.NoError(t, err)
	for _, v := range got {
		assert.InDelta(t, 7.0, v, 1e-12)
	}
}
