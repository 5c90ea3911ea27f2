package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wave is a trending series with alternating gains and losses.
func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 0.3*float64(i) + 5*math.Sin(float64(i)/3)
	}
	return out
}

func refSMA(prices []float64, period int) []float64 {
	var out []float64
	for i := period - 1; i < len(prices); i++ {
		var sum float64
		for _, p := range prices[i-period+1 : i+1] {
			sum += p
		}
		out = append(out, sum/float64(period))
	}
	return out
}

func refEMA(prices []float64, period int) []float64 {
	alpha := 2.0 / float64(period+1)
	out := []float64{refSMA(prices[:period], period)[0]}
	for _, p := range prices[period:] {
		out = append(out, p*alpha+out[len(out)-1]*(1-alpha))
	}
	return out
}

func refRSI(prices []float64, period int) []float64 {
	p := float64(period)
	var gain, loss float64
	for i := 1; i <= period; i++ {
		if d := prices[i] - prices[i-1]; d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain, loss = gain/p, loss/p
	value := func() float64 {
		if loss == 0 {
			return 100
		}
		return 100 - 100/(1+gain/loss)
	}
	out := []float64{value()}
	for i := period + 1; i < len(prices); i++ {
		g, l := 0.0, 0.0
		if d := prices[i] - prices[i-1]; d > 0 {
			g = d
		} else {
			l = -d
		}
		gain = (gain*(p-1) + g) / p
		loss = (loss*(p-1) + l) / p
		out = append(out, value())
	}
	return out
}

func TestIndicators_MatchReferenceLoops(t *testing.T) {
	prices := wave(80)

	for _, period := range []int{1, 5, 20} {
		sma, err := SMA(prices, period)
		require.NoError(t, err)
		assert.InDeltaSlice(t, refSMA(prices, period), sma, 1e-9, "SMA %d", period)

		ema, err := EMA(prices, period)
		require.NoError(t, err)
		assert.InDeltaSlice(t, refEMA(prices, period), ema, 1e-9, "EMA %d", period)
	}

	rsi, err := RSI(prices, DefaultRSIPeriod)
	require.NoError(t, err)
	require.Len(t, rsi, len(prices)-DefaultRSIPeriod)
	assert.InDeltaSlice(t, refRSI(prices, DefaultRSIPeriod), rsi, 1e-9)

	bands, err := BollingerBands(prices, 20, 2)
	require.NoError(t, err)
	mid := refSMA(prices, 20)
	require.Len(t, bands.Middle, len(mid))
	for i, m := range mid {
		var ss float64
		for _, p := range prices[i : i+20] {
			ss += (p - m) * (p - m)
		}
		sd := math.Sqrt(ss / 20)
		assert.InDelta(t, m, bands.Middle[i], 1e-9)
		assert.InDelta(t, m+2*sd, bands.Upper[i], 1e-6)
		assert.InDelta(t, m-2*sd, bands.Lower[i], 1e-6)
	}
}

func TestIndicators_DoNotAliasInput(t *testing.T) {
	prices := []float64{4, 5, 6}
	got, err := SMA(prices, 1)
	require.NoError(t, err)
	got[0] = 99
	assert.Equal(t, 4.0, prices[0])
}

func TestRSI_ZeroLossUntilFirstDrop(t *testing.T) {
	got, err := RSI([]float64{5, 5, 5, 5, 4}, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 0}, got)

	_, err = RSI([]float64{1, 2, 3}, 1)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}
