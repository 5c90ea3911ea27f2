package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgeFundSim/internal/domain"
)

func TestReadBars(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		defaultTicker string
		want          []domain.PriceBar
		wantErr       string
	}{
		{
			name: "ticker column sorted by ticker and date",
			input: "Date,Ticker,Open,High,Low,Close,Adj_Close,Volume\n" +
				"2024-01-03,msft,10,11,9,10.5,10.5,200\n" +
				"2024-01-03,AAPL,1,2,0.5,1.5,1.5,100\n" +
				"2024-01-02,AAPL,1,2,0.5,1.25,1.25,1e3\n",
			want: []domain.PriceBar{
				{Ticker: "AAPL", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 0.5, Close: 1.25, Volume: 1000},
				{Ticker: "AAPL", Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
				{Ticker: "MSFT", Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 200},
			},
		},
		{
			name:          "default ticker and RFC3339 dates",
			input:         "date,open,high,low,close,volume\n2024-01-02T21:00:00Z,5,6,4,5.5,10\n",
			defaultTicker: "SPY",
			want: []domain.PriceBar{
				{Ticker: "SPY", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 5, High: 6, Low: 4, Close: 5.5, Volume: 10},
			},
		},
		{name: "missing column", input: "date,open,high,low,close\n", defaultTicker: "X", wantErr: `missing column "volume"`},
		{name: "no ticker", input: "date,open,high,low,close,volume\n", wantErr: "no default ticker"},
		{name: "bad close", input: "date,open,high,low,close,volume\n2024-01-02,1,1,1,x,1\n", defaultTicker: "X", wantErr: "line 2: invalid close"},
		{name: "bad date", input: "date,open,high,low,close,volume\n01/02/2024,1,1,1,1,1\n", defaultTicker: "X", wantErr: "invalid date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadBars(strings.NewReader(tt.input), tt.defaultTicker)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBarsCSV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	bars := []domain.PriceBar{
		{Ticker: "AAPL", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 187.15, High: 188.44, Low: 183.885, Close: 185.64, Volume: 82488700},
		{Ticker: "AAPL", Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Open: 184.22, High: 185.88, Low: 183.43, Close: 184.25, Volume: 58414500},
	}
	require.NoError(t, WriteBarsToCSV(bars, path))

	got, err := ReadBarsFromCSV(path, "")
	require.NoError(t, err)
	assert.Equal(t, bars, got)

	_, err = ReadBarsFromCSV(filepath.Join(t.TempDir(), "missing.csv"), "X")
	assert.True(t, os.IsNotExist(err))
}

func TestTradesCSV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	trades := []*domain.Trade{
		{
			ID: "trade-000001", FundID: "backtest", Ticker: "AAPL", Action: domain.ActionBuy, Quantity: 53,
			Price: decimal.RequireFromString("100.1"), Commission: decimal.NewFromInt(1), RealizedPnL: decimal.Zero,
			ExecutedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Confidence: 0.72, Rationale: "fast MA crossed above slow, volume 1.3x",
		},
		{
			ID: "trade-000002", FundID: "backtest", Ticker: "AAPL", Action: domain.ActionSell, Quantity: 53,
			Price: decimal.RequireFromString("110.8891"), Commission: decimal.NewFromInt(1), RealizedPnL: decimal.RequireFromString("571.8223"),
			ReturnPct: 0.1078, ExecutedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Confidence: 0.8,
			Rationale: "fast MA crossed below slow", CloseReason: domain.CloseReasonSignal,
		},
	}
	require.NoError(t, WriteTradesToCSV(trades, path))

	got, err := ReadTradesFromCSV(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range trades {
		want, g := trades[i], got[i]
		assert.Equal(t, want.ID, g.ID)
		assert.Equal(t, want.Action, g.Action)
		assert.Equal(t, want.Quantity, g.Quantity)
		assert.True(t, want.Price.Equal(g.Price))
		assert.True(t, want.RealizedPnL.Equal(g.RealizedPnL))
		assert.Equal(t, want.ReturnPct, g.ReturnPct)
		assert.True(t, want.ExecutedAt.Equal(g.ExecutedAt))
		assert.Equal(t, want.Rationale, g.Rationale)
		assert.Equal(t, want.CloseReason, g.CloseReason)
	}

	bad := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("foo\n"), 0644))
	_, err = ReadTradesFromCSV(bad)
	assert.Error(t, err)
}
