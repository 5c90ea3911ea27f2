package paperbroker

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgeFundSim/internal/adapters/memory"
	"hedgeFundSim/internal/domain"
	"hedgeFundSim/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newBroker(t *testing.T, slippage, commission float64) *Broker {
	t.Helper()
	store := memory.New()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveBars(context.Background(), []domain.PriceBar{
		{Ticker: "AAPL", Date: day, Open: 99, High: 101, Low: 98, Close: 100, Volume: 1000},
		{Ticker: "AAPL", Date: day.AddDate(0, 0, 1), Open: 100, High: 121, Low: 99, Close: 120.5, Volume: 1000},
	}))
	b, err := New(Config{
		Prices:     store,
		Slippage:   slippage,
		Commission: commission,
		Logger:     &mockLogger{},
		Clock:      func() time.Time { return day.AddDate(0, 0, 1).Add(16 * time.Hour) },
	})
	require.NoError(t, err)
	return b
}

func TestNew_Validation(t *testing.T) {
	store := memory.New()
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no logger", Config{Prices: store}},
		{"no prices", Config{Logger: &mockLogger{}}},
		{"negative slippage", Config{Prices: store, Logger: &mockLogger{}, Slippage: -0.1}},
		{"full slippage", Config{Prices: store, Logger: &mockLogger{}, Slippage: 1}},
		{"negative commission", Config{Prices: store, Logger: &mockLogger{}, Commission: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestBroker_Execute(t *testing.T) {
	b := newBroker(t, 0.001, 1)
	ctx := context.Background()

	last, err := b.LastPrice(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, last.Equal(decimal.RequireFromString("120.5")))

	buy, err := b.Execute(ctx, "AAPL", domain.ActionBuy, 10)
	require.NoError(t, err)
	assert.Equal(t, "120.6205", buy.Price.String())
	assert.True(t, buy.Commission.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, int64(10), buy.Quantity)

	sell, err := b.Execute(ctx, "AAPL", domain.ActionSell, 5)
	require.NoError(t, err)
	assert.Equal(t, "120.3795", sell.Price.String())

	_, err = b.Execute(ctx, "AAPL", domain.ActionHold, 5)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
	_, err = b.Execute(ctx, "AAPL", domain.ActionBuy, 0)
	assert.ErrorIs(t, err, ports.ErrInvalidQuantity)
	_, err = b.Execute(ctx, "TSLA", domain.ActionBuy, 1)
	assert.ErrorIs(t, err, ports.ErrTickerNotFound)
}
