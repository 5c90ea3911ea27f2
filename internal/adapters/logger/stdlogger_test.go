package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"Error", LevelError},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
	assert.Equal(t, "WARN", LevelWarn.String())
}

func TestStdLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn, FormatText)
	ctx := context.Background()

	l.Debug(ctx, "hidden debug")
	l.Info(ctx, "hidden info")
	l.Warn(ctx, "shown warn", map[string]interface{}{"ticker": "AAPL"})

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown warn")
	assert.Contains(t, out, "ticker=AAPL")
}

func TestStdLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug, ParseFormat("JSON"))
	l.Error(context.Background(), errors.New("boom"), "Backtest failed", map[string]interface{}{"days": 3})

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "Backtest failed", rec["msg"])
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "boom", rec["error"])
	assert.Equal(t, float64(3), rec["days"])
}

func TestStdLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo, FormatText).With(map[string]interface{}{"fundID": "f1"})
	l.Info(context.Background(), "hello")
	assert.Contains(t, buf.String(), "fundID=f1")
}
