// Package backtesting replays a strategy over historical bars, one trading day at a time.
package backtesting

import (
	"fmt"
	"strings"
	"time"

	"hedgeFundSim/internal/ports"
)

// Defaults applied by Run when the corresponding Config field is zero.
const (
	DefaultMaxPositionFraction = 0.10
	DefaultCashUsageCap        = 0.95
	DefaultRiskFreeRate        = 0.02
)

// Config describes one backtest run. Money is in account currency.
type Config struct {
	Name                string    `yaml:"name" json:"name"`
	Tickers             []string  `yaml:"tickers" json:"tickers"`
	StartDate           time.Time `yaml:"start_date" json:"start_date"`
	EndDate             time.Time `yaml:"end_date" json:"end_date"`
	InitialCapital      float64   `yaml:"initial_capital" json:"initial_capital"`
	Commission          float64   `yaml:"commission" json:"commission"`
	Slippage            float64   `yaml:"slippage" json:"slippage"`
	BenchmarkTicker     string    `yaml:"benchmark_ticker,omitempty" json:"benchmark_ticker,omitempty"`
	MaxPositionFraction float64   `yaml:"max_position_fraction,omitempty" json:"max_position_fraction,omitempty"`
	CashUsageCap        float64   `yaml:"cash_usage_cap,omitempty" json:"cash_usage_cap,omitempty"`
	RiskFreeRate        float64   `yaml:"risk_free_rate,omitempty" json:"risk_free_rate,omitempty"`
}

func (c Config) withDefaults() Config {
	if c.MaxPositionFraction == 0 {
		c.MaxPositionFraction = DefaultMaxPositionFraction
	}
	if c.CashUsageCap == 0 {
		c.CashUsageCap = DefaultCashUsageCap
	}
	if c.RiskFreeRate == 0 {
		c.RiskFreeRate = DefaultRiskFreeRate
	}
	return c
}

// Validate checks the configuration and names the first offending parameter.
func (c Config) Validate() error {
	if len(c.Tickers) == 0 {
		return &Error{Param: "tickers", Err: fmt.Errorf("at least one ticker is required: %w", ports.ErrInvalidRequest)}
	}
	seen := make(map[string]bool, len(c.Tickers))
	for _, t := range c.Tickers {
		if strings.TrimSpace(t) == "" {
			return &Error{Param: "tickers", Err: fmt.Errorf("empty ticker: %w", ports.ErrInvalidRequest)}
		}
		if seen[t] {
			return &Error{Param: "tickers", Err: fmt.Errorf("duplicate ticker %s: %w", t, ports.ErrInvalidRequest)}
		}
		seen[t] = true
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() || c.EndDate.Before(c.StartDate) {
		return &Error{Param: "date_range", Err: fmt.Errorf("start %s must not be after end %s: %w",
			c.StartDate.Format(time.DateOnly), c.EndDate.Format(time.DateOnly), ports.ErrInvalidRequest)}
	}
	if c.InitialCapital <= 0 {
		return &Error{Param: "initial_capital", Err: fmt.Errorf("must be positive, got %.2f: %w", c.InitialCapital, ports.ErrInvalidRequest)}
	}
	if c.Commission < 0 {
		return &Error{Param: "commission", Err: fmt.Errorf("cannot be negative: %w", ports.ErrInvalidRequest)}
	}
	if c.Slippage < 0 || c.Slippage >= 1 {
		return &Error{Param: "slippage", Err: fmt.Errorf("must be within [0,1): %w", ports.ErrInvalidRequest)}
	}
	if c.MaxPositionFraction < 0 || c.MaxPositionFraction > 1 {
		return &Error{Param: "max_position_fraction", Err: fmt.Errorf("must be within (0,1]: %w", ports.ErrInvalidRequest)}
	}
	if c.CashUsageCap < 0 || c.CashUsageCap > 1 {
		return &Error{Param: "cash_usage_cap", Err: fmt.Errorf("must be within (0,1]: %w", ports.ErrInvalidRequest)}
	}
	return nil
}

// Error is the single failure type of a backtest run. It names the parameter at fault and
// matches both ports.ErrBacktestFailed and its cause with errors.Is.
type Error struct {
	Param string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("backtest failed on %s: %v", e.Param, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ports.ErrBacktestFailed, e.Err}
}

// State is the lifecycle of a run.
type State string

const (
	StateInitializing State = "INITIALIZING"
	StateRunning      State = "RUNNING"
	StateComplete     State = "COMPLETE"
	StateFailed       State = "FAILED"
	StateCancelled    State = "CANCELLED"
)
