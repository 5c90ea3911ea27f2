package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"hedgeFundSim/internal/adapters/logger"
	"hedgeFundSim/internal/ports"
	"hedgeFundSim/internal/strategy/backtesting"
	"hedgeFundSim/internal/strategy/strategies"
)

// BacktestFile is the YAML description of one backtest run.
//
//	backtest:
//	  name: standard-aapl
//	  tickers: [AAPL]
//	  start_date: 2023-01-03
//	  end_date: 2023-12-29
//	  initial_capital: 100000
//	strategy:
//	  type: ma_crossover
//	  preset: standard
type BacktestFile struct {
	Backtest backtesting.Config `yaml:"backtest" json:"backtest"`
	Strategy strategies.Config  `yaml:"strategy" json:"strategy"`
	// DataCSV optionally names a bar CSV loaded instead of the database.
	DataCSV string `yaml:"data_csv,omitempty" json:"data_csv,omitempty"`
}

// DefaultBacktestFile returns a one-year run of the standard MA crossover preset on AAPL
// benchmarked against SPY.
func DefaultBacktestFile() *BacktestFile {
	return &BacktestFile{
		Backtest: backtesting.Config{
			Name:            "ma-standard-aapl",
			Tickers:         []string{"AAPL"},
			StartDate:       time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC),
			EndDate:         time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC),
			InitialCapital:  100000,
			Commission:      1,
			Slippage:        0.001,
			BenchmarkTicker: "SPY",
		},
		Strategy: strategies.Config{Type: strategies.TypeMACrossover, Preset: strategies.PresetStandard},
	}
}

// Validate checks the run parameters and that the strategy block builds.
func (f *BacktestFile) Validate() error {
	var errs []error
	if err := f.Backtest.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := strategies.New(f.Strategy, logger.NewNop()); err != nil {
		errs = append(errs, fmt.Errorf("strategy: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ports.ErrConfigurationError, errors.Join(errs...))
	}
	return nil
}

// LoadBacktestFile reads and validates a backtest YAML file. Unknown keys are rejected.
func LoadBacktestFile(path string) (*BacktestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backtest file %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	f := &BacktestFile{}
	if err := dec.Decode(f); err != nil {
		return nil, fmt.Errorf("parse backtest file %s: %w: %v", path, ports.ErrConfigurationError, err)
	}
	if f.DataCSV != "" && !filepath.IsAbs(f.DataCSV) {
		f.DataCSV = filepath.Join(filepath.Dir(path), f.DataCSV)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("backtest file %s: %w", path, err)
	}
	return f, nil
}

// SaveBacktestFile writes f as YAML, creating parent directories.
func SaveBacktestFile(path string, f *BacktestFile) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode backtest file: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write backtest file %s: %w", path, err)
	}
	return nil
}
