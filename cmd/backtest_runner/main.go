// Command backtest_runner replays every MA crossover preset over one bar CSV and writes the
// simulated trades of each run to data/backtest_trades_<preset>.csv.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"hedgeFundSim/config"
	"hedgeFundSim/internal/adapters/logger"
	"hedgeFundSim/internal/adapters/memory"
	"hedgeFundSim/internal/domain"
	"hedgeFundSim/internal/strategy/backtesting"
	"hedgeFundSim/internal/strategy/strategies"
	"hedgeFundSim/internal/utils"
)

func main() {
	dataFile := flag.String("data", "data/bars.csv", "bar CSV with a ticker column")
	outDir := flag.String("out", "data", "directory for trade CSVs")
	capital := flag.Float64("capital", 100000, "initial capital per run")
	benchmark := flag.String("benchmark", "", "benchmark ticker contained in the CSV")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	// 2. Load bars
	bars, err := utils.ReadBarsFromCSV(*dataFile, "")
	if err != nil {
		log.Fatalf("FATAL: Failed to read bars: %v", err)
	}
	if len(bars) == 0 {
		log.Fatalf("FATAL: %s contains no bars", *dataFile)
	}
	store := memory.New()
	if err := store.SaveBars(ctx, bars); err != nil {
		log.Fatalf("FATAL: Failed to load bars: %v", err)
	}
	tickers, start, end := span(bars, *benchmark)
	appLogger.Info(ctx, "Loaded bars", map[string]interface{}{
		"file":    *dataFile,
		"count":   len(bars),
		"tickers": strings.Join(tickers, ","),
	})

	sim, err := backtesting.NewSimulator(store, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to create simulator: %v", err)
	}

	// 3. Run one backtest per preset
	var wg sync.WaitGroup
	for _, preset := range strategies.Presets() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			strat, err := strategies.Preset(preset, appLogger)
			if err != nil {
				appLogger.Error(ctx, err, "Failed to create strategy", map[string]interface{}{"preset": preset})
				return
			}
			result, err := sim.Run(ctx, backtesting.Config{
				Name:            preset,
				Tickers:         tickers,
				StartDate:       start,
				EndDate:         end,
				InitialCapital:  *capital,
				Commission:      cfg.Commission,
				Slippage:        cfg.Slippage,
				BenchmarkTicker: *benchmark,
			}, strat)
			if err != nil {
				appLogger.Error(ctx, err, "Backtest error", map[string]interface{}{"preset": preset})
				return
			}

			m := result.Metrics
			appLogger.Info(ctx, "Backtest result", map[string]interface{}{
				"preset":  preset,
				"trades":  m.Trades.TotalTrades,
				"winRate": m.Trades.WinRate * 100,
				"return":  m.TotalReturn * 100,
				"sharpe":  m.SharpeRatio,
				"maxDD":   m.MaxDrawdown * 100,
			})

			trades := make([]*domain.Trade, len(result.Trades))
			for i := range result.Trades {
				trades[i] = &result.Trades[i]
			}
			tradesFile := filepath.Join(*outDir, fmt.Sprintf("backtest_trades_%s.csv", preset))
			if err := utils.WriteTradesToCSV(trades, tradesFile); err != nil {
				appLogger.Error(ctx, err, "Error writing trades CSV", map[string]interface{}{"filename": tradesFile})
				return
			}
			appLogger.Info(ctx, "Trades saved to", map[string]interface{}{"filename": tradesFile})
		}()
	}
	wg.Wait()
}

// span returns the traded tickers, excluding the benchmark, and the first and last bar dates.
func span(bars []domain.PriceBar, benchmark string) ([]string, time.Time, time.Time) {
	seen := make(map[string]bool)
	var tickers []string
	start, end := bars[0].Date, bars[0].Date
	for _, b := range bars {
		if b.Date.Before(start) {
			start = b.Date
		}
		if b.Date.After(end) {
			end = b.Date
		}
		if b.Ticker == benchmark || seen[b.Ticker] {
			continue
		}
		seen[b.Ticker] = true
		tickers = append(tickers, b.Ticker)
	}
	return tickers, start, end
}
