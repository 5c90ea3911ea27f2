package cli

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hedgeFundSim/config"
	"hedgeFundSim/internal/adapters/memory"
	"hedgeFundSim/internal/domain"
	"hedgeFundSim/internal/ports"
	"hedgeFundSim/internal/strategy/backtesting"
	"hedgeFundSim/internal/strategy/optimization"
	"hedgeFundSim/internal/strategy/strategies"
	"hedgeFundSim/internal/utils"
)

// backtestPrices returns the bar source of a backtest file: its CSV loaded into memory when set,
// the database otherwise.
func (rt *runtime) backtestPrices(cmd *cobra.Command, f *config.BacktestFile) (ports.PriceHistoryProvider, error) {
	if f.DataCSV == "" {
		return rt.store()
	}
	bars, err := utils.ReadBarsFromCSV(f.DataCSV, "")
	if err != nil {
		return nil, err
	}
	mem := memory.New()
	if err := mem.SaveBars(cmd.Context(), bars); err != nil {
		return nil, err
	}
	rt.logger.Debug(cmd.Context(), "Loaded backtest bars from CSV", map[string]interface{}{
		"file": f.DataCSV,
		"bars": len(bars),
	})
	return mem, nil
}

func newBacktestCmd(rt *runtime) *cobra.Command {
	var (
		file      string
		save      bool
		tradesCSV string
	)
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay a strategy over historical bars",
		Long: `Backtest runs the strategy described in a YAML file over its tickers and date range and
prints return, risk and trade statistics. Bars come from the file's data_csv when set, otherwise
from the database. Use "fundsim config init" to write a starting file.`,
		Example: `  fundsim backtest --file backtests/aapl.yaml
  fundsim backtest --file backtests/aapl.yaml --save --trades out/aapl_trades.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := config.LoadBacktestFile(file)
			if err != nil {
				return err
			}
			prices, err := rt.backtestPrices(cmd, f)
			if err != nil {
				return err
			}
			strat, err := strategies.New(f.Strategy, rt.logger)
			if err != nil {
				return err
			}
			sim, err := backtesting.NewSimulator(prices, rt.logger)
			if err != nil {
				return err
			}
			result, err := sim.Run(cmd.Context(), f.Backtest, strat)
			if err != nil {
				return err
			}

			if tradesCSV != "" {
				trades := make([]*domain.Trade, len(result.Trades))
				for i := range result.Trades {
					trades[i] = &result.Trades[i]
				}
				if err := utils.WriteTradesToCSV(trades, tradesCSV); err != nil {
					return err
				}
			}
			if save {
				repo, err := rt.store()
				if err != nil {
					return err
				}
				rec, err := backtestRecord(f, result)
				if err != nil {
					return err
				}
				if err := repo.SaveBacktest(cmd.Context(), rec); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Saved backtest run %s\n", rec.ID)
			}

			if rt.jsonOut {
				return printJSON(cmd.OutOrStdout(), result)
			}
			return backtesting.WriteSummary(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "backtest YAML file")
	cmd.Flags().BoolVar(&save, "save", false, "store the run in the database")
	cmd.Flags().StringVar(&tradesCSV, "trades", "", "write the simulated trades to this CSV file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func backtestRecord(f *config.BacktestFile, r *backtesting.Result) (*ports.BacktestRecord, error) {
	cfg, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode backtest config: %w", err)
	}
	res, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode backtest result: %w", err)
	}
	name := f.Backtest.Name
	if name == "" {
		name = r.Strategy
	}
	return &ports.BacktestRecord{Name: name, Config: cfg, Result: res}, nil
}

// parseRange reads "min:max:step" or a single value.
func parseRange(name, s string) (optimization.ParameterRange, error) {
	r := optimization.ParameterRange{Name: name}
	parts := strings.Split(s, ":")
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return r, fmt.Errorf("--%s %q: %w", strings.ReplaceAll(name, "_", "-"), s, ports.ErrInvalidRequest)
		}
		vals[i] = v
	}
	switch len(vals) {
	case 1:
		r.Min, r.Max, r.Step = vals[0], vals[0], 1
	case 3:
		r.Min, r.Max, r.Step = vals[0], vals[1], vals[2]
	default:
		return r, fmt.Errorf("--%s must be min:max:step: %w", strings.ReplaceAll(name, "_", "-"), ports.ErrInvalidRequest)
	}
	return r, nil
}

func newOptimizeCmd(rt *runtime) *cobra.Command {
	var (
		file        string
		fast        string
		slow        string
		confidence  string
		top         int
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Grid-search MA crossover parameters over a backtest file",
		Long: `Optimize backtests every combination of the given parameter ranges with the run settings
of a backtest file and ranks them by a Sharpe-weighted score. Parameters without a range keep the
values of the file's MA crossover strategy.`,
		Example: `  fundsim optimize --file backtests/aapl.yaml --fast 5:20:5 --slow 20:60:10
  fundsim optimize --file backtests/aapl.yaml --fast 10 --slow 30 --min-confidence 0.3:0.7:0.1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := config.LoadBacktestFile(file)
			if err != nil {
				return err
			}
			base, err := macrossoverBase(f.Strategy)
			if err != nil {
				return err
			}
			var ranges []optimization.ParameterRange
			for _, p := range []struct{ name, value string }{
				{optimization.ParamFastPeriod, fast},
				{optimization.ParamSlowPeriod, slow},
				{optimization.ParamMinConfidence, confidence},
			} {
				if p.value == "" {
					continue
				}
				r, err := parseRange(p.name, p.value)
				if err != nil {
					return err
				}
				r.IsInt = p.name != optimization.ParamMinConfidence
				ranges = append(ranges, r)
			}
			prices, err := rt.backtestPrices(cmd, f)
			if err != nil {
				return err
			}
			opt, err := optimization.NewOptimizer(optimization.OptimizerConfig{
				ParameterRanges: ranges,
				Base:            base,
				Backtest:        f.Backtest,
				Concurrency:     concurrency,
			}, prices, rt.logger)
			if err != nil {
				return err
			}
			results, err := opt.Optimize(cmd.Context())
			if err != nil {
				return err
			}
			// Combinations that never traded score -Inf, which JSON cannot carry.
			traded := results[:0]
			for _, r := range results {
				if !math.IsInf(r.Score, 0) {
					traded = append(traded, r)
				}
			}
			if skipped := len(results) - len(traded); skipped > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d combinations made no trades\n", skipped)
			}
			results = traded
			if top > 0 && len(results) > top {
				results = results[:top]
			}
			if rt.jsonOut {
				return printJSON(cmd.OutOrStdout(), results)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tFAST\tSLOW\tMIN CONF\tRETURN\tSHARPE\tMAX DD\tTRADES\tSCORE\t")
			for i, r := range results {
				m := r.Metrics
				fmt.Fprintf(tw, "%d\t%d\t%d\t%.2f\t%.2f%%\t%.2f\t%.2f%%\t%d\t%.4f\t\n", i+1, r.Strategy.FastPeriod, r.Strategy.SlowPeriod,
					r.Strategy.MinConfidence, m.TotalReturn*100, m.SharpeRatio, m.MaxDrawdown*100, m.Trades.TotalTrades, r.Score)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "backtest YAML file")
	cmd.Flags().StringVar(&fast, "fast", "", "fast SMA period range as min:max:step")
	cmd.Flags().StringVar(&slow, "slow", "", "slow SMA period range as min:max:step")
	cmd.Flags().StringVar(&confidence, "min-confidence", "", "minimum confidence range as min:max:step")
	cmd.Flags().IntVar(&top, "top", 10, "number of results to print, 0 for all")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "concurrent backtests (GOMAXPROCS when 0)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// macrossoverBase resolves the MA crossover parameters a search starts from.
func macrossoverBase(cfg strategies.Config) (strategies.MACrossoverConfig, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case strategies.TypeMACrossover, "":
	default:
		return strategies.MACrossoverConfig{}, fmt.Errorf("optimize supports %s strategies, got %q: %w",
			strategies.TypeMACrossover, cfg.Type, ports.ErrInvalidRequest)
	}
	if cfg.MACrossover != nil {
		return *cfg.MACrossover, nil
	}
	if cfg.Preset != "" {
		return strategies.PresetConfig(cfg.Preset)
	}
	return strategies.StandardConfig(), nil
}
