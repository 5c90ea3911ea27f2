// Package optimization grid-searches MA crossover parameters by backtesting every combination.
package optimization

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"hedgeFundSim/internal/ports"
	"hedgeFundSim/internal/strategy/backtesting"
	"hedgeFundSim/internal/strategy/strategies"
)

// Parameter names understood by the optimizer.
const (
	ParamFastPeriod          = "fast_period"
	ParamSlowPeriod          = "slow_period"
	ParamMinConfidence       = "min_confidence"
	ParamTrendThreshold      = "trend_threshold"
	ParamMaxPositionFraction = "max_position_fraction"
)

// ParameterRange defines a range for a parameter to optimize
type ParameterRange struct {
	Name  string  `yaml:"name" json:"name"`
	Min   float64 `yaml:"min" json:"min"`
	Max   float64 `yaml:"max" json:"max"`
	Step  float64 `yaml:"step" json:"step"`
	IsInt bool    `yaml:"is_int,omitempty" json:"is_int,omitempty"`
}

// OptimizationResult holds the outcome of one parameter combination.
type OptimizationResult struct {
	Parameters map[string]float64           `json:"parameters"`
	Strategy   strategies.MACrossoverConfig `json:"strategy"`
	Metrics    backtesting.Metrics          `json:"metrics"`
	Score      float64                      `json:"score"`
}

// ScoreFunction ranks a finished backtest; higher is better.
type ScoreFunction func(*backtesting.Result) float64

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	ParameterRanges []ParameterRange
	Base            strategies.MACrossoverConfig // values for parameters not in a range
	Backtest        backtesting.Config
	Concurrency     int // concurrent backtests, GOMAXPROCS when zero
	ScoreFunction   ScoreFunction
}

// Optimizer implements strategy parameter optimization
type Optimizer struct {
	config OptimizerConfig
	sim    *backtesting.Simulator
	logger ports.Logger
}

// NewOptimizer creates a new optimizer instance
func NewOptimizer(config OptimizerConfig, prices ports.PriceHistoryProvider, logger ports.Logger) (*Optimizer, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for optimizer")
	}
	if len(config.ParameterRanges) == 0 {
		return nil, fmt.Errorf("at least one parameter range is required: %w", ports.ErrInvalidRequest)
	}
	for _, r := range config.ParameterRanges {
		switch r.Name {
		case ParamFastPeriod, ParamSlowPeriod, ParamMinConfidence, ParamTrendThreshold, ParamMaxPositionFraction:
		default:
			return nil, fmt.Errorf("unknown parameter %q: %w", r.Name, ports.ErrInvalidRequest)
		}
		if r.Step <= 0 || r.Max < r.Min {
			return nil, fmt.Errorf("parameter %s needs min <= max and a positive step: %w", r.Name, ports.ErrInvalidRequest)
		}
	}
	if config.Base.FastPeriod == 0 && config.Base.SlowPeriod == 0 {
		config.Base = strategies.StandardConfig()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = runtime.GOMAXPROCS(0)
	}
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	sim, err := backtesting.NewSimulator(prices, logger)
	if err != nil {
		return nil, err
	}
	return &Optimizer{config: config, sim: sim, logger: logger}, nil
}

// Optimize backtests every valid parameter combination and returns the results by descending
// score. Combinations that do not form a valid strategy (fast >= slow) are skipped. The first
// backtest failure cancels the search.
func (o *Optimizer) Optimize(ctx context.Context) ([]OptimizationResult, error) {
	type job struct {
		params map[string]float64
		strat  *strategies.MACrossover
	}
	var jobs []job
	for _, params := range o.generateParameterCombinations() {
		cfg := o.apply(params)
		strat, err := strategies.NewMACrossover(cfg, o.logger)
		if err != nil {
			o.logger.Debug(ctx, "Skipping parameter combination", map[string]interface{}{"params": params, "error": err.Error()})
			continue
		}
		jobs = append(jobs, job{params: params, strat: strat})
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("no valid parameter combinations: %w", ports.ErrInvalidRequest)
	}

	results := make([]OptimizationResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Concurrency)
	for i, j := range jobs {
		g.Go(func() error {
			res, err := o.sim.Run(gctx, o.config.Backtest, j.strat)
			if err != nil {
				return err
			}
			results[i] = OptimizationResult{
				Parameters: j.params,
				Strategy:   j.strat.Config(),
				Metrics:    res.Metrics,
				Score:      o.config.ScoreFunction(res),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("optimization aborted: %w", err)
	}

	sortResultsByScore(results)
	o.logger.Info(ctx, "Optimization complete", map[string]interface{}{
		"combinations": len(results),
		"bestScore":    results[0].Score,
		"bestParams":   results[0].Parameters,
	})
	return results, nil
}

// apply overlays params on the base config and names the result after its periods.
func (o *Optimizer) apply(params map[string]float64) strategies.MACrossoverConfig {
	cfg := o.config.Base
	for name, v := range params {
		switch name {
		case ParamFastPeriod:
			cfg.FastPeriod = int(v)
		case ParamSlowPeriod:
			cfg.SlowPeriod = int(v)
		case ParamMinConfidence:
			cfg.MinConfidence = v
		case ParamTrendThreshold:
			cfg.TrendThreshold = v
		case ParamMaxPositionFraction:
			cfg.MaxPositionFraction = v
		}
	}
	cfg.Name = fmt.Sprintf("ma_crossover_%d_%d", cfg.FastPeriod, cfg.SlowPeriod)
	return cfg
}

// generateParameterCombinations generates all possible parameter combinations
func (o *Optimizer) generateParameterCombinations() []map[string]float64 {
	var combinations []map[string]float64
	current := make(map[string]float64)

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(o.config.ParameterRanges) {
			combination := make(map[string]float64, len(current))
			for k, v := range current {
				combination[k] = v
			}
			combinations = append(combinations, combination)
			return
		}

		param := o.config.ParameterRanges[paramIndex]
		steps := int(math.Floor((param.Max-param.Min)/param.Step + 1e-9))
		for i := 0; i <= steps; i++ {
			value := param.Min + float64(i)*param.Step
			if param.IsInt {
				value = math.Round(value)
			}
			current[param.Name] = value
			generate(paramIndex + 1)
		}
	}

	generate(0)
	return combinations
}

// sortResultsByScore sorts optimization results by score in descending order. NaN scores sort last.
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Score, results[j].Score
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a > b
	})
}

// DefaultScoreFunction weights risk-adjusted return most and penalizes drawdown. Runs without a
// single trade score negative infinity.
func DefaultScoreFunction(res *backtesting.Result) float64 {
	m := res.Metrics
	if m.Trades.TotalTrades == 0 {
		return math.Inf(-1)
	}
	score := 0.0
	score += m.SharpeRatio * 0.5
	score += m.TotalReturn * 0.3
	score -= m.MaxDrawdown * 0.2
	return score
}
