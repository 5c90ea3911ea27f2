// Package strategy runs the registered strategies for a fund and ticker and joins their signals
// into a consensus decision.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"hedgeFundSim/internal/domain"
	"hedgeFundSim/internal/ports"
	"hedgeFundSim/internal/strategy/analytics"
	"hedgeFundSim/internal/strategy/strategies"
)

// DefaultVolatilityWindow is the number of daily returns used to size positions.
const DefaultVolatilityWindow = 30

// Sizer turns a signal into a share count. *risk.Manager implements it.
type Sizer interface {
	PositionSize(confidence float64, action domain.Action, volatility, fundValue, availableCash, price float64) int64
}

// StrategyResult is one strategy's evaluation inside a PortfolioResult.
type StrategyResult struct {
	Strategy        string             `json:"strategy"`
	Signal          domain.TradeSignal `json:"signal"`
	Executable      bool               `json:"executable"`
	RecommendedSize int64              `json:"recommended_size"`
	Error           string             `json:"error,omitempty"`
}

// PortfolioResult is the output of RunAll: every strategy's signal plus the consensus.
type PortfolioResult struct {
	FundID     string           `json:"fund_id"`
	Ticker     string           `json:"ticker"`
	AsOf       time.Time        `json:"as_of"`
	Price      float64          `json:"price"`
	Volatility float64          `json:"volatility"`
	FundValue  float64          `json:"fund_value"`
	Position   domain.Position  `json:"position"`
	Results    []StrategyResult `json:"results"`
	Consensus  Consensus        `json:"consensus"`
}

type entry struct {
	name     string
	strategy ports.Strategy
	active   bool
}

// Engine is the registry of strategies and their orchestrator.
type Engine struct {
	mu      sync.RWMutex
	entries []*entry
	byName  map[string]*entry

	funds  ports.FundProvider
	prices ports.PriceHistoryProvider
	sizer  Sizer
	logger ports.Logger

	volatilityWindow int
	now              func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithVolatilityWindow sets the number of daily returns used for volatility.
func WithVolatilityWindow(days int) Option {
	return func(e *Engine) {
		if days >= 2 {
			e.volatilityWindow = days
		}
	}
}

// WithClock sets the as-of time passed to the price provider.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates a new strategy engine instance.
func NewEngine(funds ports.FundProvider, prices ports.PriceHistoryProvider, sizer Sizer, logger ports.Logger, opts ...Option) (*Engine, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy engine")
	}
	if funds == nil || prices == nil || sizer == nil {
		return nil, fmt.Errorf("fund provider, price provider and sizer are required for strategy engine")
	}
	e := &Engine{
		byName:           make(map[string]*entry),
		funds:            funds,
		prices:           prices,
		sizer:            sizer,
		logger:           logger,
		volatilityWindow: DefaultVolatilityWindow,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Register adds an active strategy under name, or under its own name when name is empty.
func (e *Engine) Register(name string, s ports.Strategy) error {
	if s == nil {
		return fmt.Errorf("register nil strategy: %w", ports.ErrInvalidRequest)
	}
	if name == "" {
		name = s.Name()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.byName[name]; ok {
		return fmt.Errorf("strategy %q already registered: %w", name, ports.ErrInvalidRequest)
	}
	en := &entry{name: name, strategy: s, active: true}
	e.entries = append(e.entries, en)
	e.byName[name] = en
	return nil
}

// SetActive enables or disables a registered strategy.
func (e *Engine) SetActive(name string, active bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	en, ok := e.byName[name]
	if !ok {
		return fmt.Errorf("strategy %q: %w", name, ports.ErrNotFound)
	}
	en.active = active
	return nil
}

// Names lists registered strategies in registration order.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.entries))
	for i, en := range e.entries {
		names[i] = en.name
	}
	return names
}

func (e *Engine) active() []*entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*entry
	for _, en := range e.entries {
		if en.active {
			out = append(out, &entry{name: en.name, strategy: en.strategy, active: true})
		}
	}
	return out
}

// RunAll evaluates every active strategy for ticker against the fund's current position and
// joins the signals. Strategy failures are recorded per result and never abort the run; lookup
// failures for the fund or the ticker are returned.
func (e *Engine) RunAll(ctx context.Context, fundID, ticker string) (*PortfolioResult, error) {
	strats := e.active()
	if len(strats) == 0 {
		return nil, fmt.Errorf("no active strategies: %w", ports.ErrInvalidRequest)
	}

	fund, err := e.funds.Fund(ctx, fundID)
	if err != nil {
		return nil, fmt.Errorf("run strategies for fund %s: %w", fundID, err)
	}

	required := e.volatilityWindow + 1
	for _, en := range strats {
		if n := en.strategy.RequiredDataPoints(); n > required {
			required = n
		}
	}
	asOf := e.now()
	history, err := e.prices.PriceHistory(ctx, ticker, asOf, required)
	if err != nil {
		return nil, fmt.Errorf("price history for %s: %w", ticker, err)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("no price history for %s: %w", ticker, ports.ErrInsufficientData)
	}

	closes := domain.Closes(history)
	price := closes[len(closes)-1]
	window := closes
	if len(window) > e.volatilityWindow+1 {
		window = window[len(window)-e.volatilityWindow-1:]
	}
	volatility := analytics.AnnualizedVolatility(analytics.SimpleReturns(window))
	position := domain.SummarizePosition(ticker, fund.Lots, decimal.NewFromFloat(price))

	fundValue, err := e.fundValue(ctx, fund, ticker, price, asOf)
	if err != nil {
		return nil, err
	}
	cash := fund.Cash.InexactFloat64()

	results := make([]StrategyResult, len(strats))
	g, gctx := errgroup.WithContext(ctx)
	for i, en := range strats {
		g.Go(func() error {
			results[i] = e.evaluate(gctx, en, ticker, history, position)
			return nil
		})
	}
	_ = g.Wait()

	for i := range results {
		r := &results[i]
		if !r.Executable {
			continue
		}
		r.RecommendedSize = e.size(r.Signal, strats[i].strategy, position, volatility, fundValue, cash, price)
	}

	res := &PortfolioResult{
		FundID:     fundID,
		Ticker:     ticker,
		AsOf:       asOf,
		Price:      price,
		Volatility: volatility,
		FundValue:  fundValue,
		Position:   position,
		Results:    results,
		Consensus:  ComputeConsensus(results),
	}
	e.logger.Info(ctx, "Strategies evaluated", map[string]interface{}{
		"fundID":     fundID,
		"ticker":     ticker,
		"strategies": len(results),
		"action":     res.Consensus.Action,
		"confidence": res.Consensus.AverageConfidence,
		"size":       res.Consensus.RecommendedSize,
	})
	return res, nil
}

// evaluate runs one strategy, converting errors and panics into a HOLD result.
func (e *Engine) evaluate(ctx context.Context, en *entry, ticker string, history []domain.PriceBar, position domain.Position) (res StrategyResult) {
	res.Strategy = en.name
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("strategy %s panicked: %v: %w", en.name, r, ports.ErrStrategyEvaluation)
			e.logger.Error(ctx, err, "Strategy evaluation panicked", map[string]interface{}{"ticker": ticker})
			res = failed(en.name, err)
		}
	}()

	sig, err := en.strategy.Analyze(ctx, ticker, history, position)
	if err != nil {
		if !errors.Is(err, ports.ErrInsufficientData) {
			err = fmt.Errorf("%w: %w", ports.ErrStrategyEvaluation, err)
		}
		e.logger.Warn(ctx, "Strategy evaluation failed", map[string]interface{}{
			"strategy": en.name, "ticker": ticker, "error": err.Error(),
		})
		return failed(en.name, err)
	}
	res.Signal = sig
	res.Executable = strategies.ShouldExecute(en.strategy, sig)
	return res
}

func failed(name string, err error) StrategyResult {
	return StrategyResult{
		Strategy: name,
		Signal:   domain.HoldSignal("evaluation failed"),
		Error:    err.Error(),
	}
}

// size converts an executable signal into shares. Buys go through the sizer and the strategy's
// own cap; sells take the suggested fraction of the held quantity.
func (e *Engine) size(sig domain.TradeSignal, s ports.Strategy, position domain.Position, volatility, fundValue, cash, price float64) int64 {
	switch sig.Action {
	case domain.ActionBuy:
		shares := e.sizer.PositionSize(sig.Confidence, domain.ActionBuy, volatility, fundValue, cash, price)
		if capShares := int64(math.Floor(fundValue * s.MaxPositionFraction() / price)); shares > capShares {
			shares = capShares
		}
		return shares
	case domain.ActionSell:
		return strategies.SellQuantity(position.Quantity, sig.SuggestedPositionFraction)
	default:
		return 0
	}
}

// fundValue is cash plus every open lot marked to its latest close, falling back to entry price.
func (e *Engine) fundValue(ctx context.Context, fund *domain.Fund, ticker string, price float64, asOf time.Time) (float64, error) {
	value := fund.Cash.InexactFloat64()
	for _, t := range fund.OpenTickers() {
		mark := decimal.NewFromFloat(price)
		if t != ticker {
			bars, err := e.prices.PriceHistory(ctx, t, asOf, 1)
			switch {
			case errors.Is(err, ports.ErrTickerNotFound) || (err == nil && len(bars) == 0):
				mark = domain.SummarizePosition(t, fund.Lots, decimal.Zero).AvgEntryPrice
			case err != nil:
				return 0, fmt.Errorf("price history for %s: %w", t, err)
			default:
				mark = decimal.NewFromFloat(bars[len(bars)-1].Close)
			}
		}
		value += domain.SummarizePosition(t, fund.Lots, mark).CurrentValue.InexactFloat64()
	}
	return value, nil
}
