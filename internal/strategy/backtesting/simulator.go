package backtesting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"hedgeFundSim/internal/domain"
	"hedgeFundSim/internal/ledger"
	"hedgeFundSim/internal/ports"
	"hedgeFundSim/internal/strategy/strategies"
)

const simulatedFundID = "backtest"

// Simulator runs backtests against a price provider. It holds no per-run state and can run
// several backtests concurrently.
type Simulator struct {
	prices ports.PriceHistoryProvider
	logger ports.Logger
}

// NewSimulator creates a new backtest simulator instance.
func NewSimulator(prices ports.PriceHistoryProvider, logger ports.Logger) (*Simulator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for backtest simulator")
	}
	if prices == nil {
		return nil, fmt.Errorf("price provider is required for backtest simulator")
	}
	return &Simulator{prices: prices, logger: logger}, nil
}

type series struct {
	ticker string
	bars   []domain.PriceBar
	cursor int // bars[:cursor] are dated on or before the current day
}

// advance moves the cursor past every bar dated on or before day and reports whether one of
// them is dated day itself.
func (s *series) advance(day time.Time) bool {
	for s.cursor < len(s.bars) && !domain.TruncateDay(s.bars[s.cursor].Date).After(day) {
		s.cursor++
	}
	return s.cursor > 0 && domain.SameDay(s.bars[s.cursor-1].Date, day)
}

func (s *series) history() []domain.PriceBar {
	return s.bars[:s.cursor]
}

// run is the mutable state of one backtest.
type run struct {
	cfg        Config
	strategy   ports.Strategy
	ledger     *ledger.Ledger
	cash       decimal.Decimal
	commission decimal.Decimal
	lastClose  map[string]decimal.Decimal
	trades     []domain.Trade
	nextTrade  int
	peak       decimal.Decimal
	prevValue  decimal.Decimal
	initial    decimal.Decimal
}

// Run replays strat over cfg's date range. Days are processed strictly in order; cancellation is
// checked between days and returns the completed days with State CANCELLED alongside the error.
func (s *Simulator) Run(ctx context.Context, cfg Config, strat ports.Strategy) (*Result, error) {
	if strat == nil {
		return nil, &Error{Param: "strategy", Err: fmt.Errorf("strategy is required: %w", ports.ErrInvalidRequest)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	start := domain.TruncateDay(cfg.StartDate)
	end := domain.TruncateDay(cfg.EndDate)

	res := &Result{Config: cfg, Strategy: strat.Name(), State: StateInitializing}
	fail := func(err error) (*Result, error) {
		res.State = StateFailed
		s.logger.Error(ctx, err, "Backtest failed", map[string]interface{}{"name": cfg.Name, "strategy": res.Strategy})
		return res, err
	}

	data, days, err := s.load(ctx, cfg, start, end, strat.RequiredDataPoints())
	if err != nil {
		return fail(err)
	}
	var bench *series
	if cfg.BenchmarkTicker != "" {
		bars, err := s.prices.PriceRange(ctx, cfg.BenchmarkTicker, start, endOfDay(end))
		if err == nil && len(bars) == 0 {
			err = ports.ErrInsufficientData
		}
		if err != nil {
			return fail(&Error{Param: "benchmark_ticker", Err: fmt.Errorf("benchmark %s: %w", cfg.BenchmarkTicker, err)})
		}
		bench = &series{ticker: cfg.BenchmarkTicker, bars: bars}
	}

	lotSeq := 0
	r := &run{
		cfg:      cfg,
		strategy: strat,
		ledger: ledger.New(ledger.WithIDGenerator(func() string {
			lotSeq++
			return fmt.Sprintf("lot-%06d", lotSeq)
		})),
		cash:       decimal.NewFromFloat(cfg.InitialCapital),
		commission: decimal.NewFromFloat(cfg.Commission),
		lastClose:  make(map[string]decimal.Decimal),
	}
	r.initial = r.cash
	r.peak = r.cash
	r.prevValue = r.cash

	s.logger.Info(ctx, "Backtest started", map[string]interface{}{
		"name": cfg.Name, "strategy": res.Strategy, "tickers": cfg.Tickers, "days": len(days),
	})
	res.State = StateRunning

	var benchCloses []float64
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			res.State = StateCancelled
			r.finish(res)
			s.logger.Warn(ctx, "Backtest cancelled", map[string]interface{}{"name": cfg.Name, "completedDays": len(res.EquityCurve)})
			return res, fmt.Errorf("backtest %s cancelled: %w", cfg.Name, err)
		}
		res.EquityCurve = append(res.EquityCurve, r.step(ctx, s.logger, day, data))
		if bench != nil {
			benchCloses = append(benchCloses, bench.closeOn(day))
		}
	}

	r.finish(res)
	res.computeMetrics()
	if bench != nil {
		res.computeBenchmark(bench.ticker, benchCloses)
	}
	res.State = StateComplete

	s.logger.Info(ctx, "Backtest complete", map[string]interface{}{
		"name":        cfg.Name,
		"strategy":    res.Strategy,
		"trades":      len(res.Trades),
		"totalReturn": res.Metrics.TotalReturn,
		"maxDrawdown": res.Metrics.MaxDrawdown,
	})
	return res, nil
}

// closeOn returns the latest close on or before day, or the first close before any bar exists.
func (s *series) closeOn(day time.Time) float64 {
	s.advance(day)
	if s.cursor == 0 {
		return s.bars[0].Close
	}
	return s.bars[s.cursor-1].Close
}

func endOfDay(day time.Time) time.Time {
	return day.Add(24*time.Hour - time.Nanosecond)
}

// load fetches warmup history before start plus every bar in range, and derives the trading
// days as the union of bar dates in range.
func (s *Simulator) load(ctx context.Context, cfg Config, start, end time.Time, warmup int) ([]*series, []time.Time, error) {
	var out []*series
	daySet := make(map[time.Time]struct{})
	for _, ticker := range cfg.Tickers {
		before, err := s.prices.PriceHistory(ctx, ticker, start.Add(-time.Nanosecond), warmup)
		if err != nil {
			return nil, nil, &Error{Param: "tickers", Err: fmt.Errorf("history for %s: %w", ticker, err)}
		}
		inRange, err := s.prices.PriceRange(ctx, ticker, start, endOfDay(end))
		if err != nil {
			return nil, nil, &Error{Param: "tickers", Err: fmt.Errorf("bars for %s: %w", ticker, err)}
		}

		bars := make([]domain.PriceBar, 0, len(before)+len(inRange))
		for _, b := range before {
			if domain.TruncateDay(b.Date).Before(start) {
				bars = append(bars, b)
			}
		}
		for _, b := range inRange {
			d := domain.TruncateDay(b.Date)
			if d.Before(start) || d.After(end) {
				continue
			}
			bars = append(bars, b)
			daySet[d] = struct{}{}
		}
		sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
		out = append(out, &series{ticker: ticker, bars: bars})
	}

	if len(daySet) == 0 {
		return nil, nil, &Error{Param: "date_range", Err: fmt.Errorf("no trading days between %s and %s: %w",
			start.Format(time.DateOnly), end.Format(time.DateOnly), ports.ErrInsufficientData)}
	}
	days := make([]time.Time, 0, len(daySet))
	for d := range daySet {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return out, days, nil
}

// step processes one trading day and returns its equity point.
func (r *run) step(ctx context.Context, logger ports.Logger, day time.Time, data []*series) EquityPoint {
	traded := make([]*series, 0, len(data))
	for _, sr := range data {
		if sr.advance(day) {
			r.lastClose[sr.ticker] = decimal.NewFromFloat(sr.bars[sr.cursor-1].Close)
			traded = append(traded, sr)
		}
	}
	preValue := r.value()

	for _, sr := range traded {
		hist := sr.history()
		if len(hist) < r.strategy.RequiredDataPoints() {
			continue
		}
		bar := hist[len(hist)-1]
		mark := r.lastClose[sr.ticker]
		position := r.ledger.PositionSummary(simulatedFundID, sr.ticker, mark)

		sig, err := r.strategy.Analyze(ctx, sr.ticker, hist, position)
		if err != nil {
			if !errors.Is(err, ports.ErrInsufficientData) {
				logger.Warn(ctx, "Strategy evaluation failed", map[string]interface{}{
					"ticker": sr.ticker, "date": day.Format(time.DateOnly), "error": err.Error(),
				})
			}
			continue
		}
		if !strategies.ShouldExecute(r.strategy, sig) {
			continue
		}

		switch sig.Action {
		case domain.ActionBuy:
			r.buy(ctx, logger, sr.ticker, bar.Date, mark, preValue, sig)
		case domain.ActionSell:
			r.sell(ctx, logger, sr.ticker, bar.Date, mark, position.Quantity, sig)
		}
	}

	value := r.value()
	if value.GreaterThan(r.peak) {
		r.peak = value
	}
	pt := EquityPoint{
		Date:      day,
		Value:     value,
		Cash:      r.cash,
		Positions: r.positions(),
	}
	if r.prevValue.IsPositive() {
		pt.DailyReturn = value.Sub(r.prevValue).Div(r.prevValue).InexactFloat64()
	}
	pt.CumulativeReturn = value.Sub(r.initial).Div(r.initial).InexactFloat64()
	if r.peak.IsPositive() {
		pt.Drawdown = r.peak.Sub(value).Div(r.peak).InexactFloat64()
	}
	r.prevValue = value
	return pt
}

func (r *run) buy(ctx context.Context, logger ports.Logger, ticker string, ts time.Time, mark, preValue decimal.Decimal, sig domain.TradeSignal) {
	price := mark.Mul(decimal.NewFromFloat(1 + r.cfg.Slippage)).Round(4)
	target := preValue.Mul(decimal.NewFromFloat(r.cfg.MaxPositionFraction * sig.Confidence))
	if limit := r.cash.Mul(decimal.NewFromFloat(r.cfg.CashUsageCap)); target.GreaterThan(limit) {
		target = limit
	}
	qty := target.Div(price).Floor().IntPart()
	if qty <= 0 {
		return
	}
	cost := price.Mul(decimal.NewFromInt(qty)).Add(r.commission)
	if cost.GreaterThan(r.cash) {
		logger.Debug(ctx, "Buy rejected, insufficient cash", map[string]interface{}{
			"ticker": ticker, "cost": cost.StringFixed(2), "cash": r.cash.StringFixed(2),
		})
		return
	}
	if _, err := r.ledger.OpenLot(simulatedFundID, ticker, qty, price, ts); err != nil {
		logger.Error(ctx, err, "Failed to open lot", map[string]interface{}{"ticker": ticker})
		return
	}
	r.cash = r.cash.Sub(cost)
	r.record(domain.Trade{
		Ticker:      ticker,
		Action:      domain.ActionBuy,
		Quantity:    qty,
		Price:       price,
		Commission:  r.commission,
		RealizedPnL: decimal.Zero,
		ExecutedAt:  ts,
		Confidence:  sig.Confidence,
		Rationale:   sig.Rationale,
	})
}

func (r *run) sell(ctx context.Context, logger ports.Logger, ticker string, ts time.Time, mark decimal.Decimal, held int64, sig domain.TradeSignal) {
	qty := strategies.SellQuantity(held, sig.SuggestedPositionFraction)
	if qty <= 0 {
		return
	}
	price := mark.Mul(decimal.NewFromFloat(1 - r.cfg.Slippage)).Round(4)
	closed, err := r.ledger.CloseFIFO(simulatedFundID, ticker, qty, price, ts)
	if err != nil {
		logger.Error(ctx, err, "Failed to close lots", map[string]interface{}{"ticker": ticker, "quantity": qty})
		return
	}
	r.cash = r.cash.Add(price.Mul(decimal.NewFromInt(qty))).Sub(r.commission)
	r.record(domain.Trade{
		Ticker:      ticker,
		Action:      domain.ActionSell,
		Quantity:    qty,
		Price:       price,
		Commission:  r.commission,
		RealizedPnL: closed.RealizedPnL,
		ReturnPct:   closed.RealizedPnLPct.InexactFloat64(),
		ExecutedAt:  ts,
		Confidence:  sig.Confidence,
		Rationale:   sig.Rationale,
		CloseReason: domain.CloseReasonSignal,
	})
}

func (r *run) record(tr domain.Trade) {
	r.nextTrade++
	tr.ID = fmt.Sprintf("trade-%06d", r.nextTrade)
	tr.FundID = simulatedFundID
	r.trades = append(r.trades, tr)
}

// value is cash plus open quantities at their last known close.
func (r *run) value() decimal.Decimal {
	v := r.cash
	for _, ticker := range r.ledger.Tickers(simulatedFundID) {
		qty := r.ledger.AvailableQuantity(simulatedFundID, ticker)
		v = v.Add(r.lastClose[ticker].Mul(decimal.NewFromInt(qty)))
	}
	return v
}

func (r *run) positions() map[string]int64 {
	out := make(map[string]int64)
	for _, ticker := range r.ledger.Tickers(simulatedFundID) {
		out[ticker] = r.ledger.AvailableQuantity(simulatedFundID, ticker)
	}
	return out
}

func (r *run) finish(res *Result) {
	res.Trades = r.trades
	res.FinalCash = r.cash
	res.FinalPositions = r.positions()
}
