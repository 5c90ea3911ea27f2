package backtesting

import (
	"time"

	"github.com/shopspring/decimal"

	"hedgeFundSim/internal/domain"
	"hedgeFundSim/internal/strategy/analytics"
	"hedgeFundSim/internal/strategy/indicators"
)

// EquityPoint is the end-of-day state of the simulated fund.
type EquityPoint struct {
	Date             time.Time        `json:"date"`
	Value            decimal.Decimal  `json:"value"`
	Cash             decimal.Decimal  `json:"cash"`
	Positions        map[string]int64 `json:"positions"`
	DailyReturn      float64          `json:"daily_return"`
	CumulativeReturn float64          `json:"cumulative_return"`
	Drawdown         float64          `json:"drawdown"`
}

// Metrics are the performance statistics of a completed run.
type Metrics struct {
	InitialCapital   float64              `json:"initial_capital"`
	FinalValue       float64              `json:"final_value"`
	TotalReturn      float64              `json:"total_return"`
	AnnualizedReturn float64              `json:"annualized_return"`
	Volatility       float64              `json:"volatility"`
	SharpeRatio      float64              `json:"sharpe_ratio"`
	MaxDrawdown      float64              `json:"max_drawdown"`
	CalmarRatio      float64              `json:"calmar_ratio"`
	TradingDays      int                  `json:"trading_days"`
	CalendarDays     float64              `json:"calendar_days"`
	Trades           analytics.TradeStats `json:"trades"`
}

// RiskStats are computed from the equity curve's daily returns at 95% confidence.
type RiskStats struct {
	VaR95             float64 `json:"var_95"`
	ExpectedShortfall float64 `json:"expected_shortfall_95"`
	MaxSingleDayLoss  float64 `json:"max_single_day_loss"`
	DownsideDeviation float64 `json:"downside_deviation"`
}

// BenchmarkStats compares the run with buying and holding one ticker.
type BenchmarkStats struct {
	Ticker           string  `json:"ticker"`
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	Beta             float64 `json:"beta"`
	Alpha            float64 `json:"alpha"`
	Correlation      float64 `json:"correlation"`
}

// Result is a finished (or cancelled) backtest.
type Result struct {
	Config         Config               `json:"config"`
	Strategy       string               `json:"strategy"`
	State          State                `json:"state"`
	EquityCurve    []EquityPoint        `json:"equity_curve"`
	Trades         []domain.Trade       `json:"trades"`
	FinalCash      decimal.Decimal      `json:"final_cash"`
	FinalPositions map[string]int64     `json:"final_positions"`
	Metrics        Metrics              `json:"metrics"`
	Risk           RiskStats            `json:"risk"`
	Benchmark      *BenchmarkStats      `json:"benchmark,omitempty"`
	Drawdowns      []analytics.Drawdown `json:"drawdowns"`
}

// DailyReturns returns the equity curve's daily returns; the first is measured against initial capital.
func (r *Result) DailyReturns() []float64 {
	out := make([]float64, len(r.EquityCurve))
	for i, p := range r.EquityCurve {
		out[i] = p.DailyReturn
	}
	return out
}

func (r *Result) values() ([]time.Time, []float64) {
	dates := make([]time.Time, len(r.EquityCurve))
	values := make([]float64, len(r.EquityCurve))
	for i, p := range r.EquityCurve {
		dates[i] = p.Date
		values[i] = p.Value.InexactFloat64()
	}
	return dates, values
}

// computeMetrics fills Metrics, Risk and Drawdowns from the curve and trade log.
func (r *Result) computeMetrics() {
	cfg := r.Config
	m := Metrics{InitialCapital: cfg.InitialCapital, TradingDays: len(r.EquityCurve)}
	m.Trades = analytics.AnalyzeTrades(r.Trades)
	if len(r.EquityCurve) == 0 {
		r.Metrics = m
		return
	}

	dates, values := r.values()
	last := r.EquityCurve[len(r.EquityCurve)-1]
	m.FinalValue = values[len(values)-1]
	m.TotalReturn = last.CumulativeReturn
	m.CalendarDays = dates[len(dates)-1].Sub(dates[0]).Hours() / 24
	m.AnnualizedReturn = analytics.AnnualizeReturn(m.TotalReturn, m.CalendarDays)

	daily := r.DailyReturns()
	m.Volatility = analytics.AnnualizedVolatility(daily)
	m.SharpeRatio = analytics.SharpeRatio(m.AnnualizedReturn, cfg.RiskFreeRate, m.Volatility)
	for _, p := range r.EquityCurve {
		if p.Drawdown > m.MaxDrawdown {
			m.MaxDrawdown = p.Drawdown
		}
	}
	m.CalmarRatio = analytics.CalmarRatio(m.AnnualizedReturn, m.MaxDrawdown)
	r.Metrics = m

	r.Risk = RiskStats{
		VaR95:             analytics.HistoricalVaR(daily, 0.95),
		ExpectedShortfall: analytics.HistoricalExpectedShortfall(daily, 0.95),
		MaxSingleDayLoss:  analytics.MaxSingleDayLoss(daily),
		DownsideDeviation: analytics.DownsideDeviation(daily),
	}
	r.Drawdowns = analytics.DrawdownPeriods(dates, values)
}

// computeBenchmark compares the curve with the benchmark closes aligned to each trading day.
func (r *Result) computeBenchmark(ticker string, closes []float64) {
	if len(closes) == 0 || len(closes) != len(r.EquityCurve) || closes[0] <= 0 {
		return
	}
	b := &BenchmarkStats{Ticker: ticker}
	b.TotalReturn = closes[len(closes)-1]/closes[0] - 1
	b.AnnualizedReturn = analytics.AnnualizeReturn(b.TotalReturn, r.Metrics.CalendarDays)

	benchReturns := analytics.SimpleReturns(closes)
	_, values := r.values()
	portReturns := analytics.SimpleReturns(values)

	b.Volatility = analytics.AnnualizedVolatility(benchReturns)
	b.SharpeRatio = analytics.SharpeRatio(b.AnnualizedReturn, r.Config.RiskFreeRate, b.Volatility)
	b.Beta = analytics.Beta(portReturns, benchReturns)
	b.Alpha = analytics.Alpha(r.Metrics.AnnualizedReturn, b.AnnualizedReturn, b.Beta, r.Config.RiskFreeRate)
	if len(benchReturns) >= 2 {
		if c, err := indicators.Correlation(portReturns, benchReturns, len(benchReturns)); err == nil {
			b.Correlation = c
		}
	}
	r.Benchmark = b
}
