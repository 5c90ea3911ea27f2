// Package risk sizes positions, validates trades against portfolio limits and reports fund risk.
package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"hedgeFundSim/internal/domain"
	"hedgeFundSim/internal/ports"
	"hedgeFundSim/internal/strategy/analytics"
)

// Config holds configuration for risk management.
// AverageWin is the Kelly payoff assumption; it is a heuristic, not estimated from data.
type Config struct {
	Limits           Limits  `yaml:"limits" json:"limits"`
	RiskFreeRate     float64 `yaml:"risk_free_rate" json:"risk_free_rate"`
	AverageWin       float64 `yaml:"average_win" json:"average_win"`
	MaxKellyFraction float64 `yaml:"max_kelly_fraction" json:"max_kelly_fraction"`
	VolatilityWindow int     `yaml:"volatility_window" json:"volatility_window"`
	VaRConfidence    float64 `yaml:"var_confidence" json:"var_confidence"`
}

// DefaultConfig returns the default limits with a 2% risk-free rate, a 10% Kelly average win,
// a 25% Kelly cap, a 30-day volatility window and 95% VaR.
func DefaultConfig() Config {
	return Config{
		Limits:           DefaultLimits(),
		RiskFreeRate:     analytics.DefaultRiskFreeRate,
		AverageWin:       0.10,
		MaxKellyFraction: 0.25,
		VolatilityWindow: 30,
		VaRConfidence:    0.95,
	}
}

// Manager implements risk management over injected fund and price providers.
type Manager struct {
	cfg    Config
	funds  ports.FundProvider
	prices ports.PriceHistoryProvider
	logger ports.Logger
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the as-of time used for price lookups.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a new risk manager instance.
func NewManager(cfg Config, funds ports.FundProvider, prices ports.PriceHistoryProvider, logger ports.Logger, opts ...Option) (*Manager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for risk manager")
	}
	if funds == nil || prices == nil {
		return nil, fmt.Errorf("fund and price providers are required for risk manager")
	}
	if err := cfg.Limits.Validate(); err != nil {
		return nil, err
	}
	if cfg.AverageWin <= 0 {
		return nil, fmt.Errorf("kelly average win must be positive")
	}
	if cfg.MaxKellyFraction <= 0 {
		cfg.MaxKellyFraction = 0.25
	}
	if cfg.VolatilityWindow < 2 {
		cfg.VolatilityWindow = 30
	}
	if cfg.VaRConfidence <= 0 || cfg.VaRConfidence >= 1 {
		cfg.VaRConfidence = 0.95
	}

	m := &Manager{cfg: cfg, funds: funds, prices: prices, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Limits returns the configured limits.
func (m *Manager) Limits() Limits {
	return m.cfg.Limits
}

// KellyFraction sizes a bet from signal confidence and volatility:
// p=(c+1)/2, kelly=(p·avgWin − (1−p)·volatility)/avgWin, clamped to [0, MaxKellyFraction].
func (m *Manager) KellyFraction(confidence, volatility float64) float64 {
	winP := (confidence + 1) / 2
	lossP := 1 - winP
	k := (winP*m.cfg.AverageWin - lossP*volatility) / m.cfg.AverageWin
	return math.Max(0, math.Min(k, m.cfg.MaxKellyFraction))
}

// PositionSize returns whole shares to buy. SELL and HOLD size to zero.
// The dollar amount is min(fund·kelly·confidence, fund·max position, cash·(1−reserve)).
func (m *Manager) PositionSize(confidence float64, action domain.Action, volatility, fundValue, availableCash, price float64) int64 {
	if action != domain.ActionBuy || price <= 0 || fundValue <= 0 {
		return 0
	}
	base := fundValue * m.KellyFraction(confidence, volatility) * confidence
	value := math.Min(base, fundValue*m.cfg.Limits.MaxPositionFraction)
	value = math.Min(value, availableCash*(1-m.cfg.Limits.MinCashReserveFraction))
	if value <= 0 {
		return 0
	}
	return int64(math.Floor(value / price))
}

// PositionRisk is one holding inside Metrics.
type PositionRisk struct {
	Ticker      string  `json:"ticker"`
	Quantity    int64   `json:"quantity"`
	Price       float64 `json:"price"`
	PriceSource string  `json:"price_source"` // "market" or "entry" when no bar is known
	MarketValue float64 `json:"market_value"`
	Weight      float64 `json:"weight"`
	Volatility  float64 `json:"volatility"`
}

// Metrics is a fund's mark-to-market risk report.
type Metrics struct {
	FundID            string         `json:"fund_id"`
	AsOf              time.Time      `json:"as_of"`
	Cash              float64        `json:"cash"`
	Exposure          float64        `json:"exposure"`
	TotalValue        float64        `json:"total_value"`
	TotalReturn       float64        `json:"total_return"`
	Leverage          float64        `json:"leverage"`
	Positions         []PositionRisk `json:"positions"`
	Volatility        float64        `json:"volatility"`
	DailyVolatility   float64        `json:"daily_volatility"`
	AnnualizedReturn  float64        `json:"annualized_return"`
	SharpeRatio       float64        `json:"sharpe_ratio"`
	MaxDrawdown       float64        `json:"max_drawdown"`
	// VaR is a one-day parametric value at risk: TotalValue * DailyVolatility * z(VaRConfidence).
	// It scales by the daily volatility (Volatility / sqrt(252)), not the annualized figure, so it
	// reads as the loss not exceeded over a single trading day.
	VaR               float64        `json:"var"`
	ExpectedShortfall float64        `json:"expected_shortfall"`
	VaRConfidence     float64        `json:"var_confidence"`
}

// Weight returns the weight of ticker in the fund, zero if not held.
func (mt *Metrics) Weight(ticker string) float64 {
	for _, p := range mt.Positions {
		if p.Ticker == ticker {
			return p.Weight
		}
	}
	return 0
}

// RiskMetrics marks the fund to market and computes its risk statistics.
func (m *Manager) RiskMetrics(ctx context.Context, fundID string) (*Metrics, error) {
	fund, err := m.funds.Fund(ctx, fundID)
	if err != nil {
		return nil, fmt.Errorf("risk metrics for fund %s: %w", fundID, err)
	}
	return m.metricsFor(ctx, fund)
}

type holding struct {
	risk    PositionRisk
	returns []float64
	sector  string
}

func (m *Manager) holdings(ctx context.Context, fund *domain.Fund) ([]holding, error) {
	asOf := m.now()
	var out []holding
	for _, ticker := range fund.OpenTickers() {
		pos := domain.SummarizePosition(ticker, fund.Lots, decimal.Zero)
		h := holding{
			risk: PositionRisk{
				Ticker:      ticker,
				Quantity:    pos.Quantity,
				Price:       pos.AvgEntryPrice.InexactFloat64(),
				PriceSource: "entry",
			},
			sector: fund.SectorOf(ticker),
		}

		bars, err := m.prices.PriceHistory(ctx, ticker, asOf, m.cfg.VolatilityWindow+1)
		switch {
		case errors.Is(err, ports.ErrTickerNotFound):
			m.logger.Warn(ctx, "No price history, valuing at entry price", map[string]interface{}{"ticker": ticker, "fundID": fund.ID})
		case err != nil:
			return nil, fmt.Errorf("price history for %s: %w", ticker, err)
		case len(bars) > 0:
			closes := domain.Closes(bars)
			h.risk.Price = closes[len(closes)-1]
			h.risk.PriceSource = "market"
			h.returns = analytics.SimpleReturns(closes)
			h.risk.Volatility = analytics.AnnualizedVolatility(h.returns)
		}
		h.risk.MarketValue = float64(h.risk.Quantity) * h.risk.Price
		out = append(out, h)
	}
	return out, nil
}

func (m *Manager) metricsFor(ctx context.Context, fund *domain.Fund) (*Metrics, error) {
	hs, err := m.holdings(ctx, fund)
	if err != nil {
		return nil, err
	}

	mt := &Metrics{
		FundID:        fund.ID,
		AsOf:          m.now(),
		Cash:          fund.Cash.InexactFloat64(),
		VaRConfidence: m.cfg.VaRConfidence,
		Positions:     make([]PositionRisk, 0, len(hs)),
	}
	for _, h := range hs {
		mt.Exposure += math.Abs(h.risk.MarketValue)
	}
	mt.TotalValue = mt.Cash + mt.Exposure
	if initial := fund.InitialCapital.InexactFloat64(); initial > 0 {
		mt.TotalReturn = (mt.TotalValue - initial) / initial
	}
	if mt.TotalValue > 0 {
		mt.Leverage = mt.Exposure / mt.TotalValue
	}

	weights := make([]float64, len(hs))
	for i := range hs {
		if mt.TotalValue > 0 {
			weights[i] = hs[i].risk.MarketValue / mt.TotalValue
		}
		hs[i].risk.Weight = weights[i]
		mt.Volatility += weights[i] * hs[i].risk.Volatility
		mt.Positions = append(mt.Positions, hs[i].risk)
	}
	mt.DailyVolatility = mt.Volatility / math.Sqrt(analytics.TradingDaysPerYear)

	portfolioReturns := blendReturns(hs, weights)
	mt.AnnualizedReturn = analytics.Mean(portfolioReturns) * analytics.TradingDaysPerYear
	mt.SharpeRatio = analytics.SharpeRatio(mt.AnnualizedReturn, m.cfg.RiskFreeRate, mt.Volatility)
	mt.MaxDrawdown = analytics.MaxDrawdown(compound(portfolioReturns))

	mt.VaR = mt.TotalValue * mt.DailyVolatility * analytics.ZScore(m.cfg.VaRConfidence)
	mt.ExpectedShortfall = analytics.ExpectedShortfallMultiplier * mt.VaR
	return mt, nil
}

// blendReturns weights each holding's daily returns over the common trailing window.
func blendReturns(hs []holding, weights []float64) []float64 {
	n := -1
	for _, h := range hs {
		if len(h.returns) == 0 {
			continue
		}
		if n < 0 || len(h.returns) < n {
			n = len(h.returns)
		}
	}
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	for i, h := range hs {
		if len(h.returns) == 0 {
			continue
		}
		tail := h.returns[len(h.returns)-n:]
		for j, r := range tail {
			out[j] += weights[i] * r
		}
	}
	return out
}

// compound turns returns into a value path starting at 1.
func compound(returns []float64) []float64 {
	path := make([]float64, 0, len(returns)+1)
	v := 1.0
	path = append(path, v)
	for _, r := range returns {
		v *= 1 + r
		path = append(path, v)
	}
	return path
}

// Violation is one broken limit. Violations are data, never errors.
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Violation codes.
const (
	ViolationInvalidTrade   = "invalid_trade"
	ViolationPositionSize   = "max_position"
	ViolationCashReserve    = "cash_reserve"
	ViolationLeverage       = "max_leverage"
	ViolationSectorExposure = "sector_exposure"
)

// TradeValidation is the outcome of ValidateTrade.
type TradeValidation struct {
	IsValid    bool        `json:"is_valid"`
	Violations []Violation `json:"violations"`
	Metrics    *Metrics    `json:"metrics"`
}

func (v *TradeValidation) add(code, msg string) {
	v.Violations = append(v.Violations, Violation{Code: code, Message: msg})
}

// Messages returns the violation messages.
func (v *TradeValidation) Messages() []string {
	out := make([]string, len(v.Violations))
	for i, vi := range v.Violations {
		out[i] = vi.Message
	}
	return out
}

// ValidateTrade checks a proposed trade of quantity shares (positive buys, negative sells) at
// price. It only returns an error when the fund or its prices cannot be looked up.
func (m *Manager) ValidateTrade(ctx context.Context, fundID, ticker string, quantity int64, price float64) (*TradeValidation, error) {
	fund, err := m.funds.Fund(ctx, fundID)
	if err != nil {
		return nil, fmt.Errorf("validate trade for fund %s: %w", fundID, err)
	}
	mt, err := m.metricsFor(ctx, fund)
	if err != nil {
		return nil, err
	}

	v := &TradeValidation{Metrics: mt, Violations: []Violation{}}
	lim := m.cfg.Limits
	tradeValue := math.Abs(float64(quantity) * price)

	switch {
	case quantity == 0 || price <= 0:
		v.add(ViolationInvalidTrade, fmt.Sprintf("trade of %d %s at %.4f is not executable", quantity, ticker, price))
	case mt.TotalValue <= 0:
		v.add(ViolationInvalidTrade, fmt.Sprintf("fund %s has no value to trade against", fundID))
	default:
		if frac := tradeValue / mt.TotalValue; frac > lim.MaxPositionFraction {
			v.add(ViolationPositionSize, fmt.Sprintf("trade value %.2f is %.1f%% of fund, limit %.1f%%",
				tradeValue, frac*100, lim.MaxPositionFraction*100))
		}
		if quantity > 0 {
			if usable := mt.Cash * (1 - lim.MinCashReserveFraction); tradeValue > usable {
				v.add(ViolationCashReserve, fmt.Sprintf("trade value %.2f exceeds usable cash %.2f after %.1f%% reserve",
					tradeValue, usable, lim.MinCashReserveFraction*100))
			}
		}
		if lev := (mt.Exposure + tradeValue) / mt.TotalValue; lev > lim.MaxLeverage {
			v.add(ViolationLeverage, fmt.Sprintf("leverage would be %.2f, limit %.2f", lev, lim.MaxLeverage))
		}
		if sector := fund.SectorOf(ticker); sector != "" && quantity > 0 {
			var sectorValue float64
			for _, p := range mt.Positions {
				if fund.SectorOf(p.Ticker) == sector {
					sectorValue += p.MarketValue
				}
			}
			if frac := (sectorValue + tradeValue) / mt.TotalValue; frac > lim.MaxSectorExposure {
				v.add(ViolationSectorExposure, fmt.Sprintf("%s exposure would be %.1f%%, limit %.1f%%",
					sector, frac*100, lim.MaxSectorExposure*100))
			}
		}
	}

	v.IsValid = len(v.Violations) == 0
	if !v.IsValid {
		m.logger.Info(ctx, "Trade failed risk validation", map[string]interface{}{
			"fundID": fundID, "ticker": ticker, "quantity": quantity, "violations": len(v.Violations),
		})
	}
	return v, nil
}

// StopLossCandidate is an open position trading below its stop.
type StopLossCandidate struct {
	Ticker         string  `json:"ticker"`
	Quantity       int64   `json:"quantity"`
	EntryPrice     float64 `json:"entry_price"`
	CurrentPrice   float64 `json:"current_price"`
	StopPrice      float64 `json:"stop_price"`
	UnrealizedLoss float64 `json:"unrealized_loss"`
}

// StopLossCandidates lists open positions whose price fell more than the stop loss fraction
// below their average entry price.
func (m *Manager) StopLossCandidates(ctx context.Context, fundID string) ([]StopLossCandidate, error) {
	fund, err := m.funds.Fund(ctx, fundID)
	if err != nil {
		return nil, fmt.Errorf("stop loss scan for fund %s: %w", fundID, err)
	}
	hs, err := m.holdings(ctx, fund)
	if err != nil {
		return nil, err
	}

	slf := m.cfg.Limits.StopLossFraction
	candidates := make([]StopLossCandidate, 0)
	for _, h := range hs {
		entry := domain.SummarizePosition(h.risk.Ticker, fund.Lots, decimal.Zero).AvgEntryPrice.InexactFloat64()
		if entry <= 0 {
			continue
		}
		if (h.risk.Price-entry)/entry < -slf {
			candidates = append(candidates, StopLossCandidate{
				Ticker:         h.risk.Ticker,
				Quantity:       h.risk.Quantity,
				EntryPrice:     entry,
				CurrentPrice:   h.risk.Price,
				StopPrice:      entry * (1 - slf),
				UnrealizedLoss: (h.risk.Price - entry) * float64(h.risk.Quantity),
			})
		}
	}
	return candidates, nil
}
