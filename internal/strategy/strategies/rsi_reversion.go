package strategies

import (
	"context"
	"fmt"
	"math"

	"hedgeFundSim/internal/domain"
	"hedgeFundSim/internal/ports"
	"hedgeFundSim/internal/strategy/indicators"
)

// RSIReversionConfig holds configuration for the RSI/Bollinger mean reversion strategy.
type RSIReversionConfig struct {
	Name                string  `yaml:"name,omitempty" json:"name,omitempty"`
	RSIPeriod           int     `yaml:"rsi_period" json:"rsi_period"`
	Oversold            float64 `yaml:"oversold" json:"oversold"`
	Overbought          float64 `yaml:"overbought" json:"overbought"`
	BandPeriod          int     `yaml:"band_period" json:"band_period"`
	BandMultiplier      float64 `yaml:"band_multiplier" json:"band_multiplier"`
	ATRPeriod           int     `yaml:"atr_period" json:"atr_period"`
	ATRStopMultiple     float64 `yaml:"atr_stop_multiple" json:"atr_stop_multiple"`
	MinConfidence       float64 `yaml:"min_confidence" json:"min_confidence"`
	MaxPositionFraction float64 `yaml:"max_position_fraction" json:"max_position_fraction"`
}

// DefaultRSIReversionConfig returns the 14-period RSI with 20/2 bands.
func DefaultRSIReversionConfig() RSIReversionConfig {
	return RSIReversionConfig{
		Name:                "rsi_reversion",
		RSIPeriod:           indicators.DefaultRSIPeriod,
		Oversold:            30,
		Overbought:          70,
		BandPeriod:          20,
		BandMultiplier:      2,
		ATRPeriod:           14,
		ATRStopMultiple:     2,
		MinConfidence:       0.55,
		MaxPositionFraction: 0.20,
	}
}

// RSIReversion buys oversold closes under the lower Bollinger band and sells held positions once
// RSI is overbought or price reaches the upper band.
type RSIReversion struct {
	*BaseStrategy
	config RSIReversionConfig
}

// NewRSIReversion creates a new RSI reversion strategy instance.
func NewRSIReversion(config RSIReversionConfig, logger ports.Logger) (*RSIReversion, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if config.RSIPeriod <= 1 || config.BandPeriod <= 1 || config.ATRPeriod <= 0 {
		return nil, fmt.Errorf("strategy periods must be positive")
	}
	if config.Oversold <= 0 || config.Overbought >= 100 || config.Oversold >= config.Overbought {
		return nil, fmt.Errorf("invalid RSI thresholds (Overbought must be > Oversold, between 0-100)")
	}
	if config.BandMultiplier <= 0 {
		return nil, fmt.Errorf("band multiplier must be positive")
	}
	if err := validateShared(config.MinConfidence, config.MaxPositionFraction); err != nil {
		return nil, err
	}
	if config.Name == "" {
		config.Name = fmt.Sprintf("rsi_reversion_%d", config.RSIPeriod)
	}
	return &RSIReversion{
		BaseStrategy: NewBaseStrategy(config.Name, config.MinConfidence, config.MaxPositionFraction, logger),
		config:       config,
	}, nil
}

// RequiredDataPoints is the longest of the RSI, band and ATR windows.
func (s *RSIReversion) RequiredDataPoints() int {
	n := s.config.RSIPeriod + 1
	if s.config.BandPeriod > n {
		n = s.config.BandPeriod
	}
	if s.config.ATRPeriod+1 > n {
		n = s.config.ATRPeriod + 1
	}
	return n
}

// Analyze evaluates the latest bar of history.
func (s *RSIReversion) Analyze(ctx context.Context, ticker string, history []domain.PriceBar, position domain.Position) (domain.TradeSignal, error) {
	if len(history) < s.RequiredDataPoints() {
		return domain.TradeSignal{}, fmt.Errorf("%s needs %d bars for %s, got %d: %w",
			s.Name(), s.RequiredDataPoints(), ticker, len(history), ports.ErrInsufficientData)
	}

	closes, highs, lows := domain.Closes(history), domain.Highs(history), domain.Lows(history)

	rsiSeries, err := indicators.RSI(closes, s.config.RSIPeriod)
	if err != nil {
		return domain.TradeSignal{}, err
	}
	bands, err := indicators.BollingerBands(closes, s.config.BandPeriod, s.config.BandMultiplier)
	if err != nil {
		return domain.TradeSignal{}, err
	}
	atrSeries, err := indicators.ATR(highs, lows, closes, s.config.ATRPeriod)
	if err != nil {
		return domain.TradeSignal{}, err
	}

	price := indicators.Last(closes)
	rsi := indicators.Last(rsiSeries)
	upper, middle, lower := indicators.Last(bands.Upper), indicators.Last(bands.Middle), indicators.Last(bands.Lower)
	atr := indicators.Last(atrSeries)

	snapshot := map[string]float64{
		"price":    price,
		"rsi":      rsi,
		"bb_upper": upper,
		"bb_mid":   middle,
		"bb_lower": lower,
		"atr":      atr,
	}
	// Confirmation readings; absent when history is too short for them.
	stochK := 50.0
	if k, err := indicators.Stochastic(highs, lows, closes, s.config.RSIPeriod); err == nil {
		stochK = indicators.Last(k)
		snapshot["stoch_k"] = stochK
	}
	if macd, err := indicators.DefaultMACD(closes); err == nil {
		snapshot["macd"] = indicators.Last(macd.Line)
		snapshot["macd_histogram"] = indicators.Last(macd.Histogram)
	}

	var sig domain.TradeSignal
	switch {
	case rsi <= s.config.Oversold && price <= lower:
		c := 0.6 + math.Min((s.config.Oversold-rsi)/100, 0.2)
		if stochK < 20 {
			c += 0.05
		}
		sig = domain.TradeSignal{
			Action:                    domain.ActionBuy,
			Confidence:                clamp(c, 0, 0.9),
			SuggestedPositionFraction: s.MaxPositionFraction(),
			TakeProfit:                middle,
			Rationale:                 fmt.Sprintf("oversold: RSI %.1f at or below %.0f with close under lower band %.4f", rsi, s.config.Oversold, lower),
		}
		if stop := price - s.config.ATRStopMultiple*atr; stop > 0 {
			sig.StopLoss = stop
		}
	case position.Quantity > 0 && (rsi >= s.config.Overbought || price >= upper):
		c := 0.6 + clamp((rsi-s.config.Overbought)/100, 0, 0.2)
		sig = domain.TradeSignal{
			Action:                    domain.ActionSell,
			Confidence:                c,
			SuggestedPositionFraction: 1,
			Rationale:                 fmt.Sprintf("mean reversion exit: RSI %.1f, close %.4f vs upper band %.4f", rsi, price, upper),
		}
	default:
		sig = domain.HoldSignal(fmt.Sprintf("RSI %.1f inside bands", rsi))
	}
	sig.Indicators = snapshot

	s.logger.Debug(ctx, "RSI reversion evaluated", map[string]interface{}{
		"strategy": s.Name(), "ticker": ticker, "action": sig.Action, "rsi": rsi,
	})
	return sig, nil
}
