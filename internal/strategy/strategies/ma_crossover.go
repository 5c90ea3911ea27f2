package strategies

import (
	"context"
	"fmt"
	"math"

	"hedgeFundSim/internal/domain"
	"hedgeFundSim/internal/ports"
	"hedgeFundSim/internal/strategy/indicators"
)

const (
	// MinFastPeriod and MinSlowPeriod bound the MA windows from below.
	MinFastPeriod = 2
	MinSlowPeriod = 3

	baseConfidence       = 0.6
	maxCrossConfidence   = 0.8
	partialBuyScale      = 0.7
	halfSellScale        = 0.6
	defaultTrendStrength = 0.02
	defaultVolumeWindow  = 20
	stopLossFraction     = 0.05
	takeProfitFraction   = 0.10
)

// MACrossoverConfig holds configuration for the moving average crossover strategy.
// MinVolume forces HOLD when the latest bar trades fewer shares (0 disables it). VolumeLookback is
// the window averaged for the volume ratio, TrendThreshold the trend strength needed for partial
// entries and exits, and CrossoverLookback how many steps back a cross still counts.
type MACrossoverConfig struct {
	Name                string  `yaml:"name,omitempty" json:"name,omitempty"`
	FastPeriod          int     `yaml:"fast_period" json:"fast_period"`
	SlowPeriod          int     `yaml:"slow_period" json:"slow_period"`
	MinConfidence       float64 `yaml:"min_confidence" json:"min_confidence"`
	MaxPositionFraction float64 `yaml:"max_position_fraction" json:"max_position_fraction"`
	MinVolume           int64   `yaml:"min_volume,omitempty" json:"min_volume,omitempty"`
	VolumeLookback      int     `yaml:"volume_lookback,omitempty" json:"volume_lookback,omitempty"`
	TrendThreshold      float64 `yaml:"trend_threshold,omitempty" json:"trend_threshold,omitempty"`
	CrossoverLookback   int     `yaml:"crossover_lookback,omitempty" json:"crossover_lookback,omitempty"`
}

// Preset names.
const (
	PresetConservative = "conservative"
	PresetStandard     = "standard"
	PresetAggressive   = "aggressive"
)

// ConservativeConfig is the slow 50/200 preset.
func ConservativeConfig() MACrossoverConfig {
	return MACrossoverConfig{Name: "ma_crossover_conservative", FastPeriod: 50, SlowPeriod: 200, MinConfidence: 0.7, MaxPositionFraction: 0.15}
}

// StandardConfig is the 20/50 preset.
func StandardConfig() MACrossoverConfig {
	return MACrossoverConfig{Name: "ma_crossover_standard", FastPeriod: 20, SlowPeriod: 50, MinConfidence: 0.6, MaxPositionFraction: 0.30}
}

// AggressiveConfig is the fast 10/30 preset.
func AggressiveConfig() MACrossoverConfig {
	return MACrossoverConfig{Name: "ma_crossover_aggressive", FastPeriod: 10, SlowPeriod: 30, MinConfidence: 0.5, MaxPositionFraction: 0.50}
}

// PresetConfig resolves a preset name.
func PresetConfig(name string) (MACrossoverConfig, error) {
	switch name {
	case PresetConservative:
		return ConservativeConfig(), nil
	case PresetStandard:
		return StandardConfig(), nil
	case PresetAggressive:
		return AggressiveConfig(), nil
	default:
		return MACrossoverConfig{}, fmt.Errorf("unknown MA crossover preset %q: %w", name, ports.ErrInvalidRequest)
	}
}

// Preset builds the MA crossover strategy for a preset name.
func Preset(name string, logger ports.Logger) (*MACrossover, error) {
	cfg, err := PresetConfig(name)
	if err != nil {
		return nil, err
	}
	return NewMACrossover(cfg, logger)
}

// Presets lists the preset names in ascending aggressiveness.
func Presets() []string {
	return []string{PresetConservative, PresetStandard, PresetAggressive}
}

// MACrossover trades crossings of a fast and a slow simple moving average.
type MACrossover struct {
	*BaseStrategy
	config MACrossoverConfig
}

// NewMACrossover creates a new MA crossover strategy instance.
func NewMACrossover(config MACrossoverConfig, logger ports.Logger) (*MACrossover, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if config.FastPeriod < MinFastPeriod || config.SlowPeriod < MinSlowPeriod {
		return nil, fmt.Errorf("MA periods must be at least %d/%d, got %d/%d",
			MinFastPeriod, MinSlowPeriod, config.FastPeriod, config.SlowPeriod)
	}
	if config.FastPeriod >= config.SlowPeriod {
		return nil, fmt.Errorf("fast MA period must be less than slow MA period")
	}
	if err := validateShared(config.MinConfidence, config.MaxPositionFraction); err != nil {
		return nil, err
	}
	if config.MinVolume < 0 {
		return nil, fmt.Errorf("min volume cannot be negative")
	}

	if config.VolumeLookback <= 0 {
		config.VolumeLookback = defaultVolumeWindow
	}
	if config.TrendThreshold <= 0 {
		config.TrendThreshold = defaultTrendStrength
	}
	if config.CrossoverLookback <= 0 {
		config.CrossoverLookback = 1
	}
	if config.Name == "" {
		config.Name = fmt.Sprintf("ma_crossover_%d_%d", config.FastPeriod, config.SlowPeriod)
	}

	return &MACrossover{
		BaseStrategy: NewBaseStrategy(config.Name, config.MinConfidence, config.MaxPositionFraction, logger),
		config:       config,
	}, nil
}

// Config returns the effective configuration after defaults.
func (s *MACrossover) Config() MACrossoverConfig {
	return s.config
}

// RequiredDataPoints is the slow window plus the bars needed to detect a cross.
func (s *MACrossover) RequiredDataPoints() int {
	return s.config.SlowPeriod + s.config.CrossoverLookback
}

// Analyze applies the crossover decision table to the latest bar of history.
func (s *MACrossover) Analyze(ctx context.Context, ticker string, history []domain.PriceBar, position domain.Position) (domain.TradeSignal, error) {
	if len(history) < s.RequiredDataPoints() {
		return domain.TradeSignal{}, fmt.Errorf("%s needs %d bars for %s, got %d: %w",
			s.Name(), s.RequiredDataPoints(), ticker, len(history), ports.ErrInsufficientData)
	}

	closes := domain.Closes(history)
	fast, err := indicators.SMA(closes, s.config.FastPeriod)
	if err != nil {
		return domain.TradeSignal{}, err
	}
	slow, err := indicators.SMA(closes, s.config.SlowPeriod)
	if err != nil {
		return domain.TradeSignal{}, err
	}

	price := indicators.Last(closes)
	fastMA, slowMA := indicators.Last(fast), indicators.Last(slow)
	cross := indicators.Crossover(fast, slow, s.config.CrossoverLookback)
	trendStrength := math.Abs(fastMA-slowMA) / price
	volumeRatio := s.volumeRatio(history)

	snapshot := map[string]float64{
		"price":          price,
		"fast_ma":        fastMA,
		"slow_ma":        slowMA,
		"trend_strength": trendStrength,
		"volume_ratio":   volumeRatio,
	}

	last := history[len(history)-1]
	if s.config.MinVolume > 0 && last.Volume < s.config.MinVolume {
		sig := domain.HoldSignal(fmt.Sprintf("volume %d below minimum %d", last.Volume, s.config.MinVolume))
		sig.Indicators = snapshot
		return sig, nil
	}

	confidence := s.confidence(trendStrength, volumeRatio)
	held := position.Quantity > 0

	var sig domain.TradeSignal
	switch {
	case cross.Bullish:
		sig = domain.TradeSignal{
			Action:                    domain.ActionBuy,
			Confidence:                confidence,
			SuggestedPositionFraction: s.MaxPositionFraction(),
			StopLoss:                  price * (1 - stopLossFraction),
			TakeProfit:                price * (1 + takeProfitFraction),
			Rationale:                 fmt.Sprintf("bullish crossover: fast MA %.4f crossed above slow MA %.4f", fastMA, slowMA),
		}
	case cross.Bearish && held:
		sig = domain.TradeSignal{
			Action:                    domain.ActionSell,
			Confidence:                confidence,
			SuggestedPositionFraction: 1,
			Rationale:                 fmt.Sprintf("bearish crossover: fast MA %.4f crossed below slow MA %.4f", fastMA, slowMA),
		}
	case fastMA > slowMA && !held && trendStrength > s.config.TrendThreshold:
		sig = domain.TradeSignal{
			Action:                    domain.ActionBuy,
			Confidence:                confidence * partialBuyScale,
			SuggestedPositionFraction: s.MaxPositionFraction() / 2,
			StopLoss:                  price * (1 - stopLossFraction),
			TakeProfit:                price * (1 + takeProfitFraction),
			Rationale:                 fmt.Sprintf("established uptrend, strength %.2f%%: partial entry", trendStrength*100),
		}
	case fastMA < slowMA && held && trendStrength > s.config.TrendThreshold:
		sig = domain.TradeSignal{
			Action:                    domain.ActionSell,
			Confidence:                confidence * halfSellScale,
			SuggestedPositionFraction: 0.5,
			Rationale:                 fmt.Sprintf("established downtrend, strength %.2f%%: reduce position by half", trendStrength*100),
		}
	default:
		sig = domain.HoldSignal("no crossover or qualifying trend")
	}
	sig.Indicators = snapshot

	s.logger.Debug(ctx, "MA crossover evaluated", map[string]interface{}{
		"strategy":   s.Name(),
		"ticker":     ticker,
		"action":     sig.Action,
		"confidence": sig.Confidence,
		"fastMA":     fastMA,
		"slowMA":     slowMA,
	})
	return sig, nil
}

// confidence starts at the 0.6 base and adds up to 0.1 for trend strength and up to 0.1 for
// above-average volume, capped at 0.8.
func (s *MACrossover) confidence(trendStrength, volumeRatio float64) float64 {
	c := baseConfidence
	c += math.Min(trendStrength*10, 0.1)
	c += clamp((volumeRatio-1)*0.1, 0, 0.1)
	return math.Min(c, maxCrossConfidence)
}

// volumeRatio compares the latest volume with the average of the trailing window including it.
// It is 1 when no volume is reported.
func (s *MACrossover) volumeRatio(history []domain.PriceBar) float64 {
	n := s.config.VolumeLookback
	if n > len(history) {
		n = len(history)
	}
	window := history[len(history)-n:]
	var sum float64
	for _, b := range window {
		sum += float64(b.Volume)
	}
	if sum == 0 {
		return 1
	}
	avg := sum / float64(n)
	return float64(window[n-1].Volume) / avg
}
