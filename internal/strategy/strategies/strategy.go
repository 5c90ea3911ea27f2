// Package strategies holds the trading strategy variants. Each variant implements ports.Strategy
// and keeps no state between evaluations.
package strategies

import (
	"fmt"
	"math"
	"strings"

	"hedgeFundSim/internal/domain"
	"hedgeFundSim/internal/ports"
)

// Strategy type identifiers accepted by New.
const (
	TypeMACrossover  = "ma_crossover"
	TypeRSIReversion = "rsi_reversion"
)

// BaseStrategy carries the settings every variant shares.
type BaseStrategy struct {
	name                string
	logger              ports.Logger
	minConfidence       float64
	maxPositionFraction float64
}

// NewBaseStrategy creates a new base strategy instance.
func NewBaseStrategy(name string, minConfidence, maxPositionFraction float64, logger ports.Logger) *BaseStrategy {
	return &BaseStrategy{
		name:                name,
		logger:              logger,
		minConfidence:       minConfidence,
		maxPositionFraction: maxPositionFraction,
	}
}

// Name returns the name of the strategy.
func (b *BaseStrategy) Name() string { return b.name }

// MinConfidence returns the execution floor.
func (b *BaseStrategy) MinConfidence() float64 { return b.minConfidence }

// MaxPositionFraction returns the per-buy capital cap.
func (b *BaseStrategy) MaxPositionFraction() float64 { return b.maxPositionFraction }

func validateShared(minConfidence, maxPositionFraction float64) error {
	if minConfidence < 0 || minConfidence > 1 {
		return fmt.Errorf("min confidence must be within [0,1], got %f", minConfidence)
	}
	if maxPositionFraction <= 0 || maxPositionFraction > 1 {
		return fmt.Errorf("max position fraction must be within (0,1], got %f", maxPositionFraction)
	}
	return nil
}

// ShouldExecute reports whether a signal clears its strategy's gate: not HOLD and confidence at or
// above the strategy's minimum.
func ShouldExecute(s ports.Strategy, sig domain.TradeSignal) bool {
	return sig.Action != domain.ActionHold && sig.Confidence >= s.MinConfidence()
}

// Config selects and parameterizes a strategy variant. For MA crossover either Preset or an
// explicit MACrossover block is used; an explicit block wins.
type Config struct {
	Type         string              `yaml:"type" json:"type"`
	Name         string              `yaml:"name,omitempty" json:"name,omitempty"`
	Preset       string              `yaml:"preset,omitempty" json:"preset,omitempty"`
	MACrossover  *MACrossoverConfig  `yaml:"ma_crossover,omitempty" json:"ma_crossover,omitempty"`
	RSIReversion *RSIReversionConfig `yaml:"rsi_reversion,omitempty" json:"rsi_reversion,omitempty"`
}

// New builds the strategy described by cfg.
func New(cfg Config, logger ports.Logger) (ports.Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case TypeMACrossover, "":
		var mc MACrossoverConfig
		switch {
		case cfg.MACrossover != nil:
			mc = *cfg.MACrossover
		case cfg.Preset != "":
			p, err := PresetConfig(cfg.Preset)
			if err != nil {
				return nil, err
			}
			mc = p
		default:
			mc = StandardConfig()
		}
		if cfg.Name != "" {
			mc.Name = cfg.Name
		}
		return NewMACrossover(mc, logger)
	case TypeRSIReversion:
		rc := DefaultRSIReversionConfig()
		if cfg.RSIReversion != nil {
			rc = *cfg.RSIReversion
		}
		if cfg.Name != "" {
			rc.Name = cfg.Name
		}
		return NewRSIReversion(rc, logger)
	default:
		return nil, fmt.Errorf("unknown strategy type %q: %w", cfg.Type, ports.ErrInvalidRequest)
	}
}

// SellQuantity is the share count for selling fraction of held; a zero fraction sells everything
// and any holding sells at least one share.
func SellQuantity(held int64, fraction float64) int64 {
	if held <= 0 {
		return 0
	}
	if fraction <= 0 || fraction >= 1 {
		return held
	}
	qty := int64(math.Floor(float64(held) * fraction))
	if qty < 1 {
		qty = 1
	}
	return qty
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
