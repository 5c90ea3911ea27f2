package risk

import (
	"fmt"
	"strings"
)

// Limits are the portfolio constraints a trade is validated against.
type Limits struct {
	MaxPositionFraction    float64 `yaml:"max_position_fraction" json:"max_position_fraction"`
	MaxLeverage            float64 `yaml:"max_leverage" json:"max_leverage"`
	StopLossFraction       float64 `yaml:"stop_loss_fraction" json:"stop_loss_fraction"`
	MinCashReserveFraction float64 `yaml:"min_cash_reserve_fraction" json:"min_cash_reserve_fraction"`
	MaxSectorExposure      float64 `yaml:"max_sector_exposure" json:"max_sector_exposure"`
}

// DefaultLimits returns the fund-independent defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxPositionFraction:    0.10,
		MaxLeverage:            2.0,
		StopLossFraction:       0.05,
		MinCashReserveFraction: 0.05,
		MaxSectorExposure:      0.30,
	}
}

// Validate checks every limit is within its meaningful range.
func (l Limits) Validate() error {
	var errs []string
	if l.MaxPositionFraction <= 0 || l.MaxPositionFraction > 1 {
		errs = append(errs, "max position fraction must be within (0,1]")
	}
	if l.MaxLeverage <= 0 {
		errs = append(errs, "max leverage must be positive")
	}
	if l.StopLossFraction <= 0 || l.StopLossFraction >= 1 {
		errs = append(errs, "stop loss fraction must be within (0,1)")
	}
	if l.MinCashReserveFraction < 0 || l.MinCashReserveFraction >= 1 {
		errs = append(errs, "min cash reserve fraction must be within [0,1)")
	}
	if l.MaxSectorExposure <= 0 || l.MaxSectorExposure > 1 {
		errs = append(errs, "max sector exposure must be within (0,1]")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid risk limits: %s", strings.Join(errs, "; "))
	}
	return nil
}
