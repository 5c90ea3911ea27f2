package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"hedgeFundSim/internal/adapters/logger"
	"hedgeFundSim/internal/risk"
	"hedgeFundSim/internal/strategy/strategies"
)

// Config holds all application configuration.
type Config struct {
	// Storage
	DBPath string

	// Logging
	LogLevel  logger.LogLevel
	LogFormat logger.Format

	// Fund and universe
	FundID  string   // default fund for commands that take one
	Tickers []string // universe analysed by a fund pass

	// Risk
	Risk risk.Config

	// Strategies registered with the engine, by MA crossover preset name
	StrategyPresets []string
	ExecuteTrades   bool // false analyses without trading

	// Paper execution
	Slippage   float64
	Commission float64
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Storage
	cfg.DBPath = getEnv("DB_PATH", "./data/fundsim.db")

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = logger.ParseFormat(getEnv("LOG_FORMAT", "text"))

	// Fund and universe
	cfg.FundID = getEnv("FUND_ID", "")
	cfg.Tickers = getEnvAsList("TICKERS", nil)

	// Risk
	def := risk.DefaultConfig()
	cfg.Risk = def
	floats := []struct {
		key string
		dst *float64
		def float64
	}{
		{"RISK_MAX_POSITION_FRACTION", &cfg.Risk.Limits.MaxPositionFraction, def.Limits.MaxPositionFraction},
		{"RISK_MAX_LEVERAGE", &cfg.Risk.Limits.MaxLeverage, def.Limits.MaxLeverage},
		{"RISK_STOP_LOSS", &cfg.Risk.Limits.StopLossFraction, def.Limits.StopLossFraction},
		{"RISK_MIN_CASH_RESERVE", &cfg.Risk.Limits.MinCashReserveFraction, def.Limits.MinCashReserveFraction},
		{"RISK_MAX_SECTOR_EXPOSURE", &cfg.Risk.Limits.MaxSectorExposure, def.Limits.MaxSectorExposure},
		{"KELLY_AVERAGE_WIN", &cfg.Risk.AverageWin, def.AverageWin},
		{"RISK_FREE_RATE", &cfg.Risk.RiskFreeRate, def.RiskFreeRate},
		{"PAPER_SLIPPAGE", &cfg.Slippage, 0.001},
		{"PAPER_COMMISSION", &cfg.Commission, 0},
	}
	for _, f := range floats {
		*f.dst, err = getEnvAsFloatRequired(f.key, f.def)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", f.key, err))
		}
	}
	if err := cfg.Risk.Limits.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.Risk.AverageWin <= 0 {
		errs = append(errs, "KELLY_AVERAGE_WIN must be positive")
	}
	if cfg.Slippage < 0 || cfg.Slippage >= 1 {
		errs = append(errs, "PAPER_SLIPPAGE must be within [0,1)")
	}
	if cfg.Commission < 0 {
		errs = append(errs, "PAPER_COMMISSION cannot be negative")
	}

	cfg.Risk.VolatilityWindow, err = getEnvAsIntRequired("RISK_VOLATILITY_WINDOW", def.VolatilityWindow)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RISK_VOLATILITY_WINDOW: %v", err))
	} else if cfg.Risk.VolatilityWindow < 2 {
		errs = append(errs, "RISK_VOLATILITY_WINDOW must be at least 2")
	}

	// Strategies
	cfg.StrategyPresets = getEnvAsList("STRATEGY_PRESETS", strategies.Presets())
	if len(cfg.StrategyPresets) == 0 {
		errs = append(errs, "STRATEGY_PRESETS must name at least one preset")
	}
	for _, p := range cfg.StrategyPresets {
		if _, err := strategies.PresetConfig(p); err != nil {
			errs = append(errs, fmt.Sprintf("invalid STRATEGY_PRESETS entry %q", p))
		}
	}
	cfg.ExecuteTrades = getEnvAsBool("EXECUTE_TRADES", false)

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
