package ports

import "errors"

// Standard application-level errors.
// Core packages and adapters wrap these with context; callers match them with errors.Is.
var (
	// General Errors
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Market Data Errors
	ErrInsufficientData = errors.New("insufficient data")
	ErrTickerNotFound   = errors.New("ticker not found")

	// Ledger Errors
	ErrInvalidQuantity       = errors.New("quantity must be positive")
	ErrInvalidPrice          = errors.New("price must be positive")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrFundNotFound          = errors.New("fund not found")

	// Strategy and Simulation Errors
	ErrStrategyEvaluation = errors.New("strategy evaluation failed")
	ErrBacktestFailed     = errors.New("backtest failed")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
)
