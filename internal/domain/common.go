package domain

import "strings"

// Action is the trade decision carried by a signal or a trade record.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// ParseAction converts a case-insensitive string to an Action. Unknown values map to HOLD.
func ParseAction(s string) Action {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return ActionBuy
	case "SELL":
		return ActionSell
	default:
		return ActionHold
	}
}

// LotStatus represents the status of a stock lot.
type LotStatus string

const (
	LotOpen   LotStatus = "OPEN"
	LotClosed LotStatus = "CLOSED"
)

// CloseReason indicates why shares were sold.
type CloseReason string

const (
	CloseReasonSignal   CloseReason = "SIGNAL"
	CloseReasonStopLoss CloseReason = "STOP_LOSS"
	CloseReasonManual   CloseReason = "MANUAL"
	CloseReasonUnknown  CloseReason = "UNKNOWN"
)
