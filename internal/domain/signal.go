package domain

// TradeSignal is the immutable output of one strategy evaluation.
//
// SuggestedPositionFraction is a fraction of capital for BUY and a fraction of the held position
// for SELL. StopLoss and TakeProfit are prices; zero means unset.
type TradeSignal struct {
	Action                    Action             `json:"action"`
	Confidence                float64            `json:"confidence"`
	SuggestedPositionFraction float64            `json:"suggested_position_fraction,omitempty"`
	StopLoss                  float64            `json:"stop_loss,omitempty"`
	TakeProfit                float64            `json:"take_profit,omitempty"`
	Rationale                 string             `json:"rationale"`
	Indicators                map[string]float64 `json:"indicators,omitempty"`
}

// HoldSignal builds a HOLD with zero confidence.
func HoldSignal(rationale string) TradeSignal {
	return TradeSignal{Action: ActionHold, Rationale: rationale}
}
