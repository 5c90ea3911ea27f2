package strategy

import (
	"math"

	"hedgeFundSim/internal/domain"
)

// voteOrder is the tie-break order: on equal tallies BUY beats SELL beats HOLD.
var voteOrder = []domain.Action{domain.ActionBuy, domain.ActionSell, domain.ActionHold}

// Consensus is the joined decision of several strategy results.
type Consensus struct {
	Action            domain.Action             `json:"action"`
	AverageConfidence float64                   `json:"average_confidence"`
	RecommendedSize   int64                     `json:"recommended_size"`
	// AgreeingSize only weighs the executable results whose action matches Action.
	AgreeingSize      int64                     `json:"agreeing_size"`
	Votes             map[domain.Action]float64 `json:"votes"`
	Executable        int                       `json:"executable"`
	Evaluated         int                       `json:"evaluated"`
}

// ComputeConsensus tallies a weighted vote. An executable result adds its confidence to its
// action; anything else adds 1 to HOLD. RecommendedSize is the confidence-weighted mean of the
// recommended sizes of every executable result, floored, whatever action won.
func ComputeConsensus(results []StrategyResult) Consensus {
	c := Consensus{
		Action:    domain.ActionHold,
		Votes:     map[domain.Action]float64{domain.ActionBuy: 0, domain.ActionSell: 0, domain.ActionHold: 0},
		Evaluated: len(results),
	}
	if len(results) == 0 {
		return c
	}

	var confSum float64
	for _, r := range results {
		confSum += r.Signal.Confidence
		if r.Executable {
			c.Votes[r.Signal.Action] += r.Signal.Confidence
			c.Executable++
		} else {
			c.Votes[domain.ActionHold]++
		}
	}
	c.AverageConfidence = confSum / float64(len(results))

	best := math.Inf(-1)
	for _, a := range voteOrder {
		if c.Votes[a] > best {
			best = c.Votes[a]
			c.Action = a
		}
	}

	c.RecommendedSize = weightedSize(results, func(StrategyResult) bool { return true })
	if c.Action != domain.ActionHold {
		c.AgreeingSize = weightedSize(results, func(r StrategyResult) bool { return r.Signal.Action == c.Action })
	}
	return c
}

func weightedSize(results []StrategyResult, keep func(StrategyResult) bool) int64 {
	var weighted, weights float64
	for _, r := range results {
		if !r.Executable || !keep(r) {
			continue
		}
		weighted += r.Signal.Confidence * float64(r.RecommendedSize)
		weights += r.Signal.Confidence
	}
	if weights <= 0 {
		return 0
	}
	return int64(math.Floor(weighted / weights))
}
