package engine

import (
	"math"
	"time"

	"github.com/aristath/advisor/internal/domain"
)

const (
	// thresholdStrength - minimum |strength| for an actionable decision
	thresholdStrength = 0.0
	// thresholdConfidence - minimum confidence for an actionable decision
	thresholdConfidence = 0.60
	// stopLossATRMultiple - stop distance in ATRs
	stopLossATRMultiple = 2.0
	// takeProfitATRMultiple - target distance in ATRs
	takeProfitATRMultiple = 3.0
)

// DecisionGenerator converts an aggregated signal into an actionable
// decision with risk levels and invalidation conditions.
type DecisionGenerator struct{}

// NewDecisionGenerator creates a decision generator
func NewDecisionGenerator() *DecisionGenerator {
	return &DecisionGenerator{}
}

// Generate derives the decision from the aggregated signal, the last
// candle and the current ATR. atr may be nil when the series is too
// short; actionable decisions then degrade to HOLD because risk levels
// cannot be placed. The decision stays valid for one bar past asOf.
func (g *DecisionGenerator) Generate(agg domain.AggregatedSignal, last domain.Candle, atr *float64, timeframe domain.Timeframe, asOf time.Time) domain.Decision {
	confidence := clamp01(0.6*math.Abs(agg.Strength) + 0.4*agg.Consensus)
	validUntil := asOf.Add(timeframe.Duration())

	actionable := math.Abs(agg.Strength) >= thresholdStrength &&
		confidence >= thresholdConfidence &&
		agg.Direction != domain.DirectionNeutral &&
		atr != nil && *atr > 0 && last.Close > 0

	if !actionable {
		return domain.Decision{
			Action:     domain.ActionHold,
			Confidence: confidence,
			Invalidation: []domain.Condition{
				timeElapsed(validUntil),
			},
			ValidUntil: validUntil,
		}
	}

	entry := last.Close
	var action domain.Action
	var stop, target float64
	var stopCondition domain.Condition

	if agg.Direction == domain.DirectionLong {
		action = domain.ActionBuy
		stop = entry - stopLossATRMultiple**atr
		target = entry + takeProfitATRMultiple**atr
		stopCondition = domain.Condition{
			Kind:     domain.ConditionPriceBelow,
			Operands: map[string]interface{}{"price": stop},
		}
	} else {
		action = domain.ActionSell
		stop = entry + stopLossATRMultiple**atr
		target = entry - takeProfitATRMultiple**atr
		stopCondition = domain.Condition{
			Kind:     domain.ConditionPriceAbove,
			Operands: map[string]interface{}{"price": stop},
		}
	}

	return domain.Decision{
		Action:       action,
		Confidence:   confidence,
		EntryPrice:   &entry,
		StopLoss:     &stop,
		TakeProfit:   &target,
		Invalidation: []domain.Condition{stopCondition, timeElapsed(validUntil)},
		ValidUntil:   validUntil,
	}
}

func timeElapsed(at time.Time) domain.Condition {
	return domain.Condition{
		Kind:     domain.ConditionTimeElapsed,
		Operands: map[string]interface{}{"at": at},
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
