package strategy

import (
	"fmt"
	"time"

	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/internal/indicators"
)

const (
	rsiName       = "RSI"
	rsiPeriod     = 14
	rsiOversold   = 30.0
	rsiOverbought = 70.0
)

// RSIStrategy fades RSI extremes: oversold readings go LONG, overbought
// readings go SHORT, scaled by the distance from the boundary.
type RSIStrategy struct{}

// NewRSIStrategy creates the RSI mean-reversion strategy
func NewRSIStrategy() *RSIStrategy {
	return &RSIStrategy{}
}

// Metadata implements Strategy
func (s *RSIStrategy) Metadata() Metadata {
	return Metadata{
		Name:        rsiName,
		Description: "Mean reversion on RSI(14) oversold/overbought extremes",
		Style:       StyleMeanReversion,
		SuitableRegimes: []domain.MarketRegime{
			domain.RegimeRanging,
			domain.RegimeVolatile,
		},
		DefaultWeight: 1.0,
	}
}

// RequiredHistory implements Strategy. RSI(14) needs period+1 bars.
func (s *RSIStrategy) RequiredHistory() int {
	return rsiPeriod + 1
}

// Evaluate implements Strategy
func (s *RSIStrategy) Evaluate(series *domain.CandleSeries) (domain.StrategySignal, error) {
	last, ok := series.Last()
	if !ok || series.Len() < s.RequiredHistory() {
		asOf := last.Time
		return InsufficientDataSignal(rsiName, asOf), nil
	}
	asOf := last.Time

	rsi := indicators.LastRSI(series.Closes(), rsiPeriod)
	if rsi == nil {
		return InsufficientDataSignal(rsiName, asOf), nil
	}
	return s.classify(*rsi, asOf), nil
}

// classify maps an RSI reading to a signal. The comparisons are strict:
// readings of exactly 30 or 70 stay neutral.
func (s *RSIStrategy) classify(r float64, asOf time.Time) domain.StrategySignal {
	switch {
	case r < rsiOversold:
		strength := clamp((rsiOversold-r)/rsiOversold, 0, 1)
		return domain.StrategySignal{
			StrategyName: rsiName,
			Direction:    domain.DirectionLong,
			Strength:     strength,
			Confidence:   strength,
			Reasons:      []string{fmt.Sprintf("oversold (RSI %.1f below %.0f)", r, rsiOversold)},
			AsOf:         asOf,
		}
	case r > rsiOverbought:
		strength := clamp(-(r-rsiOverbought)/rsiOversold, -1, 0)
		return domain.StrategySignal{
			StrategyName: rsiName,
			Direction:    domain.DirectionShort,
			Strength:     strength,
			Confidence:   -strength,
			Reasons:      []string{fmt.Sprintf("overbought (RSI %.1f above %.0f)", r, rsiOverbought)},
			AsOf:         asOf,
		}
	default:
		// Exact boundary readings (30, 70) land here: no signal.
		return neutralSignal(rsiName, asOf, 0,
			fmt.Sprintf("RSI %.1f in neutral zone", r))
	}
}
