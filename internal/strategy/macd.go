package strategy

import (
	"fmt"
	"math"

	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/internal/indicators"
)

const (
	macdName        = "MACD-Histogram"
	macdFast        = 12
	macdSlow        = 26
	macdSignal      = 9
	macdScaleWindow = 20 // trailing window for the histogram scale
	macdDivLookback = 14 // bars scanned for price/histogram divergence
	macdDivMultiple = 1.2
	macdWarmup      = macdSlow + macdSignal - 2 // leading histogram samples without a value
)

// MACDStrategy trades zero-line crossings of the MACD histogram,
// with strength scaled against the recent mean absolute histogram and
// boosted on price/histogram divergence.
type MACDStrategy struct{}

// NewMACDStrategy creates the MACD histogram crossing strategy
func NewMACDStrategy() *MACDStrategy {
	return &MACDStrategy{}
}

// Metadata implements Strategy
func (s *MACDStrategy) Metadata() Metadata {
	return Metadata{
		Name:        macdName,
		Description: "Momentum on MACD(12,26,9) histogram zero-line crossings",
		Style:       StyleTrend,
		SuitableRegimes: []domain.MarketRegime{
			domain.RegimeTrendingBull,
			domain.RegimeTrendingBear,
		},
		DefaultWeight: 1.0,
	}
}

// RequiredHistory implements Strategy. Two valid histogram values need
// warm-up + 2 bars.
func (s *MACDStrategy) RequiredHistory() int {
	return macdWarmup + 2
}

// Evaluate implements Strategy
func (s *MACDStrategy) Evaluate(series *domain.CandleSeries) (domain.StrategySignal, error) {
	last, ok := series.Last()
	asOf := last.Time
	if !ok || series.Len() < s.RequiredHistory() {
		return InsufficientDataSignal(macdName, asOf), nil
	}

	_, _, hist := indicators.MACD(series.Closes(), macdFast, macdSlow, macdSignal)
	if len(hist) < macdWarmup+2 {
		return InsufficientDataSignal(macdName, asOf), nil
	}

	// Only the post-warm-up tail carries real values; the leading
	// samples would deflate the scale.
	valid := hist[macdWarmup:]
	h0 := valid[len(valid)-1]
	h1 := valid[len(valid)-2]

	k := indicators.MeanAbs(valid, macdScaleWindow)
	if k == 0 || math.IsNaN(h0) || math.IsNaN(h1) {
		return neutralSignal(macdName, asOf, 0, "flat histogram"), nil
	}

	switch {
	case crossedUp(h1, h0):
		strength := math.Min(math.Abs(h0)/k, 1)
		reasons := []string{fmt.Sprintf("histogram crossed above zero (%.4f)", h0)}
		if bullishDivergence(series, valid) {
			strength = math.Min(strength*macdDivMultiple, 1)
			reasons = append(reasons, fmt.Sprintf("bullish divergence over %d bars", macdDivLookback))
		}
		return domain.StrategySignal{
			StrategyName: macdName,
			Direction:    domain.DirectionLong,
			Strength:     strength,
			Confidence:   strength,
			Reasons:      reasons,
			AsOf:         asOf,
		}, nil
	case crossedDown(h1, h0):
		strength := -math.Min(math.Abs(h0)/k, 1)
		reasons := []string{fmt.Sprintf("histogram crossed below zero (%.4f)", h0)}
		if bearishDivergence(series, valid) {
			strength = math.Max(strength*macdDivMultiple, -1)
			reasons = append(reasons, fmt.Sprintf("bearish divergence over %d bars", macdDivLookback))
		}
		return domain.StrategySignal{
			StrategyName: macdName,
			Direction:    domain.DirectionShort,
			Strength:     strength,
			Confidence:   -strength,
			Reasons:      reasons,
			AsOf:         asOf,
		}, nil
	default:
		return neutralSignal(macdName, asOf, 0,
			fmt.Sprintf("no zero-line crossing (histogram %.4f)", h0)), nil
	}
}

// crossedUp reports a zero-line crossing into positive territory. A
// zero histogram on the last bar is never a crossing in either direction.
func crossedUp(h1, h0 float64) bool { return h1 <= 0 && h0 > 0 }

func crossedDown(h1, h0 float64) bool { return h1 >= 0 && h0 < 0 }

// bullishDivergence reports whether price set the low of the lookback
// window on the last bar while the histogram held above its window low
func bullishDivergence(series *domain.CandleSeries, hist []float64) bool {
	closes := series.Closes()
	n := min(macdDivLookback, min(len(closes), len(hist)))
	if n < 3 {
		return false
	}
	cw := closes[len(closes)-n:]
	hw := hist[len(hist)-n:]

	priceLowLast := true
	histLow := hw[0]
	for i := 0; i < n-1; i++ {
		if cw[i] <= cw[n-1] {
			priceLowLast = false
		}
		if hw[i] < histLow {
			histLow = hw[i]
		}
	}
	return priceLowLast && hw[n-1] > histLow
}

// bearishDivergence is the mirror: price high on the last bar, histogram
// below its window high
func bearishDivergence(series *domain.CandleSeries, hist []float64) bool {
	closes := series.Closes()
	n := min(macdDivLookback, min(len(closes), len(hist)))
	if n < 3 {
		return false
	}
	cw := closes[len(closes)-n:]
	hw := hist[len(hist)-n:]

	priceHighLast := true
	histHigh := hw[0]
	for i := 0; i < n-1; i++ {
		if cw[i] >= cw[n-1] {
			priceHighLast = false
		}
		if hw[i] > histHigh {
			histHigh = hw[i]
		}
	}
	return priceHighLast && hw[n-1] < histHigh
}
