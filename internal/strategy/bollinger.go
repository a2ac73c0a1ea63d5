package strategy

import (
	"fmt"

	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/internal/indicators"
)

const (
	bbName              = "Bollinger-Bands"
	bbPeriod            = 20
	bbMultiplier        = 2.0
	bbSqueezeBandwidth  = 0.02 // below this bandwidth the bands carry no signal
	bbSqueezeConfidence = 0.3
)

// BollingerStrategy fades touches of the Bollinger Bands(20, 2): closes
// at or beyond a band signal reversion toward the middle. A compressed
// bandwidth (squeeze) suppresses signals entirely.
type BollingerStrategy struct{}

// NewBollingerStrategy creates the Bollinger Bands strategy
func NewBollingerStrategy() *BollingerStrategy {
	return &BollingerStrategy{}
}

// Metadata implements Strategy
func (s *BollingerStrategy) Metadata() Metadata {
	return Metadata{
		Name:        bbName,
		Description: "Mean reversion on Bollinger Bands(20, 2.0) band touches",
		Style:       StyleMeanReversion,
		SuitableRegimes: []domain.MarketRegime{
			domain.RegimeRanging,
		},
		DefaultWeight: 1.0,
	}
}

// RequiredHistory implements Strategy
func (s *BollingerStrategy) RequiredHistory() int {
	return bbPeriod
}

// Evaluate implements Strategy
func (s *BollingerStrategy) Evaluate(series *domain.CandleSeries) (domain.StrategySignal, error) {
	last, ok := series.Last()
	asOf := last.Time
	if !ok || series.Len() < s.RequiredHistory() {
		return InsufficientDataSignal(bbName, asOf), nil
	}

	bb := indicators.LastBollinger(series.Closes(), bbPeriod, bbMultiplier)
	if bb == nil || last.Close == 0 {
		return neutralSignal(bbName, asOf, 0, "degenerate bands"), nil
	}

	if bb.Bandwidth < bbSqueezeBandwidth {
		return neutralSignal(bbName, asOf, bbSqueezeConfidence, "squeeze"), nil
	}

	switch {
	case last.Close <= bb.Lower:
		// close == lower band yields a LONG with strength exactly 0
		strength := clamp((bb.Lower-last.Close)/last.Close, 0, 1)
		return domain.StrategySignal{
			StrategyName: bbName,
			Direction:    domain.DirectionLong,
			Strength:     strength,
			Confidence:   strength,
			Reasons:      []string{fmt.Sprintf("close %.2f at or below lower band %.2f", last.Close, bb.Lower)},
			AsOf:         asOf,
		}, nil
	case last.Close >= bb.Upper:
		strength := clamp(-(last.Close-bb.Upper)/last.Close, -1, 0)
		return domain.StrategySignal{
			StrategyName: bbName,
			Direction:    domain.DirectionShort,
			Strength:     strength,
			Confidence:   -strength,
			Reasons:      []string{fmt.Sprintf("close %.2f at or above upper band %.2f", last.Close, bb.Upper)},
			AsOf:         asOf,
		}, nil
	default:
		return neutralSignal(bbName, asOf, 0,
			fmt.Sprintf("close %.2f inside bands (%.2f - %.2f)", last.Close, bb.Lower, bb.Upper)), nil
	}
}
