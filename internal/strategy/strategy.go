// Package strategy holds the polymorphic strategy model and the
// registry of active strategies. Strategies are pure functions over a
// candle series; registration at startup is the only extension point.
package strategy

import (
	"math"
	"time"

	"github.com/aristath/advisor/internal/domain"
)

// Style groups strategies by how they relate to market regimes.
// The condenser's regime multiplier table is keyed by style.
type Style string

const (
	// StyleTrend - strategies that follow established trends
	StyleTrend Style = "trend"
	// StyleMeanReversion - strategies that fade extremes
	StyleMeanReversion Style = "mean_reversion"
)

// Metadata describes a strategy: stable name, style, the regimes it is
// suited to, and its default weight in the condenser.
type Metadata struct {
	Name            string                `json:"name"`
	Description     string                `json:"description"`
	Style           Style                 `json:"style"`
	SuitableRegimes []domain.MarketRegime `json:"suitable_regimes"`
	DefaultWeight   float64               `json:"default_weight"`
}

// Strategy is the capability set every strategy implements.
// Evaluate must be pure and must not fail for series shorter than
// RequiredHistory: it returns a NEUTRAL insufficient-data signal
// instead. The error channel is reserved for genuine failures.
type Strategy interface {
	Metadata() Metadata
	RequiredHistory() int
	Evaluate(series *domain.CandleSeries) (domain.StrategySignal, error)
}

// neutralSignal builds a NEUTRAL signal with the given confidence and reasons
func neutralSignal(name string, asOf time.Time, confidence float64, reasons ...string) domain.StrategySignal {
	return domain.StrategySignal{
		StrategyName: name,
		Direction:    domain.DirectionNeutral,
		Strength:     0,
		Confidence:   confidence,
		Reasons:      reasons,
		AsOf:         asOf,
	}
}

// InsufficientDataSignal is the mandated response to a series shorter
// than the strategy's declared warm-up: NEUTRAL, confidence 0.
func InsufficientDataSignal(name string, asOf time.Time) domain.StrategySignal {
	return neutralSignal(name, asOf, 0, domain.ReasonInsufficientData)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
