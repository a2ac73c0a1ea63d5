package engine

import (
	"math"

	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/internal/strategy"
)

// directionEpsilon - aggregated strength within this band of zero is NEUTRAL
const directionEpsilon = 0.05

// regimeMultiplier returns the static weight modifier for a strategy
// style under a regime. Trend followers are boosted in trends and cut
// in ranges; mean-reversion strategies inversely. UNKNOWN leaves
// weights untouched.
func regimeMultiplier(style strategy.Style, regime domain.MarketRegime) float64 {
	switch regime {
	case domain.RegimeTrendingBull, domain.RegimeTrendingBear:
		if style == strategy.StyleTrend {
			return 1.5
		}
		return 0.5
	case domain.RegimeRanging:
		if style == strategy.StyleTrend {
			return 0.5
		}
		return 1.5
	case domain.RegimeVolatile:
		return 0.8
	default:
		return 1.0
	}
}

// Condenser aggregates strategy signals into one AggregatedSignal using
// per-strategy weights modulated by the detected market regime.
type Condenser struct{}

// NewCondenser creates a condenser
func NewCondenser() *Condenser {
	return &Condenser{}
}

// weighted pairs a signal with its effective weight for one condense call
type weighted struct {
	signal domain.StrategySignal
	weight float64
}

// Condense computes the weighted strength, direction and consensus of
// the signals. Signals appear in Contributing in their input order.
func (c *Condenser) Condense(signals []domain.StrategySignal, entries []strategy.Entry, regime domain.MarketRegime) domain.AggregatedSignal {
	styles := make(map[string]strategy.Style, len(entries))
	weights := make(map[string]float64, len(entries))
	for _, e := range entries {
		styles[e.Metadata.Name] = e.Metadata.Style
		weights[e.Metadata.Name] = e.Weight
	}

	contributing := make([]domain.StrategySignal, len(signals))
	copy(contributing, signals)

	var totalWeight, weightedStrength float64
	pairs := make([]weighted, 0, len(signals))
	for _, sig := range signals {
		w := weights[sig.StrategyName] * regimeMultiplier(styles[sig.StrategyName], regime)
		pairs = append(pairs, weighted{signal: sig, weight: w})
		totalWeight += w
		weightedStrength += w * sig.Strength
	}

	if totalWeight == 0 {
		return domain.AggregatedSignal{
			Direction:    domain.DirectionNeutral,
			Strength:     0,
			Consensus:    0,
			Regime:       regime,
			Contributing: contributing,
		}
	}

	s := weightedStrength / totalWeight

	direction := domain.DirectionNeutral
	switch {
	case s > directionEpsilon:
		direction = domain.DirectionLong
	case s < -directionEpsilon:
		direction = domain.DirectionShort
	}

	// Consensus is the weighted share of signals agreeing with the
	// aggregated direction; zero by definition when NEUTRAL.
	consensus := 0.0
	if direction != domain.DirectionNeutral {
		var agree float64
		for _, p := range pairs {
			if p.signal.Direction == direction {
				agree += p.weight
			}
		}
		consensus = math.Min(agree/totalWeight, 1)
	}

	return domain.AggregatedSignal{
		Direction:    direction,
		Strength:     s,
		Consensus:    consensus,
		Regime:       regime,
		Contributing: contributing,
	}
}
