package engine

import (
	"fmt"
	"sort"

	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/internal/strategy"
)

// explanationTopReasons - number of contributing reasons surfaced
const explanationTopReasons = 3

// Explainer renders a decision and its contributing signals into a
// short structured explanation. Deterministic string composition, plain
// ASCII, fixed numeric formats.
type Explainer struct{}

// NewExplainer creates an explainer
func NewExplainer() *Explainer {
	return &Explainer{}
}

// rankedReason carries a formatted reason with its ranking score
type rankedReason struct {
	text  string
	score float64
	index int // input order, stable tie-break
}

// Explain produces the summary, top reasons and warnings for a decision
func (e *Explainer) Explain(instrument string, decision domain.Decision, agg domain.AggregatedSignal, entries []strategy.Entry) domain.Explanation {
	ranked := rankContributing(agg, entries)

	summary := fmt.Sprintf("%s %s with %.0f%% confidence",
		decision.Action, instrument, decision.Confidence*100)
	if len(ranked) > 0 {
		summary += ": " + ranked[0].text
	}
	summary += "."

	reasons := make([]string, 0, explanationTopReasons)
	for i, r := range ranked {
		if i == explanationTopReasons {
			break
		}
		reasons = append(reasons, r.text)
	}

	warnings := make([]string, 0, len(decision.Invalidation)+2)
	if allInsufficient(agg.Contributing) {
		warnings = append(warnings, domain.ReasonInsufficientData)
	} else if agg.Direction == domain.DirectionNeutral && hasConflict(agg.Contributing) {
		warnings = append(warnings, "low_consensus")
	}
	for _, cond := range decision.Invalidation {
		warnings = append(warnings, "Invalidate if "+cond.String())
	}

	return domain.Explanation{
		Summary:  summary,
		Reasons:  reasons,
		Warnings: warnings,
	}
}

// rankContributing orders "<strategy>: <first reason>" strings by
// effective weight times confidence, descending; ties keep input order
func rankContributing(agg domain.AggregatedSignal, entries []strategy.Entry) []rankedReason {
	styles := make(map[string]strategy.Style, len(entries))
	weights := make(map[string]float64, len(entries))
	for _, e := range entries {
		styles[e.Metadata.Name] = e.Metadata.Style
		weights[e.Metadata.Name] = e.Weight
	}

	ranked := make([]rankedReason, 0, len(agg.Contributing))
	for i, sig := range agg.Contributing {
		if len(sig.Reasons) == 0 {
			continue
		}
		wEff := weights[sig.StrategyName] * regimeMultiplier(styles[sig.StrategyName], agg.Regime)
		ranked = append(ranked, rankedReason{
			text:  fmt.Sprintf("%s: %s", sig.StrategyName, sig.Reasons[0]),
			score: wEff * sig.Confidence,
			index: i,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].index < ranked[j].index
	})
	return ranked
}

func allInsufficient(signals []domain.StrategySignal) bool {
	if len(signals) == 0 {
		return true
	}
	for _, s := range signals {
		if !s.Insufficient() {
			return false
		}
	}
	return true
}

// hasConflict reports whether contributing signals pull in both directions
func hasConflict(signals []domain.StrategySignal) bool {
	var long, short bool
	for _, s := range signals {
		switch s.Direction {
		case domain.DirectionLong:
			long = true
		case domain.DirectionShort:
			short = true
		}
	}
	return long && short
}
