// Package engine binds provider, strategies, condenser, decision
// generator and explainer into the recommendation pipeline for a single
// (instrument, asOf) call.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/internal/indicators"
	"github.com/aristath/advisor/internal/regime"
	"github.com/aristath/advisor/internal/strategy"
)

// Version stamps every Recommendation this engine produces
const Version = "1.0.0"

// atrPeriod for risk levels and volatility classification
const atrPeriod = 14

// Config holds engine dependencies
type Config struct {
	Provider  domain.MarketDataProvider
	Registry  *strategy.Registry
	Detector  *regime.Detector
	Timeframe domain.Timeframe
	Observer  domain.Observer
	Log       zerolog.Logger
}

// Engine is the recommendation orchestrator
type Engine struct {
	provider  domain.MarketDataProvider
	registry  *strategy.Registry
	detector  *regime.Detector
	condenser *Condenser
	generator *DecisionGenerator
	explainer *Explainer
	timeframe domain.Timeframe
	observer  domain.Observer
	log       zerolog.Logger
}

// New creates a recommendation engine
func New(cfg Config) *Engine {
	observer := cfg.Observer
	if observer == nil {
		observer = domain.NopObserver{}
	}
	return &Engine{
		provider:  cfg.Provider,
		registry:  cfg.Registry,
		detector:  cfg.Detector,
		condenser: NewCondenser(),
		generator: NewDecisionGenerator(),
		explainer: NewExplainer(),
		timeframe: cfg.Timeframe,
		observer:  observer,
		log:       cfg.Log.With().Str("component", "engine").Logger(),
	}
}

// Timeframe returns the engine's decision timeframe
func (e *Engine) Timeframe() domain.Timeframe {
	return e.timeframe
}

// Recommend runs the full pipeline for one instrument at one point in
// time. Provider failure surfaces as ErrNoData; individual strategy
// failures are absorbed as NEUTRAL placeholders. The context cancels
// the run cooperatively between stages.
func (e *Engine) Recommend(ctx context.Context, instrument string, asOf time.Time) (*domain.Recommendation, error) {
	runID := uuid.NewString()
	started := time.Now()
	e.observer.OnEvent(domain.Event{
		Type:       domain.EventEngineRunStarted,
		Instrument: instrument,
		RunID:      runID,
		Fields:     map[string]interface{}{"as_of": asOf.UTC().Format(time.RFC3339)},
	})

	rec, err := e.run(ctx, instrument, asOf)

	finished := domain.Event{
		Type:       domain.EventEngineRunFinished,
		Instrument: instrument,
		RunID:      runID,
		Err:        err,
		Fields:     map[string]interface{}{"duration_ms": time.Since(started).Milliseconds()},
	}
	if rec != nil {
		finished.Fields["action"] = string(rec.Decision.Action)
		finished.Fields["confidence"] = rec.Decision.Confidence
	}
	e.observer.OnEvent(finished)

	return rec, err
}

func (e *Engine) run(ctx context.Context, instrument string, asOf time.Time) (*domain.Recommendation, error) {
	// Step 1: freeze the strategy set and weights for this run
	snapshot := e.registry.Snapshot()
	enabled := snapshot.EnabledEntries()

	// Step 2: fetch the strictest window any consumer needs. The regime
	// detector and ATR have their own warm-ups beyond the strategies'.
	required := snapshot.MaxRequiredHistory()
	if d := e.detector.RequiredHistory(); d > required {
		required = d
	}
	if atrPeriod+1 > required {
		required = atrPeriod + 1
	}

	series, err := e.provider.GetCandles(ctx, instrument, e.timeframe, asOf, required)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("engine run cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrNoData, instrument, err)
	}
	last, ok := series.Last()
	if !ok {
		return nil, fmt.Errorf("%w: %s: empty series", domain.ErrNoData, instrument)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("engine run cancelled: %w", err)
	}

	// Step 3: volatility and regime at the last bar
	atr := indicators.LastATR(series.Highs(), series.Lows(), series.Closes(), atrPeriod)
	marketRegime := e.detector.Detect(series)

	// Step 4: evaluate enabled strategies in parallel; results land in
	// registry order regardless of completion order
	signals := e.evaluate(ctx, enabled, series, last.Time)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("engine run cancelled: %w", err)
	}

	// Step 5: condense, decide, explain
	aggregated := e.condenser.Condense(signals, enabled, marketRegime)
	decision := e.generator.Generate(aggregated, last, atr, e.timeframe, asOf)
	explanation := e.explainer.Explain(instrument, decision, aggregated, enabled)

	return &domain.Recommendation{
		Instrument:    instrument,
		AsOf:          asOf.UTC(),
		Decision:      decision,
		Aggregated:    aggregated,
		Explanation:   explanation,
		EngineVersion: Version,
	}, nil
}

// evaluate runs the strategies concurrently. A strategy that errors or
// panics contributes a NEUTRAL placeholder so the audit trail stays
// complete; the failure is reported to the observer, never to the caller.
func (e *Engine) evaluate(ctx context.Context, entries []strategy.Entry, series *domain.CandleSeries, asOf time.Time) []domain.StrategySignal {
	signals := make([]domain.StrategySignal, len(entries))

	g, _ := errgroup.WithContext(ctx)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			signals[i] = e.evaluateOne(entry, series, asOf)
			return nil
		})
	}
	_ = g.Wait()

	return signals
}

func (e *Engine) evaluateOne(entry strategy.Entry, series *domain.CandleSeries, asOf time.Time) (signal domain.StrategySignal) {
	name := entry.Metadata.Name

	defer func() {
		if r := recover(); r != nil {
			e.reportFailure(name, fmt.Errorf("panic: %v", r), asOf)
			signal = placeholderSignal(name, asOf)
		}
	}()

	if series.Len() < entry.Strategy.RequiredHistory() {
		return strategy.InsufficientDataSignal(name, asOf)
	}

	sig, err := entry.Strategy.Evaluate(series)
	if err != nil {
		e.reportFailure(name, err, asOf)
		return placeholderSignal(name, asOf)
	}
	return sig
}

func (e *Engine) reportFailure(name string, err error, asOf time.Time) {
	e.log.Warn().Err(err).Str("strategy", name).Msg("Strategy evaluation failed")
	e.observer.OnEvent(domain.Event{
		Type:   domain.EventStrategyFailed,
		Err:    err,
		Fields: map[string]interface{}{"strategy": name, "as_of": asOf.UTC().Format(time.RFC3339)},
	})
}

// placeholderSignal is recorded for a failed strategy: NEUTRAL with a
// reason string, kept in the audit trail
func placeholderSignal(name string, asOf time.Time) domain.StrategySignal {
	return domain.StrategySignal{
		StrategyName: name,
		Direction:    domain.DirectionNeutral,
		Strength:     0,
		Confidence:   0,
		Reasons:      []string{"evaluation_error"},
		AsOf:         asOf,
	}
}
