package domain

import (
	"context"
	"time"
)

// MarketDataProvider is the read-only abstraction over candle storage.
// Implementations must be safe for concurrent use and must honor the
// context deadline; a window shorter than lookback fails with
// ErrDataUnavailable (or ErrInsufficientHistory wrapped in it).
type MarketDataProvider interface {
	// GetCandles returns at least lookback candles for the instrument
	// and timeframe, ending at or before end, in ascending time order.
	GetCandles(ctx context.Context, instrument string, timeframe Timeframe, end time.Time, lookback int) (*CandleSeries, error)
}

// EventType identifies an observer event
type EventType string

const (
	EventEngineRunStarted     EventType = "engine_run_started"
	EventEngineRunFinished    EventType = "engine_run_finished"
	EventStrategyFailed       EventType = "strategy_failed"
	EventCacheHit             EventType = "cache_hit"
	EventCacheMiss            EventType = "cache_miss"
	EventCacheInvalidate      EventType = "cache_invalidate"
	EventSchedulerTickSummary EventType = "scheduler_tick_summary"
	EventStreamCandle         EventType = "stream_candle"
)

// Event is the payload delivered to observers. Fields carries
// event-specific details (counts, durations, error strings).
type Event struct {
	Type       EventType              `json:"type"`
	Instrument string                 `json:"instrument,omitempty"`
	RunID      string                 `json:"run_id,omitempty"`
	At         time.Time              `json:"at"`
	Err        error                  `json:"-"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// Observer receives pipeline events. Implementations must not block;
// the core makes no assumption about what they do with events.
type Observer interface {
	OnEvent(Event)
}

// NopObserver discards all events
type NopObserver struct{}

// OnEvent implements Observer
func (NopObserver) OnEvent(Event) {}
