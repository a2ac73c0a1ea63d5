// Package events fans pipeline events out to registered observers.
// The core emits; implementations log, forward, or ignore.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/advisor/internal/domain"
)

// Bus is a fan-out Observer. Subscribe before the pipeline starts;
// delivery is synchronous and in subscription order.
type Bus struct {
	mu        sync.RWMutex
	observers []domain.Observer
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe adds an observer
func (b *Bus) Subscribe(o domain.Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, o)
}

// OnEvent implements domain.Observer by delivering to every subscriber
func (b *Bus) OnEvent(e domain.Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	observers := b.observers
	b.mu.RUnlock()

	for _, o := range observers {
		o.OnEvent(e)
	}
}

// LogObserver writes events to a zerolog logger
type LogObserver struct {
	log zerolog.Logger
}

// NewLogObserver creates an observer that logs every event
func NewLogObserver(log zerolog.Logger) *LogObserver {
	return &LogObserver{log: log.With().Str("component", "events").Logger()}
}

// OnEvent implements domain.Observer
func (o *LogObserver) OnEvent(e domain.Event) {
	ev := o.log.Debug()
	switch e.Type {
	case domain.EventStrategyFailed:
		ev = o.log.Warn()
	case domain.EventSchedulerTickSummary, domain.EventEngineRunFinished:
		ev = o.log.Info()
	}

	ev = ev.Str("event", string(e.Type)).Time("at", e.At)
	if e.Instrument != "" {
		ev = ev.Str("instrument", e.Instrument)
	}
	if e.RunID != "" {
		ev = ev.Str("run_id", e.RunID)
	}
	if e.Err != nil {
		ev = ev.Err(e.Err)
	}
	for k, v := range e.Fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg("Pipeline event")
}
