package strategy

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Entry is one registered strategy together with its live tuning state
type Entry struct {
	Strategy      Strategy
	Metadata      Metadata
	DefaultWeight float64
	Weight        float64
	Enabled       bool
}

// Snapshot is an immutable, ordered view of the registry taken at the
// start of an engine run. Changes made to the registry afterwards do
// not affect a snapshot already handed out.
type Snapshot struct {
	Generation uint64
	Entries    []Entry
}

// EnabledEntries returns the enabled entries in registry order
func (s Snapshot) EnabledEntries() []Entry {
	out := make([]Entry, 0, len(s.Entries))
	for _, e := range s.Entries {
		if e.Enabled {
			out = append(out, e)
		}
	}
	return out
}

// MaxRequiredHistory returns the strictest warm-up across enabled
// strategies, 0 when none are enabled
func (s Snapshot) MaxRequiredHistory() int {
	required := 0
	for _, e := range s.Entries {
		if e.Enabled && e.Strategy.RequiredHistory() > required {
			required = e.Strategy.RequiredHistory()
		}
	}
	return required
}

// Registry holds the set of active strategies. Readers (Snapshot) never
// block each other; writers serialize. Registering an existing name
// replaces the entry in place, keeping its position in the order, and
// every mutation increments the generation counter.
type Registry struct {
	mu         sync.RWMutex
	order      []string
	entries    map[string]*Entry
	generation uint64
	log        zerolog.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		log:     log.With().Str("component", "strategy_registry").Logger(),
	}
}

// Register adds a strategy (enabled, at its default weight) or replaces
// the entry with the same name
func (r *Registry) Register(s Strategy) {
	meta := s.Metadata()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[meta.Name]; !exists {
		r.order = append(r.order, meta.Name)
	}
	r.entries[meta.Name] = &Entry{
		Strategy:      s,
		Metadata:      meta,
		DefaultWeight: meta.DefaultWeight,
		Weight:        meta.DefaultWeight,
		Enabled:       true,
	}
	r.generation++

	r.log.Info().
		Str("strategy", meta.Name).
		Str("style", string(meta.Style)).
		Float64("weight", meta.DefaultWeight).
		Msg("Strategy registered")
}

// SetWeight updates a strategy's weight. Weights must be non-negative.
func (r *Registry) SetWeight(name string, w float64) error {
	if w < 0 {
		return fmt.Errorf("weight for %q must be non-negative, got %f", name, w)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("unknown strategy %q", name)
	}
	e.Weight = w
	r.generation++
	return nil
}

// SetEnabled toggles a strategy
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("unknown strategy %q", name)
	}
	e.Enabled = enabled
	r.generation++
	return nil
}

// Update applies enabled and/or weight atomically and returns the
// resulting entry. Nil fields are left untouched.
func (r *Registry) Update(name string, enabled *bool, weight *float64) (Entry, error) {
	if weight != nil && *weight < 0 {
		return Entry{}, fmt.Errorf("weight for %q must be non-negative, got %f", name, *weight)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("unknown strategy %q", name)
	}
	if enabled != nil {
		e.Enabled = *enabled
	}
	if weight != nil {
		e.Weight = *weight
	}
	r.generation++
	return *e, nil
}

// Get returns a copy of the named entry
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Snapshot returns an ordered value copy of the registry state
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		entries = append(entries, *r.entries[name])
	}
	return Snapshot{Generation: r.generation, Entries: entries}
}

// Generation returns the current registry generation counter
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}
