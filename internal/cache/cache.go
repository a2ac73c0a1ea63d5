// Package cache holds built Recommendations keyed by
// (instrument, timeframe, bar). Concurrent callers for the same key
// coalesce onto a single build; completed builds are served until
// their TTL expires.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/aristath/advisor/internal/domain"
)

// Key identifies one cache slot. Bar is the asOf truncated to the
// decision timeframe, so all calls within the same bar share a slot.
type Key struct {
	Instrument string
	Timeframe  domain.Timeframe
	Bar        time.Time
}

// NewKey truncates asOf to the timeframe's bar
func NewKey(instrument string, timeframe domain.Timeframe, asOf time.Time) Key {
	return Key{
		Instrument: instrument,
		Timeframe:  timeframe,
		Bar:        timeframe.Truncate(asOf),
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%d", k.Instrument, k.Timeframe, k.Bar.Unix())
}

// Builder produces the Recommendation for a key on cache miss
type Builder func(ctx context.Context) (*domain.Recommendation, error)

type readyEntry struct {
	rec        *domain.Recommendation
	instrument string
	insertedAt time.Time
}

// flight tracks one in-flight build. Invalidate marks it so the build's
// result is delivered to its waiters but never published to the ready map.
type flight struct {
	instrument  string
	invalidated bool
}

// Cache is the single-flight TTL store for Recommendations
type Cache struct {
	ttl      time.Duration
	observer domain.Observer
	log      zerolog.Logger
	now      func() time.Time

	group singleflight.Group

	mu       sync.Mutex
	ready    map[string]readyEntry
	inflight map[string]*flight
}

// New creates a cache. The TTL should equal one bar of the decision
// timeframe.
func New(ttl time.Duration, observer domain.Observer, log zerolog.Logger) *Cache {
	if observer == nil {
		observer = domain.NopObserver{}
	}
	return &Cache{
		ttl:      ttl,
		observer: observer,
		log:      log.With().Str("component", "recommendation_cache").Logger(),
		now:      time.Now,
		ready:    make(map[string]readyEntry),
		inflight: make(map[string]*flight),
	}
}

// GetOrBuild returns the cached Recommendation for the key, waits on an
// in-flight build for it, or runs the builder exactly once across all
// concurrent callers. Failed builds (including cancellations) leave the
// slot empty; the shared error is delivered to every waiter wrapped in
// ErrCacheBuildFailed.
func (c *Cache) GetOrBuild(ctx context.Context, key Key, builder Builder) (*domain.Recommendation, error) {
	ks := key.String()

	if rec, ok := c.lookup(ks); ok {
		c.observer.OnEvent(domain.Event{Type: domain.EventCacheHit, Instrument: key.Instrument})
		return rec, nil
	}
	c.observer.OnEvent(domain.Event{Type: domain.EventCacheMiss, Instrument: key.Instrument})

	v, err, shared := c.group.Do(ks, func() (interface{}, error) {
		f := c.markInflight(ks, key.Instrument)
		defer c.clearInflight(ks, f)

		// A racing caller may have published between our lookup and
		// joining the flight.
		if rec, ok := c.lookup(ks); ok {
			return rec, nil
		}

		rec, err := builder(ctx)
		if err != nil {
			return nil, err
		}
		c.store(ks, key.Instrument, rec, f)
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCacheBuildFailed, err)
	}

	if shared {
		c.log.Debug().Str("key", ks).Msg("Joined in-flight build")
	}
	return v.(*domain.Recommendation), nil
}

// Invalidate drops all ready entries for the instrument and detaches
// future callers from any in-flight build. Current waiters still
// observe whatever the in-flight builder returns, but that result is
// not cached; the next GetOrBuild starts a fresh build.
func (c *Cache) Invalidate(instrument string) {
	c.mu.Lock()
	dropped := 0
	for ks, entry := range c.ready {
		if entry.instrument == instrument {
			delete(c.ready, ks)
			dropped++
		}
	}
	for ks, f := range c.inflight {
		if f.instrument == instrument {
			f.invalidated = true
			c.group.Forget(ks)
		}
	}
	c.mu.Unlock()

	c.observer.OnEvent(domain.Event{
		Type:       domain.EventCacheInvalidate,
		Instrument: instrument,
		Fields:     map[string]interface{}{"dropped": dropped},
	})
}

// Len returns the number of ready entries (expired included until their
// next lookup)
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ready)
}

func (c *Cache) lookup(ks string) (*domain.Recommendation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.ready[ks]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.insertedAt) > c.ttl {
		delete(c.ready, ks)
		return nil, false
	}
	return entry.rec, true
}

func (c *Cache) store(ks, instrument string, rec *domain.Recommendation, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f.invalidated {
		return
	}
	c.ready[ks] = readyEntry{rec: rec, instrument: instrument, insertedAt: c.now()}
}

func (c *Cache) markInflight(ks, instrument string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := &flight{instrument: instrument}
	c.inflight[ks] = f
	return f
}

// clearInflight removes the flight's own record. After a mid-build
// Forget a successor flight may already occupy the slot.
func (c *Cache) clearInflight(ks string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[ks] == f {
		delete(c.inflight, ks)
	}
}
