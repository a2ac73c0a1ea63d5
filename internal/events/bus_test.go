package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/advisor/internal/domain"
)

type captureObserver struct {
	events []domain.Event
}

func (c *captureObserver) OnEvent(e domain.Event) {
	c.events = append(c.events, e)
}

func TestBus_FanOutInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	first := &captureObserver{}
	second := &captureObserver{}
	bus.Subscribe(first)
	bus.Subscribe(second)

	bus.OnEvent(domain.Event{Type: domain.EventCacheHit, Instrument: "BTCUSDT"})

	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	assert.Equal(t, domain.EventCacheHit, first.events[0].Type)
	assert.Equal(t, "BTCUSDT", second.events[0].Instrument)
}

func TestBus_StampsMissingTimestamp(t *testing.T) {
	bus := NewBus()
	capture := &captureObserver{}
	bus.Subscribe(capture)

	bus.OnEvent(domain.Event{Type: domain.EventCacheMiss})

	require.Len(t, capture.events, 1)
	assert.False(t, capture.events[0].At.IsZero())
}

func TestBus_NoSubscribers(t *testing.T) {
	bus := NewBus()
	// Must not panic
	bus.OnEvent(domain.Event{Type: domain.EventCacheMiss})
}
