package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/advisor/internal/domain"
)

func testKey(instrument string) Key {
	return NewKey(instrument, domain.Timeframe1d, time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC))
}

func testRec(instrument string) *domain.Recommendation {
	return &domain.Recommendation{Instrument: instrument, EngineVersion: "1.0.0"}
}

func TestNewKey_TruncatesToBar(t *testing.T) {
	a := NewKey("BTCUSDT", domain.Timeframe1d, time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC))
	b := NewKey("BTCUSDT", domain.Timeframe1d, time.Date(2025, 6, 1, 22, 59, 0, 0, time.UTC))
	c := NewKey("BTCUSDT", domain.Timeframe1d, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), a.Bar)
}

func TestGetOrBuild_BuildsOnceAndServesCached(t *testing.T) {
	c := New(time.Hour, nil, zerolog.Nop())
	var builds int32

	builder := func(ctx context.Context) (*domain.Recommendation, error) {
		atomic.AddInt32(&builds, 1)
		return testRec("BTCUSDT"), nil
	}

	rec1, err := c.GetOrBuild(context.Background(), testKey("BTCUSDT"), builder)
	require.NoError(t, err)
	rec2, err := c.GetOrBuild(context.Background(), testKey("BTCUSDT"), builder)
	require.NoError(t, err)

	assert.Same(t, rec1, rec2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
	assert.Equal(t, 1, c.Len())
}

func TestGetOrBuild_SingleFlight(t *testing.T) {
	c := New(time.Hour, nil, zerolog.Nop())

	var builds int32
	release := make(chan struct{})
	builder := func(ctx context.Context) (*domain.Recommendation, error) {
		atomic.AddInt32(&builds, 1)
		<-release
		return testRec("BTCUSDT"), nil
	}

	const callers = 50
	var wg sync.WaitGroup
	results := make([]*domain.Recommendation, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrBuild(context.Background(), testKey("BTCUSDT"), builder)
		}(i)
	}

	// Let the callers pile up on the single flight, then release it
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestGetOrBuild_FailedBuildNotCached(t *testing.T) {
	c := New(time.Hour, nil, zerolog.Nop())

	boom := errors.New("no candles")
	_, err := c.GetOrBuild(context.Background(), testKey("BTCUSDT"), func(ctx context.Context) (*domain.Recommendation, error) {
		return nil, boom
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCacheBuildFailed))
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 0, c.Len())

	// The slot stays open for the next attempt
	rec, err := c.GetOrBuild(context.Background(), testKey("BTCUSDT"), func(ctx context.Context) (*domain.Recommendation, error) {
		return testRec("BTCUSDT"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", rec.Instrument)
}

func TestGetOrBuild_WrappedErrorsStayInspectable(t *testing.T) {
	c := New(time.Hour, nil, zerolog.Nop())

	_, err := c.GetOrBuild(context.Background(), testKey("BTCUSDT"), func(ctx context.Context) (*domain.Recommendation, error) {
		return nil, domain.ErrNoData
	})
	require.Error(t, err)
	// Both the cache wrapper and the underlying cause survive
	assert.True(t, errors.Is(err, domain.ErrCacheBuildFailed))
	assert.True(t, errors.Is(err, domain.ErrNoData))
}

func TestGetOrBuild_TTLExpiry(t *testing.T) {
	c := New(time.Hour, nil, zerolog.Nop())

	current := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	var builds int32
	builder := func(ctx context.Context) (*domain.Recommendation, error) {
		atomic.AddInt32(&builds, 1)
		return testRec("BTCUSDT"), nil
	}

	_, err := c.GetOrBuild(context.Background(), testKey("BTCUSDT"), builder)
	require.NoError(t, err)

	// Within TTL: served from cache
	current = current.Add(30 * time.Minute)
	_, err = c.GetOrBuild(context.Background(), testKey("BTCUSDT"), builder)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))

	// Past TTL: rebuilt
	current = current.Add(31 * time.Minute)
	_, err = c.GetOrBuild(context.Background(), testKey("BTCUSDT"), builder)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&builds))
}

func TestInvalidate_DropsOnlyTheInstrument(t *testing.T) {
	c := New(time.Hour, nil, zerolog.Nop())

	for _, inst := range []string{"BTCUSDT", "ETHUSDT"} {
		_, err := c.GetOrBuild(context.Background(), testKey(inst), func(ctx context.Context) (*domain.Recommendation, error) {
			return testRec(inst), nil
		})
		require.NoError(t, err)
	}
	require.Equal(t, 2, c.Len())

	c.Invalidate("BTCUSDT")
	assert.Equal(t, 1, c.Len())

	// ETHUSDT still served without rebuilding
	var rebuilt bool
	_, err := c.GetOrBuild(context.Background(), testKey("ETHUSDT"), func(ctx context.Context) (*domain.Recommendation, error) {
		rebuilt = true
		return testRec("ETHUSDT"), nil
	})
	require.NoError(t, err)
	assert.False(t, rebuilt)
}

func TestInvalidate_MidFlightBuildNotCached(t *testing.T) {
	c := New(time.Hour, nil, zerolog.Nop())

	started := make(chan struct{})
	release := make(chan struct{})
	stale := testRec("BTCUSDT")

	done := make(chan struct{})
	go func() {
		defer close(done)
		rec, err := c.GetOrBuild(context.Background(), testKey("BTCUSDT"), func(ctx context.Context) (*domain.Recommendation, error) {
			close(started)
			<-release
			return stale, nil
		})
		// The waiter that started the build still gets its result
		assert.NoError(t, err)
		assert.Same(t, stale, rec)
	}()

	<-started
	c.Invalidate("BTCUSDT")
	close(release)
	<-done

	// The invalidated build was not published
	assert.Equal(t, 0, c.Len())

	// The next call rebuilds instead of serving the stale value
	var builds int32
	fresh := testRec("BTCUSDT")
	rec, err := c.GetOrBuild(context.Background(), testKey("BTCUSDT"), func(ctx context.Context) (*domain.Recommendation, error) {
		atomic.AddInt32(&builds, 1)
		return fresh, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
	assert.Same(t, fresh, rec)
}

func TestGetOrBuild_CancelledBuildNotCached(t *testing.T) {
	c := New(time.Hour, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetOrBuild(ctx, testKey("BTCUSDT"), func(ctx context.Context) (*domain.Recommendation, error) {
		return nil, ctx.Err()
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCacheBuildFailed))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, c.Len())
}

func TestCache_EmitsHitAndMissEvents(t *testing.T) {
	var mu sync.Mutex
	var types []domain.EventType
	observer := observerFunc(func(e domain.Event) {
		mu.Lock()
		types = append(types, e.Type)
		mu.Unlock()
	})

	c := New(time.Hour, observer, zerolog.Nop())
	builder := func(ctx context.Context) (*domain.Recommendation, error) {
		return testRec("BTCUSDT"), nil
	}

	_, err := c.GetOrBuild(context.Background(), testKey("BTCUSDT"), builder)
	require.NoError(t, err)
	_, err = c.GetOrBuild(context.Background(), testKey("BTCUSDT"), builder)
	require.NoError(t, err)
	c.Invalidate("BTCUSDT")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.EventType{
		domain.EventCacheMiss,
		domain.EventCacheHit,
		domain.EventCacheInvalidate,
	}, types)
}

// observerFunc adapts a function to domain.Observer
type observerFunc func(domain.Event)

func (f observerFunc) OnEvent(e domain.Event) { f(e) }
