package scheduler

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/advisor/internal/cache"
	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/internal/engine"
)

// RefreshJob rebuilds the recommendation for every tracked instrument.
// Runs go through the cache's single-flight guard, so a scheduled run
// and a concurrent API call for the same bar coalesce into one build.
type RefreshJob struct {
	instruments []string
	cache       *cache.Cache
	engine      *engine.Engine
	parallelism int
	runTimeout  time.Duration
	observer    domain.Observer
	log         zerolog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	now     func() time.Time
}

// RefreshJobConfig holds refresh job configuration
type RefreshJobConfig struct {
	Instruments []string
	Cache       *cache.Cache
	Engine      *engine.Engine
	Parallelism int // zero selects the number of CPU cores
	RunTimeout  time.Duration
	Observer    domain.Observer
	Log         zerolog.Logger
}

// NewRefreshJob creates the refresh job
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = domain.NopObserver{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RefreshJob{
		instruments: cfg.Instruments,
		cache:       cfg.Cache,
		engine:      cfg.Engine,
		parallelism: parallelism,
		runTimeout:  cfg.RunTimeout,
		observer:    observer,
		log:         cfg.Log.With().Str("job", "refresh").Logger(),
		baseCtx:     ctx,
		cancel:      cancel,
		now:         time.Now,
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "refresh"
}

// Run refreshes all tracked instruments with bounded parallelism.
// One instrument failing or timing out does not affect the others;
// the tick summary reports the counts.
func (j *RefreshJob) Run() error {
	if j.baseCtx.Err() != nil {
		return errors.New("refresh job is stopped")
	}

	j.wg.Add(1)
	defer j.wg.Done()

	started := j.now()
	asOf := started.UTC()

	var mu sync.Mutex
	var succeeded, failed, timedOut int

	g := new(errgroup.Group)
	g.SetLimit(j.parallelism)
	for _, instrument := range j.instruments {
		instrument := instrument
		g.Go(func() error {
			err := j.refreshOne(instrument, asOf)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, context.DeadlineExceeded):
				timedOut++
			default:
				failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	j.observer.OnEvent(domain.Event{
		Type: domain.EventSchedulerTickSummary,
		Fields: map[string]interface{}{
			"succeeded":   succeeded,
			"failed":      failed,
			"timed_out":   timedOut,
			"duration_ms": time.Since(started).Milliseconds(),
		},
	})
	j.log.Info().
		Int("succeeded", succeeded).
		Int("failed", failed).
		Int("timed_out", timedOut).
		Msg("Refresh tick finished")

	return nil
}

func (j *RefreshJob) refreshOne(instrument string, asOf time.Time) error {
	runCtx, cancel := context.WithTimeout(j.baseCtx, j.runTimeout)
	defer cancel()

	key := cache.NewKey(instrument, j.engine.Timeframe(), asOf)
	_, err := j.cache.GetOrBuild(runCtx, key, func(ctx context.Context) (*domain.Recommendation, error) {
		return j.engine.Recommend(ctx, instrument, asOf)
	})
	if err != nil {
		j.log.Warn().Err(err).Str("instrument", instrument).Msg("Refresh failed")
	}
	return err
}

// Stop prevents new runs, cancels in-flight ones and waits for them up
// to the grace period
func (j *RefreshJob) Stop(grace time.Duration) {
	j.cancel()

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		j.log.Info().Msg("Refresh job stopped")
	case <-time.After(grace):
		j.log.Warn().Dur("grace", grace).Msg("Refresh job stop exceeded grace period")
	}
}
