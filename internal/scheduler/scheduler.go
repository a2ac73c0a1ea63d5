// Package scheduler drives the periodic refresh of recommendations.
// A cron runner fires the refresh job at configured UTC times of day;
// the job fans out over the tracked instruments with bounded
// parallelism and per-run timeouts.
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New creates a new scheduler. Schedules are evaluated in UTC.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for in-flight cron invocations
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule
// Schedule examples:
//   - "0 5 0 * * *"   - 00:05 UTC daily
//   - "0 30 12 * * *" - 12:30 UTC daily
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug().Str("job", job.Name()).Msg("Running job")

		if err := job.Run(); err != nil {
			s.log.Error().
				Err(err).
				Str("job", job.Name()).
				Msg("Job failed")
		} else {
			s.log.Debug().Str("job", job.Name()).Msg("Job completed")
		}
	})

	if err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// AddDailyJob registers the job at each UTC time of day ("HH:MM")
func (s *Scheduler) AddDailyJob(times []string, job Job) error {
	for _, t := range times {
		parsed, err := time.Parse("15:04", t)
		if err != nil {
			return fmt.Errorf("invalid schedule time %q: %w", t, err)
		}
		spec := fmt.Sprintf("0 %d %d * * *", parsed.Minute(), parsed.Hour())
		if err := s.AddJob(spec, job); err != nil {
			return fmt.Errorf("failed to register %q run: %w", t, err)
		}
	}
	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run()
}
