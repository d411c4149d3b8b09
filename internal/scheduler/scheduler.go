// Package scheduler runs periodic maintenance jobs on cron specs.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler wraps a cron runner with per-job logging and timeouts.
type Scheduler struct {
	cron       *cron.Cron
	jobTimeout time.Duration
	log        zerolog.Logger
}

// New creates a stopped scheduler. Call Start once all jobs are registered.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		jobTimeout: time.Minute,
		log:        log.With().Str("component", "scheduler").Logger(),
	}
}

// AddJob registers fn under the given cron spec. Specs use the standard
// 5-field format or descriptors like "@every 10m". Job errors are logged,
// never fatal.
func (s *Scheduler) AddJob(spec, name string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("scheduled job failed")
			return
		}
		s.log.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("scheduled job done")
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("job", name).Str("spec", spec).Msg("scheduled job registered")
	return nil
}

// Start begins running registered jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and returns a context that is done once in-flight
// jobs complete.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
