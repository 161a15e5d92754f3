// Package jobs runs periodic housekeeping on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Job is one named housekeeping task.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Recorder counts job runs.
type Recorder interface {
	JobRun(job string, err error)
}

// Scheduler runs jobs on their cron schedules.
type Scheduler struct {
	cron    *cron.Cron
	rec     Recorder
	timeout time.Duration
}

// NewScheduler creates a Scheduler. Each run gets at most timeout.
func NewScheduler(rec Recorder, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		rec:     rec,
		timeout: timeout,
	}
}

// Add registers a job. Schedules use the standard five-field syntax or
// descriptors such as "@every 5m".
func (s *Scheduler) Add(job Job) error {
	if _, err := s.cron.AddFunc(job.Schedule, func() { s.runOnce(job) }); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", job.Name, err)
	}
	return nil
}

func (s *Scheduler) runOnce(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	err := job.Run(ctx)
	if s.rec != nil {
		s.rec.JobRun(job.Name, err)
	}
	if err != nil {
		log.Error().Err(err).Str("job", job.Name).Msg("Housekeeping job failed")
		return
	}
	log.Debug().Str("job", job.Name).Dur("duration", time.Since(start)).Msg("Housekeeping job finished")
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

// OTPPurger drops expired admin login challenges.
type OTPPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// LimiterPruner drops idle per-client rate limiters.
type LimiterPruner interface {
	Prune(idle time.Duration) int
}

// PurgeOTPs returns a job deleting expired one-time codes.
func PurgeOTPs(p OTPPurger) Job {
	return Job{
		Name:     "purge_otp",
		Schedule: "@every 10m",
		Run: func(ctx context.Context) error {
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				log.Info().Int64("deleted", n).Msg("Purged expired one-time codes")
			}
			return nil
		},
	}
}

// PruneLimiters returns a job dropping rate limiters idle for longer than idle.
func PruneLimiters(p LimiterPruner, idle time.Duration) Job {
	return Job{
		Name:     "prune_limiters",
		Schedule: "@every 5m",
		Run: func(context.Context) error {
			if n := p.Prune(idle); n > 0 {
				log.Debug().Int("pruned", n).Msg("Pruned idle rate limiters")
			}
			return nil
		},
	}
}
