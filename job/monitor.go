package job

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultPollInterval is how often Watcher and Wait poll job status unless told
// otherwise.
var DefaultPollInterval = 250 * time.Millisecond

// A Monitor observes a set of jobs. Monitoring never changes a job.
type Monitor interface {
	Monitor(ctx context.Context, jobs []Job) error
}

// A Watcher is a Monitor that logs every status transition and returns once
// all jobs are terminal.
type Watcher struct {
	Interval time.Duration
	Logger   zerolog.Logger
}

// NewWatcher returns a Watcher polling at DefaultPollInterval and logging via
// the global logger.
func NewWatcher() *Watcher {
	return &Watcher{
		Interval: DefaultPollInterval,
		Logger:   log.Logger.With().Str("component", "job_monitor").Logger(),
	}
}

// Monitor implements the Monitor interface.
func (w *Watcher) Monitor(ctx context.Context, jobs []Job) error {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	last := make([]Status, len(jobs))
	for i := range last {
		last[i] = -1
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		pending := 0
		for i, j := range jobs {
			s := j.Status()
			if s != last[i] {
				w.Logger.Info().
					Str("job", j.ID()).
					Int("index", i).
					Str("status", s.String()).
					Msg("job status")
				last[i] = s
			}
			if !s.Terminal() {
				pending++
			}
		}
		if pending == 0 {
			w.Logger.Debug().Int("jobs", len(jobs)).Msg("all jobs terminal")
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("monitoring %d pending jobs: %w", pending, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Wait polls jobs until all are terminal. It returns an error naming the first
// job that ended in a status other than StatusDone.
func Wait(ctx context.Context, jobs []Job, interval time.Duration) error {
	w := &Watcher{Interval: interval, Logger: zerolog.Nop()}
	if err := w.Monitor(ctx, jobs); err != nil {
		return err
	}
	for i, j := range jobs {
		if s := j.Status(); s != StatusDone {
			return fmt.Errorf("job %d (%s) ended %v", i, j.ID(), s)
		}
	}
	return nil
}
