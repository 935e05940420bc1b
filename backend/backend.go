// Package backend submits circuits for execution and wraps the resulting jobs
// in a run.Run.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/alan-christopher/qrun/circuit"
	"github.com/alan-christopher/qrun/job"
	"github.com/alan-christopher/qrun/run"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultShots is the total number of shots Execute spreads over a batch when
// none is given.
var DefaultShots = 1024

// A Backend executes circuits. Submit must not wait for the job to finish.
type Backend interface {
	Name() string
	Submit(ctx context.Context, c circuit.Circuit, shots int) (job.Job, error)
}

// ExecuteOpts packages together the arguments of Execute.
type ExecuteOpts struct {
	// Shots is the total shot budget, split across the circuits. Defaults to
	// DefaultShots.
	Shots int

	// CollapseSingle is passed on to the Run.
	CollapseSingle bool

	// Monitor is passed on to the Run.
	Monitor job.Monitor

	// Logger defaults to the global logger.
	Logger *zerolog.Logger
}

// SplitShots divides total shots over n circuits as evenly as possible, giving
// the remainder to the first circuits. Every circuit gets at least one shot.
func SplitShots(total, n int) ([]int, error) {
	if n < 1 {
		return nil, errors.New("splitting shots over an empty batch")
	}
	if total < n {
		return nil, fmt.Errorf("cannot split %d shots over %d circuits", total, n)
	}
	r := make([]int, n)
	for i := range r {
		r[i] = total / n
		if i < total%n {
			r[i]++
		}
	}
	return r, nil
}

// Execute submits every circuit to b and returns the unfinalized Run tracking
// them. It does not wait for the jobs.
func Execute(ctx context.Context, b Backend, circuits []circuit.Circuit, opts ExecuteOpts) (*run.Run, error) {
	for _, c := range circuits {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	shots := opts.Shots
	if shots == 0 {
		shots = DefaultShots
	}
	split, err := SplitShots(shots, len(circuits))
	if err != nil {
		return nil, err
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logger.With().Str("backend", b.Name()).Logger()

	jobs := make([]job.Job, 0, len(circuits))
	for i, c := range circuits {
		j, err := b.Submit(ctx, c, split[i])
		if err != nil {
			cancelAll(jobs, logger)
			return nil, fmt.Errorf("submitting circuit %d (%s): %w", i, c.Name, err)
		}
		logger.Debug().
			Str("circuit", c.Name).
			Str("job", j.ID()).
			Int("shots", split[i]).
			Msg("submitted")
		jobs = append(jobs, j)
	}
	r, err := run.New(circuits, jobs, run.Opts{
		CollapseSingle: opts.CollapseSingle,
		Monitor:        opts.Monitor,
		Logger:         &logger,
	})
	if err != nil {
		cancelAll(jobs, logger)
		return nil, err
	}
	return r, nil
}

// cancelAll stops the jobs of a batch that could not be submitted in full.
// Jobs that cannot be cancelled are left to finish.
func cancelAll(jobs []job.Job, logger zerolog.Logger) {
	for _, j := range jobs {
		c, ok := j.(job.Canceller)
		if !ok {
			logger.Warn().Str("job", j.ID()).Msg("orphaned job cannot be cancelled")
			continue
		}
		c.Cancel()
	}
}
