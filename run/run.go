// Package run tracks a batch of circuits submitted together and collects their
// results once, after every job has finished.
//
// A Run starts out unfinalized with only its circuits and jobs populated.
// Finalize fetches every job's result and memory and prepares, per circuit, a
// deferred counts computation; after that the run is finalized and stays so.
// A Run is meant for a single owner and does no locking of its own.
package run

import (
	"context"
	"fmt"

	"github.com/alan-christopher/qrun/circuit"
	"github.com/alan-christopher/qrun/counts"
	"github.com/alan-christopher/qrun/job"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Opts packages together the optional parts of a Run.
type Opts struct {
	// CollapseSingle makes every View of a one-circuit run present its single
	// entry directly.
	CollapseSingle bool

	// Aggregator computes counts on demand. Defaults to counts.Aggregate.
	Aggregator Aggregator

	// Monitor observes jobs on behalf of Run.Monitor. Defaults to a
	// job.Watcher.
	Monitor job.Monitor

	// Logger receives diagnostic notices. Defaults to the global logger.
	Logger *zerolog.Logger
}

// A Run is a fixed batch of (circuit, job) pairs plus the results collected
// from them.
type Run struct {
	circuits  []circuit.Circuit
	jobs      []job.Job
	collapse  bool
	aggregate Aggregator
	monitor   job.Monitor
	log       zerolog.Logger

	result []job.Result
	memory [][]string
	counts []*PendingCounts
}

// New returns an unfinalized Run over circuits and jobs, which must be of equal,
// non-zero length and are paired by position.
func New(circuits []circuit.Circuit, jobs []job.Job, opts Opts) (*Run, error) {
	if len(circuits) != len(jobs) {
		return nil, invariantf("%d circuits paired with %d jobs", len(circuits), len(jobs))
	}
	if len(circuits) == 0 {
		return nil, invariantf("empty batch")
	}
	agg := opts.Aggregator
	if agg == nil {
		agg = counts.Aggregate
	}
	mon := opts.Monitor
	if mon == nil {
		mon = job.NewWatcher()
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Run{
		circuits:  append([]circuit.Circuit(nil), circuits...),
		jobs:      append([]job.Job(nil), jobs...),
		collapse:  opts.CollapseSingle,
		aggregate: agg,
		monitor:   mon,
		log:       logger.With().Str("component", "run").Int("batch", len(circuits)).Logger(),
	}, nil
}

// Size returns the number of circuits in the batch.
func (r *Run) Size() int {
	return len(r.circuits)
}

// Circuits returns the submitted circuits.
func (r *Run) Circuits() (View[circuit.Circuit], error) {
	return view(r, r.circuits, "circuits")
}

// Jobs returns the job handles, aligned with Circuits.
func (r *Run) Jobs() (View[job.Job], error) {
	return view(r, r.jobs, "jobs")
}

// Result returns the raw job results. Unset until finalized.
func (r *Run) Result() (View[job.Result], error) {
	return view(r, r.result, "result")
}

// Memory returns the per-shot memory of each job. Unset until finalized.
func (r *Run) Memory() (View[[]string], error) {
	return view(r, r.memory, "memory")
}

// Counts returns the deferred counts of each circuit. Unset until finalized.
func (r *Run) Counts() (View[*PendingCounts], error) {
	return view(r, r.counts, "counts")
}

// IsFinalized reports whether results have been collected. It fails if the
// result fields are only partially populated.
func (r *Run) IsFinalized() (bool, error) {
	set := 0
	if r.result != nil {
		set++
	}
	if r.memory != nil {
		set++
	}
	if r.counts != nil {
		set++
	}
	switch set {
	case 0:
		return false, nil
	case 3:
		return true, nil
	}
	return false, invariantf("%d of 3 result fields populated", set)
}

// Finalize collects the result and memory of every job and prepares deferred
// counts for every circuit, keeping only keys accepted by filter (nil keeps
// all). Every job must be done. Finalizing an already finalized run does
// nothing unless forceRedo is set.
func (r *Run) Finalize(filter counts.KeyFilter, forceRedo bool) error {
	finalized, err := r.IsFinalized()
	if err != nil {
		return err
	}
	for i, j := range r.jobs {
		if s := j.Status(); s != job.StatusDone {
			return &JobNotReadyError{Index: i, JobID: j.ID(), Status: s}
		}
	}
	if finalized && !forceRedo {
		r.log.Warn().Msg("run already finalized; pass forceRedo to recompute")
		return nil
	}

	results := make([]job.Result, len(r.jobs))
	memory := make([][]string, len(r.jobs))
	for i, j := range r.jobs {
		res, err := j.Result()
		if err != nil {
			return fmt.Errorf("fetching result of job %d (%s): %w", i, j.ID(), err)
		}
		mem, err := res.Memory()
		if err != nil {
			return fmt.Errorf("fetching memory of job %d (%s): %w", i, j.ID(), err)
		}
		results[i] = res
		memory[i] = mem
	}
	pending := make([]*PendingCounts, len(r.circuits))
	for i, c := range r.circuits {
		specs, pred := countSpecs(c)
		pending[i] = newPendingCounts(results[i], specs, pred, filter, r.aggregate)
	}

	r.result, r.memory, r.counts = results, memory, pending
	r.log.Debug().Bool("forced", finalized).Msg("run finalized")
	return nil
}

// Monitor hands the batch's jobs to the configured job.Monitor. It does
// nothing once the run is finalized.
func (r *Run) Monitor(ctx context.Context) error {
	finalized, err := r.IsFinalized()
	if err != nil {
		return err
	}
	if finalized {
		r.log.Info().Msg("run finalized; no jobs to monitor")
		return nil
	}
	return r.monitor.Monitor(ctx, append([]job.Job(nil), r.jobs...))
}

// countSpecs derives the registers counts are keyed on, and the agreement
// predicate if any, from the circuit's party metadata.
func countSpecs(c circuit.Circuit) ([]string, counts.Predicate) {
	p := c.Parties
	if !p.Named() {
		return nil, nil
	}
	specs := []string{circuit.RecvRegister(p.Party1), circuit.RecvRegister(p.Party2)}
	if p.BasisChoice != circuit.BasisRandom {
		return specs, nil
	}
	return specs, counts.Equal(circuit.BasisRegister(p.Party1), circuit.BasisRegister(p.Party2))
}

func view[T any](r *Run, items []T, field string) (View[T], error) {
	if items == nil {
		return View[T]{}, nil
	}
	if len(items) != len(r.circuits) {
		return View[T]{}, invariantf("%s holds %d entries for a batch of %d", field, len(items), len(r.circuits))
	}
	return View[T]{items: items, collapse: r.collapse, set: true}, nil
}
