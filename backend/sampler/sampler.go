// Package sampler provides a Backend that stands in for a simulator by drawing
// every shot from a known outcome distribution. It does not simulate circuits;
// a Model supplies the distribution of each one.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alan-christopher/qrun/circuit"
	"github.com/alan-christopher/qrun/counts"
	"github.com/alan-christopher/qrun/job"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// A Distribution maps shots, formatted as by counts.FormatShot, to relative
// weights.
type Distribution map[string]float64

// A Model returns the outcome distribution of a circuit.
type Model func(c circuit.Circuit) (Distribution, error)

// Opts packages together the arguments to New.
type Opts struct {
	// Model supplies outcome distributions. Must be non-nil.
	Model Model

	// Seed seeds the first job; each later job uses the next seed.
	Seed uint64

	// Latency delays every job before it starts running.
	Latency time.Duration

	// Logger defaults to the global logger.
	Logger *zerolog.Logger
}

// A Backend samples shots in the background, one goroutine per job.
type Backend struct {
	model   Model
	latency time.Duration
	log     zerolog.Logger

	mu   sync.Mutex
	seed uint64
}

// New returns a sampling Backend.
func New(opts Opts) (*Backend, error) {
	if opts.Model == nil {
		return nil, errors.New("must provide Model")
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Backend{
		model:   opts.Model,
		latency: opts.Latency,
		log:     logger.With().Str("component", "sampler").Logger(),
		seed:    opts.Seed,
	}, nil
}

// Name implements backend.Backend.
func (b *Backend) Name() string {
	return "sampler"
}

// Submit implements backend.Backend. The job stops early, as cancelled, if ctx
// ends before it finishes.
func (b *Backend) Submit(ctx context.Context, c circuit.Circuit, shots int) (job.Job, error) {
	if shots <= 0 {
		return nil, fmt.Errorf("submitting %d shots", shots)
	}
	dist, err := b.model(c)
	if err != nil {
		return nil, fmt.Errorf("modelling circuit %s: %w", c.Name, err)
	}
	outcomes, weights, err := prepare(dist, c.Registers)
	if err != nil {
		return nil, fmt.Errorf("circuit %s: %w", c.Name, err)
	}

	b.mu.Lock()
	seed := b.seed
	b.seed++
	b.mu.Unlock()

	jctx, cancel := context.WithCancel(ctx)
	j := &samplerJob{
		id:     uuid.NewString(),
		status: job.StatusQueued,
		layout: append([]circuit.Register(nil), c.Registers...),
		cancel: cancel,
	}
	cat := distuv.NewCategorical(weights, rand.NewSource(seed))
	go func() {
		defer cancel()
		j.execute(jctx, b.latency, outcomes, cat, shots, b.log.With().Str("job", j.id).Logger())
	}()
	return j, nil
}

// prepare validates dist against layout and flattens it in a fixed order, so
// that a seed always yields the same shots.
func prepare(dist Distribution, layout []circuit.Register) ([]string, []float64, error) {
	outcomes := make([]string, 0, len(dist))
	for k := range dist {
		outcomes = append(outcomes, k)
	}
	sort.Strings(outcomes)
	weights := make([]float64, len(outcomes))
	for i, o := range outcomes {
		if _, err := counts.ParseShot(o, layout); err != nil {
			return nil, nil, err
		}
		w := dist[o]
		if w < 0 {
			return nil, nil, fmt.Errorf("outcome %q has negative weight %v", o, w)
		}
		weights[i] = w
	}
	if len(weights) == 0 || floats.Sum(weights) <= 0 {
		return nil, nil, errors.New("distribution has no weight")
	}
	return outcomes, weights, nil
}

type samplerJob struct {
	id     string
	layout []circuit.Register
	cancel context.CancelFunc

	mu     sync.Mutex
	status job.Status
	memory []string
}

func (j *samplerJob) ID() string {
	return j.id
}

func (j *samplerJob) Status() job.Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Cancel implements job.Canceller.
func (j *samplerJob) Cancel() {
	j.cancel()
}

func (j *samplerJob) Result() (job.Result, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != job.StatusDone {
		return nil, fmt.Errorf("job %s is %v", j.id, j.status)
	}
	return &result{layout: j.layout, memory: j.memory}, nil
}

func (j *samplerJob) setStatus(s job.Status) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}

func (j *samplerJob) execute(ctx context.Context, latency time.Duration, outcomes []string, cat distuv.Categorical, shots int, logger zerolog.Logger) {
	if latency > 0 {
		t := time.NewTimer(latency)
		select {
		case <-ctx.Done():
			t.Stop()
			j.setStatus(job.StatusCancelled)
			logger.Debug().Err(ctx.Err()).Msg("cancelled while queued")
			return
		case <-t.C:
		}
	}
	j.setStatus(job.StatusRunning)
	memory := make([]string, shots)
	for i := range memory {
		if i%1024 == 0 && ctx.Err() != nil {
			j.setStatus(job.StatusCancelled)
			logger.Debug().Err(ctx.Err()).Int("shots_done", i).Msg("cancelled while running")
			return
		}
		memory[i] = outcomes[int(cat.Rand())]
	}
	j.mu.Lock()
	j.memory = memory
	j.status = job.StatusDone
	j.mu.Unlock()
	logger.Debug().Int("shots", shots).Msg("done")
}

type result struct {
	layout []circuit.Register
	memory []string
}

func (r *result) Registers() []circuit.Register {
	return r.layout
}

func (r *result) Memory() ([]string, error) {
	return append([]string(nil), r.memory...), nil
}
