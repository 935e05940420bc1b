package bb84

import (
	"context"
	"errors"
	"fmt"

	"github.com/alan-christopher/qrun/backend"
	"github.com/alan-christopher/qrun/bb84/bitmap"
	"github.com/alan-christopher/qrun/circuit"
	"github.com/alan-christopher/qrun/counts"
	"github.com/alan-christopher/qrun/job"
	"github.com/alan-christopher/qrun/run"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ExperimentOpts packages together the arguments to RunExperiment.
type ExperimentOpts struct {
	// Circuits is the number of circuits the shots are spread over. Defaults
	// to 1.
	Circuits int

	// Shots is the total number of photons sent. Defaults to
	// backend.DefaultShots.
	Shots int

	// Tapped builds circuits that record an eavesdropper. It must match the
	// backend's channel.
	Tapped bool

	CollapseSingle bool

	// Monitor watches the jobs. Defaults to a job.Watcher.
	Monitor job.Monitor

	Distill DistillOpts

	// Logger defaults to the global logger.
	Logger *zerolog.Logger
}

// A Report is the outcome of one experiment.
type Report struct {
	Run *run.Run

	// Counts is the sifted agreement table, "<alice bit> <bob bit>" to
	// number of shots, merged over the batch.
	Counts counts.Counts

	Stats Stats
	Key   bitmap.Dense
}

// RunExperiment submits a batch of BB84 circuits to b, waits for the jobs,
// finalizes the run and distills a key from its memory.
//
// If distillation fails the Report still carries the run, counts and the
// stats gathered so far, alongside the error.
func RunExperiment(ctx context.Context, b backend.Backend, opts ExperimentOpts) (*Report, error) {
	n := opts.Circuits
	if n == 0 {
		n = 1
	}
	if n < 0 {
		return nil, errors.New("Circuits must be positive")
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logger.With().Str("component", "bb84").Logger()

	circuits := make([]circuit.Circuit, n)
	for i := range circuits {
		circuits[i] = NewCircuit(fmt.Sprintf("bb84-%d", i), opts.Tapped)
	}
	r, err := backend.Execute(ctx, b, circuits, backend.ExecuteOpts{
		Shots:          opts.Shots,
		CollapseSingle: opts.CollapseSingle,
		Monitor:        opts.Monitor,
		Logger:         &logger,
	})
	if err != nil {
		return nil, err
	}
	if err := r.Monitor(ctx); err != nil {
		return nil, fmt.Errorf("monitoring jobs: %w", err)
	}
	if err := r.Finalize(nil, false); err != nil {
		return nil, err
	}

	rep := &Report{Run: r}
	pending, err := r.Counts()
	if err != nil {
		return nil, err
	}
	var tables []counts.Counts
	for i, p := range pending.All() {
		c, err := p.Eval()
		if err != nil {
			return nil, fmt.Errorf("counting circuit %d: %w", i, err)
		}
		tables = append(tables, c)
	}
	rep.Counts = counts.Merge(tables...)

	mem, err := r.Memory()
	if err != nil {
		return nil, err
	}
	var memory []string
	for _, m := range mem.All() {
		memory = append(memory, m...)
	}
	rep.Key, rep.Stats, err = Distill(memory, circuits[0].Registers, opts.Distill)
	logger.Info().
		Int("shots", rep.Stats.Shots).
		Int("sifted", rep.Stats.Sifted).
		Float64("qber", rep.Stats.QBER).
		Int("key_bits", rep.Stats.KeyBits).
		Bool("keys_agree", rep.Stats.KeysAgree).
		AnErr("distill_err", err).
		Msg("experiment done")
	if err != nil {
		return rep, fmt.Errorf("distilling key: %w", err)
	}
	return rep, nil
}
