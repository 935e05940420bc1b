// qbits samples a prepared-state circuit on the sampling backend: one of the
// four Bell states, or a batch of fair random bits. For random bits it can
// also hand the sampled bits out through a budgeted sender.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/template"
	"time"

	"github.com/alan-christopher/qrun/backend"
	"github.com/alan-christopher/qrun/backend/sampler"
	"github.com/alan-christopher/qrun/circuit"
	"github.com/alan-christopher/qrun/counts"
	"github.com/alan-christopher/qrun/internal/logger"
	"github.com/alan-christopher/qrun/job"
	qrun "github.com/alan-christopher/qrun/run"
	"github.com/alan-christopher/qrun/states"
	flag "github.com/spf13/pflag"
)

const outTmpl = `state:  {{.State}}
shots:  {{.Shots}}
{{- range .Counts}}
  {{.Key}}: {{.N}}
{{- end}}
{{if .Sent}}sent:   {{.Sent}}
{{end}}`

type countLine struct {
	Key string
	N   int
}

type output struct {
	State  string
	Shots  int
	Counts []countLine
	Sent   string
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("qbits", flag.ContinueOnError)
	var (
		state    = fs.String("state", "phi+", "phi+, psi-, phi-, psi+ or random.")
		width    = fs.Int("bits", 1, "Qubits per shot when --state=random.")
		shots    = fs.Int("shots", 1024, "Shots to sample.")
		seed     = fs.Uint64("seed", 1, "Seed for the backend.")
		send     = fs.Int("send", 0, "With --state=random, send this many sampled bits.")
		limit    = fs.Int("send-limit", states.DefaultSendLimit, "Cumulative budget of the bit sender.")
		logLevel = fs.String("log-level", "info", "debug, info, warn or error.")
		timeout  = fs.Duration("timeout", time.Minute, "Give up on the job after this long.")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	l := logger.New(logger.Config{Level: *logLevel})
	logger.SetGlobalLogger(l)

	var (
		c     circuit.Circuit
		model sampler.Model
	)
	if *state == "random" {
		var err error
		if c, err = states.RandomBits("random", *width); err != nil {
			return err
		}
		model = states.Uniform
	} else {
		if *send != 0 {
			return errors.New("--send needs --state=random")
		}
		kind, err := states.ParseBellKind(*state)
		if err != nil {
			return err
		}
		b, err := states.NewBell(kind)
		if err != nil {
			return err
		}
		c, model = b.Circuit(kind.String()), b.Distribution
	}

	b, err := sampler.New(sampler.Opts{Model: model, Seed: *seed, Logger: &l})
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	r, err := backend.Execute(ctx, b, []circuit.Circuit{c}, backend.ExecuteOpts{
		Shots:          *shots,
		CollapseSingle: true,
		Monitor: &job.Watcher{
			Interval: 10 * time.Millisecond,
			Logger:   l.With().Str("component", "job_monitor").Logger(),
		},
		Logger: &l,
	})
	if err != nil {
		return err
	}
	if err := r.Monitor(ctx); err != nil {
		return err
	}
	if err := r.Finalize(nil, false); err != nil {
		return err
	}
	cnt, mem, err := single(r)
	if err != nil {
		return err
	}

	out := output{State: *state, Shots: cnt.Total()}
	for _, k := range cnt.Keys() {
		out.Counts = append(out.Counts, countLine{Key: k, N: cnt[k]})
	}
	if *send > 0 {
		bits, err := states.BitsFromMemory(mem)
		if err != nil {
			return err
		}
		snd, err := states.NewSender(bits, *limit)
		if err != nil {
			return err
		}
		sent, err := snd.Send(*send)
		if err != nil {
			return err
		}
		out.Sent = sent.String()
		l.Info().Int("sent", snd.Done()).Int("left", snd.Left()).Msg("bits sent")
	}
	return template.Must(template.New("qbits").Parse(outTmpl)).Execute(stdout, out)
}

// single returns the counts and memory of a finalized one-circuit run.
func single(r *qrun.Run) (counts.Counts, []string, error) {
	cv, err := r.Counts()
	if err != nil {
		return nil, nil, err
	}
	pending, ok := cv.Single()
	if !ok {
		return nil, nil, fmt.Errorf("run of %d circuits is not single", r.Size())
	}
	cnt, err := pending.Eval()
	if err != nil {
		return nil, nil, err
	}
	mv, err := r.Memory()
	if err != nil {
		return nil, nil, err
	}
	mem, _ := mv.Single()
	return cnt, mem, nil
}
