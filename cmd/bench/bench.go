// bench.go runs a BB84 experiment for each entry in the cartesian product of a
// collection of different tuning parameters, e.g. channel noise and shots sent,
// and outputs a CSV of relevant statistics for each different combination,
// e.g. observed error rate and final key length.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/alan-christopher/qrun/backend/sampler"
	"github.com/alan-christopher/qrun/bb84"
	"github.com/alan-christopher/qrun/internal/logger"
	"github.com/alan-christopher/qrun/job"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
)

var (
	shots     = flag.IntSlice("shots", []int{16384}, "Total photons to send per experiment.")
	circuits  = flag.IntSlice("circuits", []int{1}, "Circuits to spread the shots over.")
	noise     = flag.Float64Slice("noise", []float64{0, 0.02, 0.05}, "Probabilities of the channel flipping a bit.")
	eavesdrop = flag.BoolSlice("eavesdrop", []bool{false}, "Whether an intercept-resend attacker taps the channel.")
	seed      = flag.Uint64("seed", 1, "Seed for every experiment's backend and distillation.")
	logLevel  = flag.String("log-level", "warn", "debug, info, warn or error.")
)

var (
	inputs  = []string{"shots", "circuits", "noise", "eavesdrop"}
	columns = []string{"Shots", "Circuits", "Noise", "Eavesdrop", "Sifted", "Sampled",
		"QBER", "QBERLow", "QBERHigh", "Corrections", "Reconciled", "BitsLeaked",
		"KeyBits", "KeysAgree", "Aborted", "Succeeded"}
)

// An Experiment packages together the result of benchmarking a single
// parameterization for easy formatting.
type Experiment struct {
	// Fields corresponding to experiment parameters
	Shots     int
	Circuits  int
	Noise     float64
	Eavesdrop bool

	// Fields corresponding to experiment results
	bb84.Stats
	Aborted   bool
	Succeeded bool
}

func main() {
	flag.Parse()
	l := logger.New(logger.Config{Level: *logLevel})
	logger.SetGlobalLogger(l)

	fmt.Println(header())
	tmpl := template.Must(template.New("line").Parse(lineTmpl()))
	var args [][]interface{}
	for _, inp := range inputs {
		args = append(args, lookupInput(l, inp))
	}
	applyCartesian(func(args []interface{}) {
		exp := &Experiment{
			Shots:     args[inpIndex("shots")].(int),
			Circuits:  args[inpIndex("circuits")].(int),
			Noise:     args[inpIndex("noise")].(float64),
			Eavesdrop: args[inpIndex("eavesdrop")].(bool),
		}
		if err := bench(exp, l); err != nil {
			l.Warn().Err(err).Interface("experiment", exp).Msg("benching")
		}
		if err := tmpl.Execute(os.Stdout, exp); err != nil {
			l.Fatal().Err(err).Msg("BUG: could not fill in line template")
		}
	}, args)
}

func inpIndex(v string) int {
	for i, inp := range inputs {
		if inp == v {
			return i
		}
	}
	return -1
}

func bench(exp *Experiment, l zerolog.Logger) error {
	b, err := sampler.New(sampler.Opts{
		Model:  bb84.ChannelModel{Noise: exp.Noise, Eavesdrop: exp.Eavesdrop}.Distribution,
		Seed:   *seed,
		Logger: &l,
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	rep, err := bb84.RunExperiment(ctx, b, bb84.ExperimentOpts{
		Circuits: exp.Circuits,
		Shots:    exp.Shots,
		Tapped:   exp.Eavesdrop,
		Monitor:  &job.Watcher{Interval: 10 * time.Millisecond, Logger: l},
		Distill:  bb84.DistillOpts{Rand: rand.New(rand.NewSource(int64(*seed)))},
		Logger:   &l,
	})
	if rep != nil {
		exp.Stats = rep.Stats
	}
	exp.Aborted = errors.Is(err, bb84.ErrQBERTooHigh)
	exp.Succeeded = err == nil
	return err
}

func header() string {
	return strings.Join(columns, ", ")
}

func lineTmpl() string {
	var els []string
	for _, c := range columns {
		els = append(els, "{{."+c+"}}")
	}
	return strings.Join(els, ", ") + "\n"
}

func lookupInput(l zerolog.Logger, name string) []interface{} {
	var r []interface{}
	if v, err := flag.CommandLine.GetIntSlice(name); err == nil {
		for _, val := range v {
			r = append(r, val)
		}
	} else if v, err := flag.CommandLine.GetFloat64Slice(name); err == nil {
		for _, val := range v {
			r = append(r, val)
		}
	} else if v, err := flag.CommandLine.GetBoolSlice(name); err == nil {
		for _, val := range v {
			r = append(r, val)
		}
	} else {
		l.Fatal().Str("input", name).Msg("unknown type for input")
	}
	return r
}

func applyCartesian(f func([]interface{}), args [][]interface{}) {
	for i := range args {
		if len(args[i]) == 1 {
			continue
		}
		l := make([][]interface{}, len(args))
		r := make([][]interface{}, len(args))
		copy(l, args)
		copy(r, args)
		l[i] = args[i][:1]
		r[i] = args[i][1:]
		applyCartesian(f, l)
		applyCartesian(f, r)
		return
	}
	x := make([]interface{}, 0, len(args))
	for _, a := range args {
		x = append(x, a[0])
	}
	f(x)
}
