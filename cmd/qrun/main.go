// qrun runs one BB84 experiment on the sampling backend and prints a summary
// of the run and the distilled key. Settings come from an optional YAML file,
// overridden by flags.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/template"
	"time"

	"github.com/alan-christopher/qrun/backend/sampler"
	"github.com/alan-christopher/qrun/bb84"
	"github.com/alan-christopher/qrun/internal/config"
	"github.com/alan-christopher/qrun/internal/logger"
	"github.com/alan-christopher/qrun/job"
	"github.com/alan-christopher/qrun/report"
	flag "github.com/spf13/pflag"
)

const summaryTmpl = `circuits:   {{.Circuits}}
shots:      {{.Stats.Shots}}
sifted:     {{.Stats.Sifted}} ({{.Stats.Sampled}} sampled)
qber:       {{printf "%.4f" .Stats.QBER}} [{{printf "%.4f" .Stats.QBERLow}}, {{printf "%.4f" .Stats.QBERHigh}}]
corrected:  {{.Stats.Corrections}} blocks, {{.Stats.Reconciled}} bits kept
leaked:     {{printf "%.1f" .Stats.BitsLeaked}} bits
key:        {{.Stats.KeyBits}} bits, agree={{.Stats.KeysAgree}}
{{- range .Counts}}
  {{.Key}}: {{.N}}
{{- end}}
{{if .Err}}error:      {{.Err}}
{{end}}`

type countLine struct {
	Key string
	N   int
}

type summary struct {
	Circuits int
	Stats    bb84.Stats
	Counts   []countLine
	Err      error
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("qrun", flag.ContinueOnError)
	var (
		cfgPath   = fs.String("config", "", "YAML file with experiment settings.")
		seed      = fs.Uint64("seed", 0, "Seed for the backend and distillation.")
		shots     = fs.Int("shots", 0, "Total photons to send, spread over all circuits.")
		circuits  = fs.Int("circuits", 0, "Number of circuits in the batch.")
		noise     = fs.Float64("noise", 0, "Probability the channel flips a bit.")
		eavesdrop = fs.Bool("eavesdrop", false, "Put an intercept-resend attacker on the channel.")
		eveBasis  = fs.String("eve-basis", "", "Basis the attacker measures in: Z, X or random.")
		collapse  = fs.Bool("collapse-single", false, "Present single-circuit runs without the batch dimension.")
		logLevel  = fs.String("log-level", "", "debug, info, warn or error.")
		pretty    = fs.Bool("pretty", false, "Human readable logs.")
		out       = fs.String("out", "", "File to write the encoded experiment to.")
		format    = fs.String("format", "json", "Encoding for --out: json, or binary to append a framed record.")
		timeout   = fs.Duration("timeout", time.Minute, "Give up on the jobs after this long.")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *format != "json" && *format != "binary" {
		return fmt.Errorf("unknown format %q", *format)
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			return err
		}
	}
	if fs.Changed("seed") {
		cfg.Seed = *seed
	}
	if fs.Changed("shots") {
		cfg.Shots = *shots
	}
	if fs.Changed("circuits") {
		cfg.Circuits = *circuits
	}
	if fs.Changed("noise") {
		cfg.Channel.Noise = *noise
	}
	if fs.Changed("eavesdrop") {
		cfg.Channel.Eavesdrop = *eavesdrop
	}
	if fs.Changed("eve-basis") {
		cfg.Channel.EveBasis = *eveBasis
	}
	if fs.Changed("collapse-single") {
		cfg.CollapseSingle = *collapse
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if fs.Changed("pretty") {
		cfg.Log.Pretty = *pretty
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	l := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.SetGlobalLogger(l)

	b, err := sampler.New(sampler.Opts{
		Model:   cfg.ChannelModel().Distribution,
		Seed:    cfg.Seed,
		Latency: cfg.Latency,
		Logger:  &l,
	})
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	rep, expErr := bb84.RunExperiment(ctx, b, bb84.ExperimentOpts{
		Circuits:       cfg.Circuits,
		Shots:          cfg.Shots,
		Tapped:         cfg.Channel.Eavesdrop,
		CollapseSingle: cfg.CollapseSingle,
		Monitor: &job.Watcher{
			Interval: cfg.PollInterval,
			Logger:   l.With().Str("component", "job_monitor").Logger(),
		},
		Distill: cfg.DistillOpts(),
		Logger:  &l,
	})
	if rep == nil {
		return expErr
	}

	s := summary{Circuits: rep.Run.Size(), Stats: rep.Stats, Err: expErr}
	for _, k := range rep.Counts.Keys() {
		s.Counts = append(s.Counts, countLine{Key: k, N: rep.Counts[k]})
	}
	if err := template.Must(template.New("summary").Parse(summaryTmpl)).Execute(stdout, s); err != nil {
		return err
	}
	if *out != "" {
		if err := write(rep, *out, *format); err != nil {
			return err
		}
		l.Info().Str("path", *out).Str("format", *format).Msg("experiment written")
	}
	return expErr
}

func write(rep *bb84.Report, path, format string) error {
	enc, err := report.EncodeExperiment(rep)
	if err != nil {
		return err
	}
	if format == "json" {
		js, err := report.MarshalJSON(enc)
		if err != nil {
			return err
		}
		return os.WriteFile(path, append(js, '\n'), 0o644)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := report.NewFramer(f).Write(enc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
