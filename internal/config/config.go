// Package config loads experiment settings for the commands from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/alan-christopher/qrun/bb84"
	"github.com/alan-christopher/qrun/circuit"
	"gopkg.in/yaml.v3"
)

// Config is the full set of settings for one experiment. Durations are
// written the way time.ParseDuration reads them.
type Config struct {
	Seed           uint64        `yaml:"seed"`
	Shots          int           `yaml:"shots"`
	Circuits       int           `yaml:"circuits"`
	CollapseSingle bool          `yaml:"collapse_single"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	Latency        time.Duration `yaml:"latency"`
	Channel        Channel       `yaml:"channel"`
	Distill        Distill       `yaml:"distill"`
	Log            Log           `yaml:"log"`
}

// Channel configures the simulated quantum channel.
type Channel struct {
	Noise     float64 `yaml:"noise"`
	Eavesdrop bool    `yaml:"eavesdrop"`
	EveBasis  string  `yaml:"eve_basis,omitempty"`
}

// Distill configures key distillation; see bb84.DistillOpts.
type Distill struct {
	SampleProportion float64 `yaml:"sample_proportion"`
	Epsilon          float64 `yaml:"epsilon"`
	MaxQBER          float64 `yaml:"max_qber"`
	Confidence       float64 `yaml:"confidence"`
	WinnowIters      []int   `yaml:"winnow_iters,flow"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the settings used for anything a config file leaves out.
func Default() Config {
	return Config{
		Seed:         1,
		Shots:        16384,
		Circuits:     1,
		PollInterval: 50 * time.Millisecond,
		Channel: Channel{
			EveBasis: circuit.BasisRandom,
		},
		Distill: Distill{
			SampleProportion: bb84.DefaultSampleProportion,
			Epsilon:          bb84.DefaultEpsilon,
			MaxQBER:          bb84.DefaultMaxQBER,
			Confidence:       bb84.DefaultConfidence,
			WinnowIters:      append([]int(nil), bb84.DefaultWinnowIters...),
		},
		Log: Log{Level: "info"},
	}
}

// Load reads the YAML file at path over Default and validates the result.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML over Default and validates the result. Unknown keys are
// an error.
func Parse(raw []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	cfg.Channel.EveBasis, _ = bb84.ParseBasis(cfg.Channel.EveBasis)
	return cfg, nil
}

// Validate checks every setting for range and consistency.
func (c Config) Validate() error {
	if c.Shots <= 0 {
		return errors.New("shots must be positive")
	}
	if c.Circuits <= 0 {
		return errors.New("circuits must be positive")
	}
	if c.Shots < c.Circuits {
		return fmt.Errorf("shots (%d) must cover circuits (%d)", c.Shots, c.Circuits)
	}
	if c.PollInterval <= 0 {
		return errors.New("poll_interval must be positive")
	}
	if c.Latency < 0 {
		return errors.New("latency must not be negative")
	}
	if c.Channel.Noise < 0 || c.Channel.Noise > 1 {
		return fmt.Errorf("channel.noise must lie in [0, 1], got %v", c.Channel.Noise)
	}
	if _, err := bb84.ParseBasis(c.Channel.EveBasis); err != nil {
		return fmt.Errorf("channel.eve_basis: %w", err)
	}
	d := c.Distill
	if d.SampleProportion <= 0 || d.SampleProportion >= 1 {
		return fmt.Errorf("distill.sample_proportion must lie in (0, 1), got %v", d.SampleProportion)
	}
	if d.Epsilon <= 0 || d.Epsilon >= 1 {
		return fmt.Errorf("distill.epsilon must lie in (0, 1), got %v", d.Epsilon)
	}
	if d.MaxQBER <= 0 || d.MaxQBER > 0.5 {
		return fmt.Errorf("distill.max_qber must lie in (0, 0.5], got %v", d.MaxQBER)
	}
	if d.Confidence <= 0 || d.Confidence >= 1 {
		return fmt.Errorf("distill.confidence must lie in (0, 1), got %v", d.Confidence)
	}
	if len(d.WinnowIters) == 0 {
		return errors.New("distill.winnow_iters must be non-empty")
	}
	for i, h := range d.WinnowIters {
		if h < 2 || h > 16 {
			return fmt.Errorf("distill.winnow_iters[%d] must lie in [2, 16], got %d", i, h)
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level unsupported: %q", c.Log.Level)
	}
	return nil
}

// ChannelModel returns the channel the sampler backend should simulate, with
// the eavesdropper's basis in canonical form.
func (c Config) ChannelModel() bb84.ChannelModel {
	basis := c.Channel.EveBasis
	if canon, err := bb84.ParseBasis(basis); err == nil {
		basis = canon
	}
	return bb84.ChannelModel{
		Noise:     c.Channel.Noise,
		Eavesdrop: c.Channel.Eavesdrop,
		EveBasis:  basis,
	}
}

// DistillOpts returns distillation options drawing randomness from a source
// seeded with the config's seed.
func (c Config) DistillOpts() bb84.DistillOpts {
	return bb84.DistillOpts{
		Rand:             rand.New(rand.NewSource(int64(c.Seed))),
		SampleProportion: c.Distill.SampleProportion,
		EpsilonPrivacy:   c.Distill.Epsilon,
		WinnowIters:      append([]int(nil), c.Distill.WinnowIters...),
		MaxQBER:          c.Distill.MaxQBER,
		Confidence:       c.Distill.Confidence,
	}
}
