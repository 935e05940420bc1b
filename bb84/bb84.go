// Package bb84 runs the BB84 key exchange as a batch of circuits on a backend
// and distills a shared secret from the measured shots.
//
// Every shot of a BB84 circuit records one photon: the basis and bit Alice
// prepared, the basis Bob measured in and the bit he read, and, on a tapped
// channel, the same for Eve. Distill turns a run's worth of shots into a key
// by sifting, error estimation, Winnow reconciliation (see
// https://arxiv.org/abs/quant-ph/0203096) and Toeplitz privacy amplification.
package bb84

import (
	"errors"
	"math/rand"
)

var (
	DefaultEpsilon          = 1e-12
	DefaultSampleProportion = 0.5
	DefaultMaxQBER          = 0.11
	DefaultConfidence       = 0.95
	DefaultWinnowIters      = []int{3, 3, 3, 4, 6, 7, 7, 7}
)

// ErrQBERTooHigh is returned when the estimated error rate is too high for the
// channel to be trusted.
var ErrQBERTooHigh = errors.New("qber above threshold")

// Stats packages together a collection of potentially interesting metrics
// pertaining to a BB84 key distillation.
type Stats struct {
	Shots   int
	Sifted  int
	Sampled int

	// QBER is the error rate observed on the sampled bits; QBERLow and
	// QBERHigh bound it with the configured confidence.
	QBER     float64
	QBERLow  float64
	QBERHigh float64

	// Corrections counts the bits Winnow flipped in Bob's key.
	Corrections int
	Reconciled  int
	BitsLeaked  float64
	KeyBits     int
	KeysAgree   bool
}

// A DistillOpts packages together the arguments to Distill. Zero-valued fields
// take the package defaults, except Rand, which must be non-nil.
type DistillOpts struct {
	// Rand drives sampling, Winnow's shuffles and the privacy amplification
	// seed. Both parties' halves of the protocol share it, since they run in
	// one process.
	Rand *rand.Rand

	// SampleProportion specifies the proportion of sifted bits to sample during
	// error rate estimation. Defaults to half.
	SampleProportion float64

	// EpsilonPrivacy specifies the statistical distance from uniform we are
	// willing to tolerate our final extracted key being, conditioned on the
	// information made public during distillation.
	//
	// Defaults to DefaultEpsilon.
	EpsilonPrivacy float64

	// WinnowIters specifies the sequence of hamming bit counts to use during
	// winnowing. E.g. a sequence {3,3,4} performs two rounds of winnowing with
	// 8-bit code blocks, followed by one with 16-bit code blocks.
	WinnowIters []int

	// MaxQBER is the highest sampled error rate Distill accepts. Defaults to
	// DefaultMaxQBER.
	MaxQBER float64

	// Confidence is the coverage of the QBER interval in Stats. Defaults to
	// DefaultConfidence.
	Confidence float64
}

func (o DistillOpts) withDefaults() (DistillOpts, error) {
	if o.Rand == nil {
		return o, errors.New("must provide Rand")
	}
	if o.SampleProportion == 0 {
		o.SampleProportion = DefaultSampleProportion
	}
	if o.SampleProportion < 0 || o.SampleProportion >= 1 {
		return o, errors.New("SampleProportion must lie in (0, 1)")
	}
	if o.EpsilonPrivacy == 0 {
		o.EpsilonPrivacy = DefaultEpsilon
	}
	if o.WinnowIters == nil {
		o.WinnowIters = DefaultWinnowIters
	}
	for _, h := range o.WinnowIters {
		if h < 2 {
			return o, errors.New("winnow iterations need at least 2 hamming bits")
		}
	}
	if o.MaxQBER == 0 {
		o.MaxQBER = DefaultMaxQBER
	}
	if o.Confidence == 0 {
		o.Confidence = DefaultConfidence
	}
	return o, nil
}
