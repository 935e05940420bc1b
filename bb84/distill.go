package bb84

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/alan-christopher/qrun/bb84/bitmap"
	"github.com/alan-christopher/qrun/circuit"
	"github.com/alan-christopher/qrun/counts"
	"gonum.org/v1/gonum/stat/distuv"
)

// Distill negotiates a key from the shots of BB84 circuits laid out as layout.
// It returns Alice's key; Stats.KeysAgree reports whether Bob ended up with
// the same one. Stats are filled in as far as distillation got, also when it
// fails.
func Distill(memory []string, layout []circuit.Register, opts DistillOpts) (bitmap.Dense, Stats, error) {
	stats := Stats{Shots: len(memory)}
	opts, err := opts.withDefaults()
	if err != nil {
		return bitmap.Empty(), stats, err
	}
	rec, err := readShots(memory, layout)
	if err != nil {
		return bitmap.Empty(), stats, err
	}

	mask := bitmap.XNor(rec.aliceBases, rec.bobBases)
	x, y := bitmap.Select(rec.aliceBits, mask), bitmap.Select(rec.bobBits, mask)
	stats.Sifted = x.Size()

	seed := opts.Rand.Int63()
	xUnsampled, xSampled, err := sample(x, opts.SampleProportion, seed)
	if err != nil {
		return bitmap.Empty(), stats, err
	}
	yUnsampled, ySampled, err := sample(y, opts.SampleProportion, seed)
	if err != nil {
		return bitmap.Empty(), stats, err
	}
	stats.Sampled = xSampled.Size()
	if stats.Sampled == 0 || xUnsampled.Size() == 0 {
		return bitmap.Empty(), stats, fmt.Errorf("%d sifted bits are too few to sample from", stats.Sifted)
	}
	errs := bitmap.CountOnes(bitmap.XOr(xSampled, ySampled))
	stats.QBER = float64(errs) / float64(stats.Sampled)
	stats.QBERLow, stats.QBERHigh = wilson(stats.QBER, stats.Sampled, opts.Confidence)
	if stats.QBER > opts.MaxQBER {
		return bitmap.Empty(), stats, fmt.Errorf("%w: %.4f > %.4f", ErrQBERTooHigh, stats.QBER, opts.MaxQBER)
	}

	w := winnower{rand: opts.Rand, iters: opts.WinnowIters}
	recRes, err := w.Reconcile(xUnsampled, yUnsampled)
	if err != nil {
		return bitmap.Empty(), stats, fmt.Errorf("reconciling: %w", err)
	}
	stats.Corrections = recRes.corrections
	stats.Reconciled = recRes.xHat.Size()

	stats.BitsLeaked = calcMaxEveInfo(stats.QBER, opts.EpsilonPrivacy, xUnsampled.Size(), stats.Sampled)
	m := keyLength(recRes.xHat.Size(), stats.BitsLeaked, opts.EpsilonPrivacy)
	if m <= 0 {
		return bitmap.Empty(), stats, fmt.Errorf(
			"%.1f bits leaked of %d reconciled, no key left", stats.BitsLeaked, recRes.xHat.Size())
	}
	seedBits := newSeed(opts.Rand, recRes.xHat.Size()+m-1)
	aKey, err := extractKey(seedBits, recRes.xHat, m)
	if err != nil {
		return bitmap.Empty(), stats, err
	}
	bKey, err := extractKey(seedBits, recRes.yHat, m)
	if err != nil {
		return bitmap.Empty(), stats, err
	}
	stats.KeyBits = aKey.Size()
	stats.KeysAgree = bitmap.Equal(aKey, bKey)
	return aKey, stats, nil
}

type shotRecord struct {
	aliceBases, aliceBits bitmap.Dense
	bobBases, bobBits     bitmap.Dense
}

func readShots(memory []string, layout []circuit.Register) (shotRecord, error) {
	names := []string{
		circuit.BasisRegister(Alice), circuit.RecvRegister(Alice),
		circuit.BasisRegister(Bob), circuit.RecvRegister(Bob),
	}
	for _, n := range names {
		if !hasRegister(layout, n) {
			return shotRecord{}, fmt.Errorf("layout has no %q register", n)
		}
	}
	var r shotRecord
	cols := []*bitmap.Dense{&r.aliceBases, &r.aliceBits, &r.bobBases, &r.bobBits}
	for i, shot := range memory {
		regs, err := counts.ParseShot(shot, layout)
		if err != nil {
			return shotRecord{}, fmt.Errorf("shot %d: %w", i, err)
		}
		for j, n := range names {
			cols[j].AppendBit(regs[n] == "1")
		}
	}
	return r, nil
}

func hasRegister(layout []circuit.Register, name string) bool {
	for _, r := range layout {
		if r.Name == name && r.Size == 1 {
			return true
		}
	}
	return false
}

// sample shuffles bits with a source seeded by seed and splits off the last
// proportion of them. Both parties sampling with the same seed pick the same
// positions.
func sample(bits bitmap.Dense, proportion float64, seed int64) (unsampled, sampled bitmap.Dense, err error) {
	bits, err = bitmap.Slice(bits, 0, bits.Size())
	if err != nil {
		return bitmap.Empty(), bitmap.Empty(), err
	}
	r := rand.New(rand.NewSource(seed))
	bits.Shuffle(r)
	n := bits.Size()
	k := int(proportion * float64(n))
	unsampled, err = bitmap.Slice(bits, 0, n-k)
	if err != nil {
		return bitmap.Empty(), bitmap.Empty(), err
	}
	sampled, err = bitmap.Slice(bits, n-k, n)
	if err != nil {
		return bitmap.Empty(), bitmap.Empty(), err
	}
	return unsampled, sampled, nil
}

// calcMaxEveInfo returns a theoretical bound on the number of bits of
// information that Eve could have discerned about n unsampled bits, given
// that an error rate of qber was observed on k sampled ones.
//
// See also, https://link.springer.com/article/10.1007/BF00191318
func calcMaxEveInfo(qber, eps float64, n, k int) float64 {
	// See https://arxiv.org/abs/1506.08458, lemma 6.
	A := float64(n) * float64(k) * float64(k) / (float64(n+k) * float64(k+1))
	nu := math.Sqrt(0.5 * math.Log(1/eps) / A)
	qberPessimistic := qber + nu

	return 2 * math.Sqrt(2) * qberPessimistic * float64(n)
}

// wilson returns the Wilson score interval around an error rate p observed
// over n trials.
func wilson(p float64, n int, confidence float64) (lo, hi float64) {
	z := distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
	nf := float64(n)
	denom := 1 + z*z/nf
	center := (p + z*z/(2*nf)) / denom
	half := z / denom * math.Sqrt(p*(1-p)/nf+z*z/(4*nf*nf))
	return math.Max(0, center-half), math.Min(1, center+half)
}

func newSeed(r *rand.Rand, bitLen int) bitmap.Dense {
	buf := make([]byte, bitmap.BytesFor(bitLen))
	r.Read(buf)
	return bitmap.NewDense(buf, bitLen)
}
