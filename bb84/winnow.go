package bb84

import (
	"fmt"
	"math/bits"
	"math/rand"

	"github.com/alan-christopher/qrun/bb84/bitmap"
)

// A winnower reconciles Alice's and Bob's sifted keys via the Winnow
// algorithm, as described in https://arxiv.org/abs/quant-ph/0203096. Both keys
// live in the same process, so the parity and syndrome announcements of the
// protocol become direct comparisons. Bob's key is corrected towards Alice's.
type winnower struct {
	rand  *rand.Rand
	iters []int
}

type reconcileResult struct {
	xHat, yHat  bitmap.Dense
	corrections int
}

func (w winnower) Reconcile(x, y bitmap.Dense) (reconcileResult, error) {
	if x.Size() != y.Size() {
		return reconcileResult{}, fmt.Errorf("reconciling bitstrings of different lengths: %d != %d", x.Size(), y.Size())
	}
	// Shuffling works in place, so start from private copies.
	xHat, err := bitmap.Slice(x, 0, x.Size())
	if err != nil {
		return reconcileResult{}, err
	}
	yHat, err := bitmap.Slice(y, 0, y.Size())
	if err != nil {
		return reconcileResult{}, err
	}
	r := reconcileResult{}
	for _, hBits := range w.iters {
		var n int
		xHat, yHat, n, err = w.winnow(xHat, yHat, hBits)
		if err != nil {
			return reconcileResult{}, err
		}
		r.corrections += n
	}
	r.xHat, r.yHat = xHat, yHat
	return r, nil
}

func (w winnower) winnow(x, y bitmap.Dense, hBits int) (bitmap.Dense, bitmap.Dense, int, error) {
	seed := w.rand.Int63()
	x.Shuffle(rand.New(rand.NewSource(seed)))
	y.Shuffle(rand.New(rand.NewSource(seed)))

	xSyn, err := w.getSyndromes(x, hBits)
	if err != nil {
		return bitmap.Empty(), bitmap.Empty(), 0, err
	}
	ySyn, err := w.getSyndromes(y, hBits)
	if err != nil {
		return bitmap.Empty(), bitmap.Empty(), 0, err
	}
	todo := bitmap.XOr(totalParities(xSyn, hBits), totalParities(ySyn, hBits))
	var synSums []bitmap.Dense
	for i := range xSyn {
		if todo.Get(i) {
			synSums = append(synSums, bitmap.XOr(xSyn[i], ySyn[i]))
		}
	}
	w.applySyndromes(&y, synSums, todo, hBits)

	return w.maintainPrivacy(x, todo, hBits), w.maintainPrivacy(y, todo, hBits), len(synSums), nil
}

func totalParities(syndromes []bitmap.Dense, hBits int) bitmap.Dense {
	tp := bitmap.Empty()
	for _, syn := range syndromes {
		tp.AppendBit(syn.Get(hBits))
	}
	return tp
}

// applySyndromes flips, in every block marked in todo, the bit located by the
// XOR of both parties' syndromes for that block.
func (w winnower) applySyndromes(x *bitmap.Dense, synSums []bitmap.Dense, todo bitmap.Dense, hBits int) {
	n := 1 << hBits
	for i, k := 0, -1; i < todo.Size(); i++ {
		if !todo.Get(i) {
			continue
		}
		k++
		syn := synSums[k]
		pos := 0
		for j := 0; j < hBits; j++ {
			if syn.Get(j) {
				pos |= 1 << j
			}
		}
		pos-- // cardinal/ordinal correction
		if pos < 0 {
			pos = n - 1 // total parity flip
		}
		// The last block may be padded; a flip landing in the padding is a
		// no-op.
		x.Flip(i*n + pos)
	}
}

// maintainPrivacy discards, per block, as many bits as the block's
// announcements revealed: the total parity bit of clean blocks, and the
// hamming parity positions of corrected ones.
func (w winnower) maintainPrivacy(x bitmap.Dense, todo bitmap.Dense, hBits int) bitmap.Dense {
	keep := bitmap.Empty()
	n := 1 << hBits
	for i := 0; i < todo.Size(); i++ {
		if !todo.Get(i) {
			for j := 0; j < n-1; j++ {
				keep.AppendBit(true)
			}
			keep.AppendBit(false)
			continue
		}

		for j := 0; j < n; j++ {
			keep.AppendBit(bits.OnesCount(uint(j+1)) != 1)
		}
	}
	return bitmap.Select(x, keep)
}

func (w winnower) getSyndromes(x bitmap.Dense, hBits int) ([]bitmap.Dense, error) {
	var r []bitmap.Dense
	bSize := 1 << hBits
	for i := 0; i < x.Size(); i += bSize {
		block, err := bitmap.Slice(x, i, min(i+bSize, x.Size()))
		if err != nil {
			return nil, err
		}
		if i+bSize > x.Size() {
			block = bitmap.NewDense(block.Data(), bSize)
		}
		syndrome, err := w.secded(block, hBits)
		if err != nil {
			return nil, err
		}
		r = append(r, syndrome)
	}
	return r, nil
}

func (w winnower) secded(block bitmap.Dense, hBits int) (bitmap.Dense, error) {
	if block.Size() != 1<<hBits {
		return bitmap.Empty(), fmt.Errorf(
			"hamming SECDED with %d parity bits needs block of %d, got %d", hBits, 1<<hBits, block.Size())
	}
	r := bitmap.Empty()

	// The p-th hamming parity bit checks the parity of bits in strides of 2^p. E.g.
	// the 0th bit checks positions {0, 2, 4, ...}, the 1st checks
	// {1,2, 5,6, ...}, the 2nd {3,4,5,6, 11,12,13,14, ...}.
	for p := 0; p < hBits; p++ {
		stride := 1 << p
		parity := false
		for i := stride - 1; i < block.Size(); i += 2 * stride {
			for j := i; j < i+stride && j < block.Size(); j++ {
				parity = (block.Get(j) != parity)
			}
		}
		r.AppendBit(parity)
	}

	// Finish by inserting a total parity bit.
	r.AppendBit(bitmap.Parity(block))

	return r, nil
}
