package bb84

import (
	"fmt"
	"math"

	"github.com/alan-christopher/qrun/bb84/bitmap"
)

// A toeplitz represents an m x n matrix whose diagonals are all constant. It
// operates in F_2, i.e. all of its scalars are 0 or 1.
type toeplitz struct {
	// The diagonal constants for this toeplitz matrix, starting from the bottom
	// left and ending with the top right.
	diags bitmap.Dense

	m int
	n int
}

// Mul computes the matrix product Av between the toeplitz matrix t and the
// provided vector.
//
// TODO: row products share all but one bit of their diagonal window; sliding
// the window instead of re-slicing would cut the constant factor.
func (t toeplitz) Mul(vec bitmap.Dense) (bitmap.Dense, error) {
	if t.diags.Size() < t.m+t.n-1 {
		return bitmap.Dense{}, fmt.Errorf("improper toeplitz construction, has %d diagonals, needs %d", t.diags.Size(), t.m+t.n-1)
	}
	if t.n != vec.Size() {
		return bitmap.Dense{}, fmt.Errorf("multiplying %dx%d matrix into %d-dim vector", t.m, t.n, vec.Size())
	}

	r := bitmap.Dense{}
	for off := t.m - 1; off >= 0; off-- {
		row, err := bitmap.Slice(t.diags, off, off+t.n)
		if err != nil {
			return bitmap.Empty(), err
		}
		r.AppendBit(bitmap.Dot(row, vec))
	}
	return r, nil
}

// keyLength returns the number of bits that can be extracted from n
// reconciled bits of which bitsLeaked may be known to Eve, such that the
// result is eps-close to uniform.
func keyLength(n int, bitsLeaked, eps float64) int {
	return n - int(math.Ceil(bitsLeaked+2*math.Log(1/eps)))
}

// extractKey hashes x down to m bits with the toeplitz matrix whose diagonals
// are seed.
func extractKey(seed, x bitmap.Dense, m int) (bitmap.Dense, error) {
	if m <= 0 {
		return bitmap.Empty(), fmt.Errorf("no key left to extract from %d bits", x.Size())
	}
	t := toeplitz{
		diags: seed,
		m:     m,
		n:     x.Size(),
	}
	return t.Mul(x)
}
