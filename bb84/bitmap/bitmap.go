// Package bitmap packs bit strings into bytes for the classical side of key
// distillation. Bit i of a bitmap lives in byte i/8 at position i%8, and the
// text form used by FromString and String lists bits lowest index first.
package bitmap

import (
	"fmt"
	"math/bits"
	"strings"
)

const byteSize = 8

// Select keeps the bits of data at the indices set in mask, in order. Indices
// past the end of mask are dropped.
func Select(data, mask Dense) Dense {
	n := data.Size()
	if mask.Size() < n {
		n = mask.Size()
	}
	var r Dense
	for i := 0; i < n; i++ {
		if mask.Get(i) {
			r.AppendBit(data.Get(i))
		}
	}
	return r
}

// Empty returns a bitmap of length zero.
func Empty() Dense {
	return Dense{}
}

// FromString parses the text form of a bitmap. Spaces may be used to group
// bits and are skipped; any other character besides '0' and '1' is an error.
func FromString(s string) (Dense, error) {
	var d Dense
	for i, c := range s {
		switch c {
		case ' ':
		case '0', '1':
			d.AppendBit(c == '1')
		default:
			return Dense{}, fmt.Errorf("bitmap %q: bad character %q at %d", s, c, i)
		}
	}
	return d, nil
}

// String returns the text form of d.
func (d Dense) String() string {
	var sb strings.Builder
	sb.Grow(d.len)
	for i := 0; i < d.len; i++ {
		if d.Get(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// CountOnes returns the number of set bits in d.
func CountOnes(d Dense) int {
	n := 0
	for _, b := range d.bits {
		n += bits.OnesCount8(b)
	}
	return n
}

// Parity reports whether d holds an odd number of set bits.
func Parity(d Dense) bool {
	return CountOnes(d)%2 == 1
}

// Equal reports whether a and b have the same length and bits.
func Equal(a, b Dense) bool {
	return a.len == b.len && CountOnes(XOr(a, b)) == 0
}

// BytesFor returns the number of bytes needed to hold n bits.
func BytesFor(n int) int {
	return (n + byteSize - 1) / byteSize
}
