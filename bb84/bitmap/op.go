package bitmap

import "fmt"

type byteOp func(a, b byte) byte

// combine applies op bytewise to a and b, treating the shorter of the two as
// zero-padded, and truncates the result to rLen bits.
func combine(a, b Dense, rLen int, op byteOp) Dense {
	r := Dense{
		bits: make([]byte, BytesFor(rLen)),
		len:  rLen,
	}
	for i := range r.bits {
		r.bits[i] = op(byteAt(a, i), byteAt(b, i))
	}
	r.clearTail()
	return r
}

func longer(a, b Dense) int {
	if a.len > b.len {
		return a.len
	}
	return b.len
}

func byteAt(d Dense, i int) byte {
	if i < len(d.bits) {
		return d.bits[i]
	}
	return 0
}

// And returns the bitwise AND of two bitmaps. The result is as long as the
// shorter input.
func And(a, b Dense) Dense {
	rLen := a.len
	if b.len < rLen {
		rLen = b.len
	}
	return combine(a, b, rLen, func(x, y byte) byte { return x & y })
}

// Or returns the bitwise OR of two bitmaps.
func Or(a, b Dense) Dense {
	return combine(a, b, longer(a, b), func(x, y byte) byte { return x | y })
}

// XOr returns the bitwise XOR of two bitmaps.
func XOr(a, b Dense) Dense {
	return combine(a, b, longer(a, b), func(x, y byte) byte { return x ^ y })
}

// XNor returns the bitwise XNOR of two bitmaps.
func XNor(a, b Dense) Dense {
	return combine(a, b, longer(a, b), func(x, y byte) byte { return ^(x ^ y) })
}

// Not returns the bitwise negation of a bitmap.
func Not(d Dense) Dense {
	return combine(d, Dense{}, d.len, func(x, _ byte) byte { return ^x })
}

// Dot returns the inner product of a and b over GF(2).
func Dot(a, b Dense) bool {
	return Parity(And(a, b))
}

// Slice copies the bits [start, end) of d into a new bitmap.
func Slice(d Dense, start, end int) (Dense, error) {
	if end > d.len {
		return Dense{}, fmt.Errorf("slicing bitmap of len %d up to %d", d.len, end)
	}
	if start < 0 {
		return Dense{}, fmt.Errorf("slicing bitmap with negative start: %d", start)
	}
	if end < start {
		return Dense{}, fmt.Errorf("slicing bitmap to negative length: %d", end-start)
	}

	r := Dense{}
	for ; start%byteSize != 0 && start < end; start++ {
		r.AppendBit(d.Get(start))
	}
	if start == end {
		return r, nil
	}
	j := start / byteSize
	raw := make([]byte, BytesFor(end-start))
	copy(raw, d.bits[j:])
	r.Append(NewDense(raw, end-start))
	return r, nil
}
