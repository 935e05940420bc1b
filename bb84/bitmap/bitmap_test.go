package bitmap

import (
	"strings"
	"testing"
)

func mustDense(t *testing.T, s string) Dense {
	t.Helper()
	d, err := FromString(s)
	if err != nil {
		t.Fatalf("bugged test setup: %v", err)
	}
	return d
}

// checkTail fails if any backing bit past the end of d is set.
func checkTail(t *testing.T, d Dense) {
	t.Helper()
	if got, want := CountOnes(d), strings.Count(d.String(), "1"); got != want {
		t.Errorf("%s has %d set bits in its backing bytes, want %d", d, got, want)
	}
}

func TestFromString(t *testing.T) {
	tcs := []struct {
		in   string
		eout string
		eErr bool
	}{
		{in: "", eout: ""},
		{in: "   ", eout: ""},
		{in: "1 0 1", eout: "101"},
		{in: "0000 0000 1", eout: "000000001"},
		{in: " 11 ", eout: "11"},
		{in: "1\t0", eErr: true},
		{in: "102", eErr: true},
	}
	for _, tc := range tcs {
		d, err := FromString(tc.in)
		if tc.eErr {
			if err == nil {
				t.Errorf("FromString(%q) succeeded, want error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("FromString(%q): %v", tc.in, err)
		}
		if d.String() != tc.eout || d.Size() != len(tc.eout) {
			t.Errorf("FromString(%q) == %q (len %d), want %q", tc.in, d, d.Size(), tc.eout)
		}
	}
}

func TestStringFollowsBitOrder(t *testing.T) {
	tcs := []struct {
		data []byte
		len  int
		eout string
	}{
		{[]byte{0x05}, 4, "1010"},
		{[]byte{0x80}, 8, "00000001"},
		{[]byte{0xFF, 0x01}, 9, "111111111"},
		{[]byte{0xFF, 0xFF}, 10, "1111111111"},
		{nil, 3, "000"},
	}
	for _, tc := range tcs {
		d := NewDense(tc.data, tc.len)
		if d.String() != tc.eout {
			t.Errorf("NewDense(%x, %d).String() == %q, want %q", tc.data, tc.len, d, tc.eout)
		}
		if back := mustDense(t, d.String()); !Equal(back, d) {
			t.Errorf("FromString(%q) does not round trip", d)
		}
	}
}

func TestSelect(t *testing.T) {
	tcs := []struct {
		name       string
		data, mask string
		eout       string
	}{
		{"keep all", "1101", "1111", "1101"},
		{"keep none", "1011", "0000", ""},
		{"every other", "0110 1001 1", "1010 1010 1", "01101"},
		{"short mask", "111", "1", "1"},
		{"sift", "0011 0101", "1001 1001", "0101"},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			out := Select(mustDense(t, tc.data), mustDense(t, tc.mask))
			if out.String() != tc.eout {
				t.Errorf("Select(%s, %s) == %q, want %q", tc.data, tc.mask, out, tc.eout)
			}
			checkTail(t, out)
		})
	}
}

func TestCountOnesAndParity(t *testing.T) {
	tcs := []struct {
		data    string
		eOnes   int
		eParity bool
	}{
		{"", 0, false},
		{"0001", 1, true},
		{"1100 0011 0", 4, false},
		{"1111 1111 111", 11, true},
		{"0000 0000 0000 0000 1", 1, true},
	}
	for _, tc := range tcs {
		d := mustDense(t, tc.data)
		if got := CountOnes(d); got != tc.eOnes {
			t.Errorf("CountOnes(%s) == %d, want %d", tc.data, got, tc.eOnes)
		}
		if got := Parity(d); got != tc.eParity {
			t.Errorf("Parity(%s) == %v, want %v", tc.data, got, tc.eParity)
		}
	}
}

func TestEqual(t *testing.T) {
	tcs := []struct {
		a, b string
		eout bool
	}{
		{"", "", true},
		{"101", "101", true},
		{"101", "100", false},
		{"10", "100", false},
		{"100", "10", false},
		{"1010 1010 1", "1010 1010 0", false},
		{"1010 1010 1", "10101010 1", true},
	}
	for _, tc := range tcs {
		if got := Equal(mustDense(t, tc.a), mustDense(t, tc.b)); got != tc.eout {
			t.Errorf("Equal(%q, %q) == %v, want %v", tc.a, tc.b, got, tc.eout)
		}
	}
}

func TestBytesFor(t *testing.T) {
	for bits, want := range map[int]int{0: 0, 1: 1, 8: 1, 9: 2, 64: 8, 65: 9} {
		if got := BytesFor(bits); got != want {
			t.Errorf("BytesFor(%d) == %d, want %d", bits, got, want)
		}
	}
}
