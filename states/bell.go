package states

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/alan-christopher/qrun/backend/sampler"
	"github.com/alan-christopher/qrun/circuit"
	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/floats/scalar"
)

// A BellKind selects one of the four Bell states.
type BellKind int

const (
	PhiPlus  BellKind = iota // |00> + |11>
	PsiMinus                 // |10> - |01>
	PhiMinus                 // |00> - |11>
	PsiPlus                  // |01> + |10>
)

func (k BellKind) String() string {
	switch k {
	case PhiPlus:
		return "phi+"
	case PsiMinus:
		return "psi-"
	case PhiMinus:
		return "phi-"
	case PsiPlus:
		return "psi+"
	}
	return fmt.Sprintf("BellKind(%d)", int(k))
}

// Amplitudes is a single-qubit state as its |0> and |1> amplitudes.
type Amplitudes [2]complex128

var (
	ket0 = Amplitudes{1, 0}
	ket1 = Amplitudes{0, 1}
)

// A Bell is the entangling circuit: qubits 0 and 1 start in Q0 and Q1, qubit 0
// goes through a Hadamard gate and then controls a CNOT on qubit 1. Starting
// from basis states yields a Bell state; other starting states are allowed.
type Bell struct {
	Q0, Q1 Amplitudes
}

// NewBell returns the Bell circuit preparing the Bell state of the given kind.
func NewBell(kind BellKind) (Bell, error) {
	switch kind {
	case PhiPlus:
		return Bell{Q0: ket0, Q1: ket0}, nil
	case PsiMinus:
		return Bell{Q0: ket1, Q1: ket1}, nil
	case PhiMinus:
		return Bell{Q0: ket1, Q1: ket0}, nil
	case PsiPlus:
		return Bell{Q0: ket0, Q1: ket1}, nil
	}
	return Bell{}, fmt.Errorf("unknown Bell kind %d", int(kind))
}

// Circuit returns the descriptor of b, named name.
func (b Bell) Circuit(name string) circuit.Circuit {
	return measured(name, 2)
}

// Distribution is a sampler.Model for circuits built by b.Circuit. It fails
// if either starting state is not normalized.
func (b Bell) Distribution(c circuit.Circuit) (sampler.Distribution, error) {
	if err := checkLayout(c, 2); err != nil {
		return nil, err
	}
	for i, q := range []Amplitudes{b.Q0, b.Q1} {
		if n := cmplxs.Norm(q[:], 2); !scalar.EqualWithinAbs(n, 1, 1e-9) {
			return nil, fmt.Errorf("qubit %d starts with norm %v, want 1", i, n)
		}
	}
	h := [2]complex128{
		(b.Q0[0] + b.Q0[1]) / math.Sqrt2,
		(b.Q0[0] - b.Q0[1]) / math.Sqrt2,
	}
	d := sampler.Distribution{}
	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			// The CNOT leaves qubit 1 reading y when it started as y^x.
			amp := h[x] * b.Q1[y^x]
			p := real(amp * cmplx.Conj(amp))
			if p == 0 {
				continue
			}
			d[fmt.Sprintf("%d%d", y, x)] += p
		}
	}
	return d, nil
}

// ParseBellKind returns the kind whose String form is s.
func ParseBellKind(s string) (BellKind, error) {
	for k := PhiPlus; k <= PsiPlus; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown Bell state %q", s)
}
