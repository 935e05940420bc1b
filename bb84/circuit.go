package bb84

import (
	"fmt"

	"github.com/alan-christopher/qrun/circuit"
)

// The participants of an exchange.
const (
	Alice = "alice"
	Bob   = "bob"
	Eve   = "eve"
)

// Bases, as recorded in the basis registers.
const (
	BasisZ = "Z" // rectilinear, recorded as 0
	BasisX = "X" // diagonal, recorded as 1

	// BasisZX is a fresh random choice between Z and X on every shot.
	BasisZX = "Z,X"
)

// ParseBasis returns the canonical name of a basis choice. "Z" and "X" name
// themselves. "Z,X", "X,Z", circuit.BasisRandom and the empty string all mean
// a random choice, and map to circuit.BasisRandom.
func ParseBasis(s string) (string, error) {
	switch s {
	case BasisZ, BasisX:
		return s, nil
	case "", BasisZX, "X,Z", circuit.BasisRandom:
		return circuit.BasisRandom, nil
	}
	return "", fmt.Errorf("unknown basis %q", s)
}

// NewCircuit returns a one-photon-per-shot BB84 circuit. A tapped circuit
// additionally records the basis and bit of an intercept-resend eavesdropper.
func NewCircuit(name string, tapped bool) circuit.Circuit {
	parties := []string{Alice, Bob}
	if tapped {
		parties = append(parties, Eve)
	}
	var regs []circuit.Register
	for _, p := range parties {
		regs = append(regs,
			circuit.Register{Name: circuit.BasisRegister(p), Size: 1},
			circuit.Register{Name: circuit.RecvRegister(p), Size: 1})
	}
	return circuit.Circuit{
		Name:      name,
		Registers: regs,
		Parties: &circuit.Parties{
			Party1:      Alice,
			Party2:      Bob,
			BasisChoice: circuit.BasisRandom,
		},
	}
}

// Tapped reports whether c records an eavesdropper.
func Tapped(c circuit.Circuit) bool {
	_, ok := c.Register(circuit.RecvRegister(Eve))
	return ok
}
