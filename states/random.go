package states

import (
	"fmt"

	"github.com/alan-christopher/qrun/backend/sampler"
	"github.com/alan-christopher/qrun/circuit"
)

// MaxRandomBits bounds the width of a RandomBits circuit.
const MaxRandomBits = 16

// RandomBits returns a circuit putting n qubits, each starting in |0>, through
// a Hadamard gate before measuring them. Every shot reads n fair coin flips.
func RandomBits(name string, n int) (circuit.Circuit, error) {
	if n < 1 || n > MaxRandomBits {
		return circuit.Circuit{}, fmt.Errorf("random bits circuit of width %d outside [1, %d]", n, MaxRandomBits)
	}
	return measured(name, n), nil
}

// Uniform is a sampler.Model for RandomBits circuits.
func Uniform(c circuit.Circuit) (sampler.Distribution, error) {
	if len(c.Registers) != 1 {
		return nil, fmt.Errorf("circuit %s: want a single %q register", c.Name, MeasRegister)
	}
	n := c.Registers[0].Size
	if n < 1 || n > MaxRandomBits {
		return nil, fmt.Errorf("circuit %s: width %d outside [1, %d]", c.Name, n, MaxRandomBits)
	}
	if err := checkLayout(c, n); err != nil {
		return nil, err
	}
	d := make(sampler.Distribution, 1<<n)
	for i := 0; i < 1<<n; i++ {
		d[fmt.Sprintf("%0*b", n, i)] = 1
	}
	return d, nil
}
