// Package states provides circuits preparing fixed one- and two-qubit states,
// along with sampler models giving their measurement statistics. Every circuit
// here measures all of its qubits into a single register, MeasRegister, with
// qubit 0 as the rightmost bit.
package states

import (
	"fmt"

	"github.com/alan-christopher/qrun/circuit"
)

// MeasRegister is the register all qubits are measured into.
const MeasRegister = "meas"

func measured(name string, qubits int) circuit.Circuit {
	return circuit.Circuit{
		Name:      name,
		Registers: []circuit.Register{{Name: MeasRegister, Size: qubits}},
	}
}

// checkLayout fails unless c measures exactly qubits qubits into
// MeasRegister.
func checkLayout(c circuit.Circuit, qubits int) error {
	if len(c.Registers) != 1 || c.Registers[0].Name != MeasRegister {
		return fmt.Errorf("circuit %s: want a single %q register", c.Name, MeasRegister)
	}
	if c.Registers[0].Size != qubits {
		return fmt.Errorf("circuit %s: measures %d qubits, want %d", c.Name, c.Registers[0].Size, qubits)
	}
	return nil
}
