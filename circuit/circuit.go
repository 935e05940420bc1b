// Package circuit describes quantum circuits at the level a run needs to see
// them: a name, the layout of the classical registers that measurements land
// in, and optional metadata naming the two parties of a key exchange. Gate
// sequences are the backend's business.
package circuit

import (
	"errors"
	"fmt"
)

// BasisRandom marks a circuit in which each party picks its measurement basis
// at random per shot.
const BasisRandom = "random"

// A Register is a named classical register of Size bits.
type Register struct {
	Name string
	Size int
}

// Parties names the two participants of an exchange encoded in a circuit.
type Parties struct {
	Party1      string
	Party2      string
	BasisChoice string
}

// Named reports whether both parties are named.
func (p *Parties) Named() bool {
	return p != nil && p.Party1 != "" && p.Party2 != ""
}

// A Circuit is an opaque circuit descriptor. Registers are listed in
// declaration order.
type Circuit struct {
	Name      string
	Registers []Register
	Parties   *Parties
}

// RecvRegister returns the name of the register holding the bit party ends up
// with.
func RecvRegister(party string) string {
	return party + "_recv"
}

// BasisRegister returns the name of the register recording which basis party
// prepared or measured in.
func BasisRegister(party string) string {
	return party + "_basis"
}

// Width returns the total number of classical bits across all registers.
func (c Circuit) Width() int {
	w := 0
	for _, r := range c.Registers {
		w += r.Size
	}
	return w
}

// Register looks up a register by name.
func (c Circuit) Register(name string) (Register, bool) {
	for _, r := range c.Registers {
		if r.Name == name {
			return r, true
		}
	}
	return Register{}, false
}

// Validate checks that c is well formed.
func (c Circuit) Validate() error {
	if c.Name == "" {
		return errors.New("circuit must be named")
	}
	if len(c.Registers) == 0 {
		return fmt.Errorf("circuit %q declares no classical registers", c.Name)
	}
	seen := make(map[string]bool, len(c.Registers))
	for _, r := range c.Registers {
		if r.Name == "" {
			return fmt.Errorf("circuit %q has an unnamed register", c.Name)
		}
		if r.Size <= 0 {
			return fmt.Errorf("circuit %q: register %q has size %d", c.Name, r.Name, r.Size)
		}
		if seen[r.Name] {
			return fmt.Errorf("circuit %q: duplicate register %q", c.Name, r.Name)
		}
		seen[r.Name] = true
	}
	if !c.Parties.Named() {
		return nil
	}
	need := []string{RecvRegister(c.Parties.Party1), RecvRegister(c.Parties.Party2)}
	if c.Parties.BasisChoice == BasisRandom {
		need = append(need, BasisRegister(c.Parties.Party1), BasisRegister(c.Parties.Party2))
	}
	for _, n := range need {
		if !seen[n] {
			return fmt.Errorf("circuit %q: parties need register %q", c.Name, n)
		}
	}
	return nil
}
