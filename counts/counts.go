// Package counts turns per-shot measurement memory into outcome frequencies.
//
// A shot is recorded the way most quantum SDKs print it: one bit string per
// classical register, separated by single spaces, with the last-declared
// register first. Within a register the most significant bit comes first.
package counts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alan-christopher/qrun/circuit"
)

// Counts maps outcome keys to the number of shots that produced them.
type Counts map[string]int

// A Predicate decides whether a shot, given as register name to bit string,
// takes part in an aggregation.
type Predicate func(regs map[string]string) bool

// A KeyFilter decides whether an aggregated key is kept.
type KeyFilter func(key string) bool

// A Source provides the raw material for an aggregation.
type Source interface {
	Registers() []circuit.Register
	Memory() ([]string, error)
}

// Equal returns a Predicate that holds when registers a and b read the same.
func Equal(a, b string) Predicate {
	return func(regs map[string]string) bool {
		return regs[a] == regs[b]
	}
}

// Aggregate counts the shots of src. With no specs the key is the whole shot;
// otherwise it is the space-joined values of the named registers, in the order
// given. Shots failing pred and keys failing filter are left out; either may
// be nil.
func Aggregate(src Source, specs []string, pred Predicate, filter KeyFilter) (Counts, error) {
	layout := src.Registers()
	for _, s := range specs {
		if !declared(layout, s) {
			return nil, fmt.Errorf("aggregating on undeclared register %q", s)
		}
	}
	memory, err := src.Memory()
	if err != nil {
		return nil, fmt.Errorf("reading memory: %w", err)
	}
	r := Counts{}
	vals := make([]string, len(specs))
	for i, shot := range memory {
		regs, err := ParseShot(shot, layout)
		if err != nil {
			return nil, fmt.Errorf("shot %d: %w", i, err)
		}
		if pred != nil && !pred(regs) {
			continue
		}
		key := shot
		if len(specs) > 0 {
			for j, s := range specs {
				vals[j] = regs[s]
			}
			key = strings.Join(vals, " ")
		}
		if filter != nil && !filter(key) {
			continue
		}
		r[key]++
	}
	return r, nil
}

// ParseShot splits a single shot into its registers.
func ParseShot(shot string, layout []circuit.Register) (map[string]string, error) {
	fields := strings.Split(shot, " ")
	if len(fields) != len(layout) {
		return nil, fmt.Errorf("shot %q has %d registers, want %d", shot, len(fields), len(layout))
	}
	regs := make(map[string]string, len(layout))
	for i, reg := range layout {
		f := fields[len(fields)-1-i]
		if len(f) != reg.Size {
			return nil, fmt.Errorf("register %q reads %q, want %d bits", reg.Name, f, reg.Size)
		}
		if strings.Trim(f, "01") != "" {
			return nil, fmt.Errorf("register %q reads non-binary %q", reg.Name, f)
		}
		regs[reg.Name] = f
	}
	return regs, nil
}

// FormatShot is the inverse of ParseShot. Registers missing from regs read as
// all zeros.
func FormatShot(layout []circuit.Register, regs map[string]string) string {
	fields := make([]string, len(layout))
	for i, reg := range layout {
		v, ok := regs[reg.Name]
		if !ok {
			v = strings.Repeat("0", reg.Size)
		}
		fields[len(layout)-1-i] = v
	}
	return strings.Join(fields, " ")
}

// Total returns the number of shots counted.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Keys returns the keys of c in lexical order.
func (c Counts) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Probabilities normalizes c. An empty Counts yields an empty map.
func (c Counts) Probabilities() map[string]float64 {
	total := float64(c.Total())
	r := make(map[string]float64, len(c))
	if total == 0 {
		return r
	}
	for k, v := range c {
		r[k] = float64(v) / total
	}
	return r
}

// Merge sums any number of Counts into a new one.
func Merge(cs ...Counts) Counts {
	r := Counts{}
	for _, c := range cs {
		for k, v := range c {
			r[k] += v
		}
	}
	return r
}

func declared(layout []circuit.Register, name string) bool {
	for _, r := range layout {
		if r.Name == name {
			return true
		}
	}
	return false
}
