package bb84

import (
	"fmt"

	"github.com/alan-christopher/qrun/backend/sampler"
	"github.com/alan-christopher/qrun/circuit"
	"github.com/alan-christopher/qrun/counts"
)

// A ChannelModel describes the quantum channel between Alice and Bob. Its
// Distribution method is a sampler.Model.
type ChannelModel struct {
	// Noise is the probability that the channel flips the bit Bob reads.
	Noise float64

	// Eavesdrop places an intercept-resend attacker on the channel. Circuits
	// must be tapped iff Eavesdrop is set.
	Eavesdrop bool

	// EveBasis is the basis Eve measures in, in any form ParseBasis
	// accepts. Empty means random.
	EveBasis string
}

type weighted struct {
	bit byte
	p   float64
}

// measure returns the outcomes of measuring a photon prepared as bit in basis
// prep, when measuring in basis meas. Matching bases reproduce the bit;
// mismatched bases read uniformly at random.
func measure(prep, bit, meas byte) []weighted {
	if prep == meas {
		return []weighted{{bit, 1}}
	}
	return []weighted{{0, 0.5}, {1, 0.5}}
}

// A photon is the state arriving at Bob, with the probability of it arriving
// in that state.
type photon struct {
	basis, bit       byte
	eveBasis, eveBit byte
	p                float64
}

// transmit returns the photons Bob may receive when Alice prepares bit in
// basis. On a tapped channel Eve measures in one of eve's bases and resends
// what she read in that basis.
func (m ChannelModel) transmit(basis, bit byte, eve []weighted) []photon {
	if !m.Eavesdrop {
		return []photon{{basis: basis, bit: bit, p: 1}}
	}
	var r []photon
	for _, e := range eve {
		for _, read := range measure(basis, bit, e.bit) {
			r = append(r, photon{
				basis:    e.bit,
				bit:      read.bit,
				eveBasis: e.bit,
				eveBit:   read.bit,
				p:        e.p * read.p,
			})
		}
	}
	return r
}

func (m ChannelModel) eveBases() ([]weighted, error) {
	basis, err := ParseBasis(m.EveBasis)
	if err != nil {
		return nil, fmt.Errorf("eavesdropper: %w", err)
	}
	switch basis {
	case BasisZ:
		return []weighted{{0, 1}}, nil
	case BasisX:
		return []weighted{{1, 1}}, nil
	}
	return []weighted{{0, 0.5}, {1, 0.5}}, nil
}

// Distribution returns the outcome distribution of a BB84 circuit sent over
// this channel.
func (m ChannelModel) Distribution(c circuit.Circuit) (sampler.Distribution, error) {
	if m.Noise < 0 || m.Noise > 1 {
		return nil, fmt.Errorf("noise %v outside [0, 1]", m.Noise)
	}
	if Tapped(c) != m.Eavesdrop {
		return nil, fmt.Errorf("circuit %s tapped=%v on a channel with eavesdrop=%v", c.Name, Tapped(c), m.Eavesdrop)
	}
	var eve []weighted
	if m.Eavesdrop {
		var err error
		if eve, err = m.eveBases(); err != nil {
			return nil, err
		}
	}
	coin := []weighted{{0, 0.5}, {1, 0.5}}
	noise := []weighted{{0, 1 - m.Noise}, {1, m.Noise}}

	d := sampler.Distribution{}
	for _, aBasis := range coin {
		for _, aBit := range coin {
			for _, ph := range m.transmit(aBasis.bit, aBit.bit, eve) {
				for _, bBasis := range coin {
					for _, read := range measure(ph.basis, ph.bit, bBasis.bit) {
						for _, flip := range noise {
							p := aBasis.p * aBit.p * ph.p * bBasis.p * read.p * flip.p
							if p == 0 {
								continue
							}
							regs := map[string]string{
								circuit.BasisRegister(Alice): bitString(aBasis.bit),
								circuit.RecvRegister(Alice):  bitString(aBit.bit),
								circuit.BasisRegister(Bob):   bitString(bBasis.bit),
								circuit.RecvRegister(Bob):    bitString(read.bit ^ flip.bit),
							}
							if m.Eavesdrop {
								regs[circuit.BasisRegister(Eve)] = bitString(ph.eveBasis)
								regs[circuit.RecvRegister(Eve)] = bitString(ph.eveBit)
							}
							d[counts.FormatShot(c.Registers, regs)] += p
						}
					}
				}
			}
		}
	}
	return d, nil
}

func bitString(b byte) string {
	if b == 0 {
		return "0"
	}
	return "1"
}
