// Package report exports runs and experiments as protocol buffer structs, for
// printing as JSON or appending to a framed binary log.
package report

import (
	"encoding/hex"
	"fmt"

	"github.com/alan-christopher/qrun/bb84"
	"github.com/alan-christopher/qrun/circuit"
	"github.com/alan-christopher/qrun/run"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Encode describes r: its circuits and jobs and, once finalized, the shot
// count and evaluated counts of every circuit. Evaluating counts here fills
// the run's memoized counts as a side effect.
func Encode(r *run.Run) (*structpb.Struct, error) {
	m, err := encodeRun(r)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// EncodeExperiment describes rep: its run plus the distillation stats and the
// key, hex encoded.
func EncodeExperiment(rep *bb84.Report) (*structpb.Struct, error) {
	m, err := encodeRun(rep.Run)
	if err != nil {
		return nil, err
	}
	s := rep.Stats
	m["stats"] = map[string]interface{}{
		"shots":       s.Shots,
		"sifted":      s.Sifted,
		"sampled":     s.Sampled,
		"qber":        s.QBER,
		"qber_low":    s.QBERLow,
		"qber_high":   s.QBERHigh,
		"corrections": s.Corrections,
		"reconciled":  s.Reconciled,
		"bits_leaked": s.BitsLeaked,
		"key_bits":    s.KeyBits,
		"keys_agree":  s.KeysAgree,
	}
	m["sifted_counts"] = countsMap(rep.Counts)
	m["key"] = hex.EncodeToString(rep.Key.Data())
	return structpb.NewStruct(m)
}

func encodeRun(r *run.Run) (map[string]interface{}, error) {
	finalized, err := r.IsFinalized()
	if err != nil {
		return nil, err
	}
	cv, err := r.Circuits()
	if err != nil {
		return nil, err
	}
	jv, err := r.Jobs()
	if err != nil {
		return nil, err
	}
	jobs := jv.All()
	entries := make([]interface{}, r.Size())
	for i, c := range cv.All() {
		j := jobs[i]
		e := map[string]interface{}{
			"name":      c.Name,
			"registers": registers(c.Registers),
			"job_id":    j.ID(),
			"status":    j.Status().String(),
		}
		if c.Parties != nil {
			e["parties"] = map[string]interface{}{
				"party1":       c.Parties.Party1,
				"party2":       c.Parties.Party2,
				"basis_choice": c.Parties.BasisChoice,
			}
		}
		entries[i] = e
	}
	if finalized {
		mem, err := r.Memory()
		if err != nil {
			return nil, err
		}
		pv, err := r.Counts()
		if err != nil {
			return nil, err
		}
		memory, pending := mem.All(), pv.All()
		for i := range entries {
			e := entries[i].(map[string]interface{})
			e["shots"] = len(memory[i])
			c, err := pending[i].Eval()
			if err != nil {
				return nil, fmt.Errorf("counting circuit %d: %w", i, err)
			}
			e["counts"] = countsMap(c)
			specs := make([]interface{}, 0)
			for _, s := range pending[i].Specs() {
				specs = append(specs, s)
			}
			e["count_specs"] = specs
		}
	}
	return map[string]interface{}{
		"batch":     r.Size(),
		"finalized": finalized,
		"circuits":  entries,
	}, nil
}

func registers(regs []circuit.Register) []interface{} {
	r := make([]interface{}, len(regs))
	for i, reg := range regs {
		r[i] = map[string]interface{}{"name": reg.Name, "size": reg.Size}
	}
	return r
}

func countsMap(c map[string]int) map[string]interface{} {
	r := make(map[string]interface{}, len(c))
	for k, v := range c {
		r[k] = v
	}
	return r
}

// MarshalJSON renders s as indented JSON.
func MarshalJSON(s *structpb.Struct) ([]byte, error) {
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
}
