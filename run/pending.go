package run

import (
	"github.com/alan-christopher/qrun/counts"
	"github.com/alan-christopher/qrun/job"
)

// An Aggregator turns a raw result into counts. counts.Aggregate is the
// default.
type Aggregator func(src counts.Source, specs []string, pred counts.Predicate, filter counts.KeyFilter) (counts.Counts, error)

// PendingCounts is a counts computation captured at finalize time and run on
// first use.
type PendingCounts struct {
	result    job.Result
	specs     []string
	pred      counts.Predicate
	filter    counts.KeyFilter
	aggregate Aggregator

	done   bool
	counts counts.Counts
	err    error
}

func newPendingCounts(res job.Result, specs []string, pred counts.Predicate, filter counts.KeyFilter, agg Aggregator) *PendingCounts {
	return &PendingCounts{
		result:    res,
		specs:     append([]string(nil), specs...),
		pred:      pred,
		filter:    filter,
		aggregate: agg,
	}
}

// Specs returns the register names the counts are keyed on. Empty means keys
// are whole shots.
func (p *PendingCounts) Specs() []string {
	return append([]string(nil), p.specs...)
}

// Sifted reports whether an agreement predicate restricts which shots count.
func (p *PendingCounts) Sifted() bool {
	return p.pred != nil
}

// Eval runs the aggregation the first time it is called and returns the same
// outcome on every later call.
func (p *PendingCounts) Eval() (counts.Counts, error) {
	if !p.done {
		p.counts, p.err = p.aggregate(p.result, p.specs, p.pred, p.filter)
		p.done = true
	}
	return p.counts, p.err
}
