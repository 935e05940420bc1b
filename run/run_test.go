package run

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alan-christopher/qrun/circuit"
	"github.com/alan-christopher/qrun/counts"
	"github.com/alan-christopher/qrun/job"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exchange = []circuit.Register{
	{Name: "alice_basis", Size: 1},
	{Name: "alice_recv", Size: 1},
	{Name: "bob_basis", Size: 1},
	{Name: "bob_recv", Size: 1},
}

type fakeResult struct {
	layout []circuit.Register
	memory []string
}

func (f *fakeResult) Registers() []circuit.Register { return f.layout }
func (f *fakeResult) Memory() ([]string, error)     { return f.memory, nil }

type fakeJob struct {
	id      string
	status  job.Status
	result  *fakeResult
	err     error
	fetched int
}

func (f *fakeJob) ID() string         { return f.id }
func (f *fakeJob) Status() job.Status { return f.status }
func (f *fakeJob) Result() (job.Result, error) {
	f.fetched++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type recordingMonitor struct {
	calls int
	jobs  []job.Job
}

func (m *recordingMonitor) Monitor(_ context.Context, jobs []job.Job) error {
	m.calls++
	m.jobs = jobs
	return nil
}

func exchangeCircuit(name, basisChoice string) circuit.Circuit {
	return circuit.Circuit{
		Name:      name,
		Registers: exchange,
		Parties:   &circuit.Parties{Party1: "alice", Party2: "bob", BasisChoice: basisChoice},
	}
}

func batch(n int) ([]circuit.Circuit, []job.Job, []*fakeJob) {
	var cs []circuit.Circuit
	var js []job.Job
	var fakes []*fakeJob
	for i := 0; i < n; i++ {
		cs = append(cs, exchangeCircuit(fmt.Sprintf("bb84-%d", i), circuit.BasisRandom))
		f := &fakeJob{
			id:     fmt.Sprintf("job-%d", i),
			status: job.StatusDone,
			result: &fakeResult{
				layout: exchange,
				// bob_recv bob_basis alice_recv alice_basis
				memory: []string{"1 0 1 0", "0 1 1 0", "0 1 0 1"},
			},
		}
		fakes = append(fakes, f)
		js = append(js, f)
	}
	return cs, js, fakes
}

func quietOpts(collapse bool) Opts {
	l := zerolog.Nop()
	return Opts{CollapseSingle: collapse, Logger: &l, Monitor: &recordingMonitor{}}
}

func TestNewLengthMismatch(t *testing.T) {
	cs, js, _ := batch(3)
	_, err := New(cs, js[:2], quietOpts(false))
	assert.ErrorIs(t, err, ErrInvariant)

	_, err = New(nil, nil, quietOpts(false))
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestNewState(t *testing.T) {
	for n := 1; n <= 4; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			cs, js, _ := batch(n)
			r, err := New(cs, js, quietOpts(true))
			require.NoError(t, err)
			assert.Equal(t, n, r.Size())

			fin, err := r.IsFinalized()
			require.NoError(t, err)
			assert.False(t, fin)

			circuits, err := r.Circuits()
			require.NoError(t, err)
			assert.True(t, circuits.IsSet())
			assert.Equal(t, n == 1, circuits.IsSingle())
			assert.Equal(t, cs, circuits.All())

			for _, set := range []func() (bool, error){
				func() (bool, error) { v, err := r.Result(); return v.IsSet(), err },
				func() (bool, error) { v, err := r.Memory(); return v.IsSet(), err },
				func() (bool, error) { v, err := r.Counts(); return v.IsSet(), err },
			} {
				ok, err := set()
				require.NoError(t, err)
				assert.False(t, ok)
			}
		})
	}
}

func TestViewAt(t *testing.T) {
	cs, js, _ := batch(2)
	r, err := New(cs, js, quietOpts(false))
	require.NoError(t, err)

	res, err := r.Result()
	require.NoError(t, err)
	_, ok := res.At(0)
	assert.False(t, ok, "unset view")

	require.NoError(t, r.Finalize(nil, false))
	mem, err := r.Memory()
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		m, ok := mem.At(i)
		require.True(t, ok)
		assert.Equal(t, mem.All()[i], m)
	}
	for _, i := range []int{-1, 2} {
		_, ok := mem.At(i)
		assert.False(t, ok, "index %d", i)
	}
}

func TestFinalizeSingleCollapses(t *testing.T) {
	cs, js, fakes := batch(1)
	r, err := New(cs, js, quietOpts(true))
	require.NoError(t, err)
	require.NoError(t, r.Finalize(nil, false))

	fin, err := r.IsFinalized()
	require.NoError(t, err)
	assert.True(t, fin)

	res, err := r.Result()
	require.NoError(t, err)
	one, ok := res.Single()
	require.True(t, ok)
	assert.Same(t, fakes[0].result, one)

	mem, err := r.Memory()
	require.NoError(t, err)
	m, ok := mem.Single()
	require.True(t, ok)
	assert.Equal(t, fakes[0].result.memory, m)

	cv, err := r.Counts()
	require.NoError(t, err)
	pc, ok := cv.Single()
	require.True(t, ok)
	c, err := pc.Eval()
	require.NoError(t, err)
	// Shots 1 and 3 share bases; shot 2 does not.
	assert.Equal(t, counts.Counts{"1 1": 1, "0 0": 1}, c)
	assert.True(t, pc.Sifted())
	assert.Equal(t, []string{"alice_recv", "bob_recv"}, pc.Specs())

	j, err := r.Jobs()
	require.NoError(t, err)
	sj, ok := j.Single()
	require.True(t, ok)
	assert.Equal(t, "job-0", sj.ID())
}

func TestFinalizeBatchAligned(t *testing.T) {
	cs, js, fakes := batch(3)
	r, err := New(cs, js, quietOpts(false))
	require.NoError(t, err)
	require.NoError(t, r.Finalize(nil, false))

	res, err := r.Result()
	require.NoError(t, err)
	assert.False(t, res.IsSingle())
	_, ok := res.Single()
	assert.False(t, ok)
	require.Equal(t, 3, res.Len())
	for i, got := range res.All() {
		assert.Same(t, fakes[i].result, got)
	}
	cv, err := r.Counts()
	require.NoError(t, err)
	assert.Equal(t, 3, cv.Len())
}

func TestCollapseNeedsSingleCircuit(t *testing.T) {
	cs, js, _ := batch(2)
	r, err := New(cs, js, quietOpts(true))
	require.NoError(t, err)
	require.NoError(t, r.Finalize(nil, false))
	mem, err := r.Memory()
	require.NoError(t, err)
	assert.False(t, mem.IsSingle())
	assert.Len(t, mem.All(), 2)
}

func TestFinalizeJobNotReady(t *testing.T) {
	cs, js, fakes := batch(2)
	fakes[1].status = job.StatusRunning
	r, err := New(cs, js, quietOpts(false))
	require.NoError(t, err)

	err = r.Finalize(nil, false)
	var nr *JobNotReadyError
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, 1, nr.Index)
	assert.Equal(t, "job-1", nr.JobID)
	assert.Equal(t, job.StatusRunning, nr.Status)
	assert.Contains(t, err.Error(), "RUNNING")

	fin, err := r.IsFinalized()
	require.NoError(t, err)
	assert.False(t, fin)
	for _, f := range fakes {
		assert.Zero(t, f.fetched)
	}
}

func TestFinalizeResultErrorLeavesStateUnset(t *testing.T) {
	cs, js, fakes := batch(2)
	boom := errors.New("boom")
	fakes[1].err = boom
	r, err := New(cs, js, quietOpts(false))
	require.NoError(t, err)
	assert.ErrorIs(t, r.Finalize(nil, false), boom)
	fin, err := r.IsFinalized()
	require.NoError(t, err)
	assert.False(t, fin)
}

func TestFinalizeTwice(t *testing.T) {
	cs, js, fakes := batch(2)
	var buf bytes.Buffer
	l := zerolog.New(&buf)
	r, err := New(cs, js, Opts{Logger: &l, Monitor: &recordingMonitor{}})
	require.NoError(t, err)
	require.NoError(t, r.Finalize(nil, false))
	before, err := r.Counts()
	require.NoError(t, err)

	require.NoError(t, r.Finalize(nil, false))
	after, err := r.Counts()
	require.NoError(t, err)
	assert.Equal(t, before.All(), after.All())
	for i := range fakes {
		assert.Same(t, before.All()[i], after.All()[i])
		assert.Equal(t, 1, fakes[i].fetched)
	}
	assert.Contains(t, buf.String(), "already finalized")
}

func TestFinalizeForceRedo(t *testing.T) {
	cs, js, fakes := batch(2)
	r, err := New(cs, js, quietOpts(false))
	require.NoError(t, err)
	require.NoError(t, r.Finalize(nil, false))
	before, err := r.Counts()
	require.NoError(t, err)

	onlyOnes := func(k string) bool { return k == "1 1" }
	require.NoError(t, r.Finalize(onlyOnes, true))
	after, err := r.Counts()
	require.NoError(t, err)
	require.Equal(t, 2, after.Len())
	for i := range fakes {
		assert.NotSame(t, before.All()[i], after.All()[i])
		assert.Equal(t, 2, fakes[i].fetched)
		c, err := after.All()[i].Eval()
		require.NoError(t, err)
		assert.Equal(t, counts.Counts{"1 1": 1}, c)
	}
	res, err := r.Result()
	require.NoError(t, err)
	assert.Equal(t, 2, res.Len())
}

func TestPendingCountsEvalOnce(t *testing.T) {
	calls := 0
	agg := func(src counts.Source, specs []string, pred counts.Predicate, filter counts.KeyFilter) (counts.Counts, error) {
		calls++
		return counts.Counts{"x": calls}, nil
	}
	cs, js, _ := batch(1)
	opts := quietOpts(false)
	opts.Aggregator = agg
	r, err := New(cs, js, opts)
	require.NoError(t, err)
	require.NoError(t, r.Finalize(nil, false))
	assert.Zero(t, calls, "counts must not be computed at finalize time")

	cv, err := r.Counts()
	require.NoError(t, err)
	first, err := cv.All()[0].Eval()
	require.NoError(t, err)
	second, err := cv.All()[0].Eval()
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestCountSpecs(t *testing.T) {
	tcs := []struct {
		name      string
		c         circuit.Circuit
		specs     []string
		predicate bool
	}{
		{"no parties", circuit.Circuit{Name: "bell"}, nil, false},
		{"fixed basis", exchangeCircuit("fixed", "Z"), []string{"alice_recv", "bob_recv"}, false},
		{"random basis", exchangeCircuit("random", circuit.BasisRandom), []string{"alice_recv", "bob_recv"}, true},
		{"one party", circuit.Circuit{Name: "solo", Parties: &circuit.Parties{Party1: "alice"}}, nil, false},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			specs, pred := countSpecs(tc.c)
			assert.Equal(t, tc.specs, specs)
			assert.Equal(t, tc.predicate, pred != nil)
		})
	}
}

func TestPartialStateIsInvariantViolation(t *testing.T) {
	cs, js, _ := batch(2)
	r, err := New(cs, js, quietOpts(false))
	require.NoError(t, err)
	r.memory = [][]string{{"0 0 0 0"}, {"1 1 1 1"}}

	_, err = r.IsFinalized()
	assert.ErrorIs(t, err, ErrInvariant)
	assert.ErrorIs(t, r.Finalize(nil, false), ErrInvariant)
	assert.ErrorIs(t, r.Monitor(context.Background()), ErrInvariant)
}

func TestCorruptedLengthIsInvariantViolation(t *testing.T) {
	cs, js, _ := batch(2)
	r, err := New(cs, js, quietOpts(false))
	require.NoError(t, err)
	require.NoError(t, r.Finalize(nil, false))
	r.memory = r.memory[:1]

	_, err = r.Memory()
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestMonitor(t *testing.T) {
	cs, js, _ := batch(2)
	mon := &recordingMonitor{}
	l := zerolog.Nop()
	r, err := New(cs, js, Opts{Monitor: mon, Logger: &l})
	require.NoError(t, err)

	require.NoError(t, r.Monitor(context.Background()))
	assert.Equal(t, 1, mon.calls)
	assert.Equal(t, js, mon.jobs)
	fin, err := r.IsFinalized()
	require.NoError(t, err)
	assert.False(t, fin)

	require.NoError(t, r.Finalize(nil, false))
	require.NoError(t, r.Monitor(context.Background()))
	assert.Equal(t, 1, mon.calls)
}
