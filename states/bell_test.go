package states

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/alan-christopher/qrun/backend/sampler"
	"github.com/alan-christopher/qrun/job"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertDistribution(t *testing.T, want, got sampler.Distribution) {
	t.Helper()
	require.Len(t, got, len(want), "got %v", got)
	for k, p := range want {
		assert.InDelta(t, p, got[k], 1e-12, "outcome %q", k)
	}
}

func TestBellKinds(t *testing.T) {
	tcs := []struct {
		kind BellKind
		want sampler.Distribution
	}{
		{PhiPlus, sampler.Distribution{"00": 0.5, "11": 0.5}},
		{PsiMinus, sampler.Distribution{"01": 0.5, "10": 0.5}},
		{PhiMinus, sampler.Distribution{"00": 0.5, "11": 0.5}},
		{PsiPlus, sampler.Distribution{"01": 0.5, "10": 0.5}},
	}
	for _, tc := range tcs {
		t.Run(tc.kind.String(), func(t *testing.T) {
			b, err := NewBell(tc.kind)
			require.NoError(t, err)
			c := b.Circuit("bell")
			require.NoError(t, c.Validate())
			got, err := b.Distribution(c)
			require.NoError(t, err)
			assertDistribution(t, tc.want, got)
		})
	}
}

func TestBellCustomStart(t *testing.T) {
	b := Bell{
		Q0: Amplitudes{1, 0},
		Q1: Amplitudes{complex(math.Sqrt(0.75), 0), complex(0, 0.5)},
	}
	got, err := b.Distribution(b.Circuit("custom"))
	require.NoError(t, err)
	assertDistribution(t, sampler.Distribution{
		"00": 0.375,
		"11": 0.375,
		"10": 0.125,
		"01": 0.125,
	}, got)
}

func TestBellRejects(t *testing.T) {
	_, err := NewBell(BellKind(4))
	assert.Error(t, err)
	assert.Equal(t, "BellKind(4)", BellKind(4).String())

	b, err := NewBell(PhiPlus)
	require.NoError(t, err)
	_, err = b.Distribution(measured("wide", 3))
	assert.Error(t, err)

	unnormalized := Bell{Q0: Amplitudes{1, 1}, Q1: ket0}
	_, err = unnormalized.Distribution(unnormalized.Circuit("bad"))
	assert.Error(t, err)
}

func TestParseBellKind(t *testing.T) {
	for k := PhiPlus; k <= PsiPlus; k++ {
		got, err := ParseBellKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseBellKind("phi")
	assert.Error(t, err)
}

func TestBellSampled(t *testing.T) {
	b, err := NewBell(PsiPlus)
	require.NoError(t, err)
	l := zerolog.Nop()
	s, err := sampler.New(sampler.Opts{Model: b.Distribution, Seed: 11, Logger: &l})
	require.NoError(t, err)

	j, err := s.Submit(context.Background(), b.Circuit("pair"), 2000)
	require.NoError(t, err)
	require.NoError(t, job.Wait(context.Background(), []job.Job{j}, time.Millisecond))
	res, err := j.Result()
	require.NoError(t, err)
	mem, err := res.Memory()
	require.NoError(t, err)
	require.Len(t, mem, 2000)
	ones := 0
	for _, shot := range mem {
		require.Contains(t, []string{"01", "10"}, shot)
		if shot == "01" {
			ones++
		}
	}
	// Each outcome has probability 1/2; 2000 shots keep well inside 800..1200.
	assert.InDelta(t, 1000, ones, 200)
}
