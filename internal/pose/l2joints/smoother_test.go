package l2joints

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func constantInput() [Count]r3.Vec {
	var p [Count]r3.Vec
	for i := range p {
		p[i] = r3.Vec{X: float64(i), Y: 1.5, Z: -float64(i) / 3}
	}
	return p
}

func TestSmoother_SeedFromZeroWarmUp(t *testing.T) {
	sm, err := NewSmoother(0.5, SeedFromZero)
	require.NoError(t, err)
	in := constantInput()

	out := sm.Smooth(&in)
	for i := range out {
		assert.Equal(t, r3.Scale(0.5, in[i]), out[i])
	}
	assert.Equal(t, uint64(1), sm.Frames())
}

func TestSmoother_SeedFromFirst(t *testing.T) {
	sm, err := NewSmoother(0.5, SeedFromFirst)
	require.NoError(t, err)
	in := constantInput()
	out := sm.Smooth(&in)
	assert.Equal(t, in, out)

	next := in
	next[Hip] = r3.Vec{X: 10}
	out = sm.Smooth(&next)
	assert.Equal(t, r3.Vec{X: 5, Y: 0.75, Z: 0}, out[Hip])
}

func TestSmoother_Convergence(t *testing.T) {
	sm, err := NewSmoother(0.5, SeedFromZero)
	require.NoError(t, err)
	in := constantInput()

	var out [Count]r3.Vec
	for n := 1; n <= 30; n++ {
		out = sm.Smooth(&in)
		// Error shrinks by exactly the factor each step.
		wantErr := math.Pow(0.5, float64(n))
		for i := range out {
			gotErr := r3.Norm(r3.Sub(in[i], out[i]))
			assert.InDelta(t, wantErr*r3.Norm(in[i]), gotErr, 1e-9, "joint %d step %d", i, n)
		}
	}
	for i := range out {
		assert.Less(t, r3.Norm(r3.Sub(in[i], out[i])), 1e-6)
	}
}

func TestSmoother_ZeroFactorPassesThrough(t *testing.T) {
	sm, err := NewSmoother(0, SeedFromZero)
	require.NoError(t, err)
	in := constantInput()
	assert.Equal(t, in, sm.Smooth(&in))
}

func TestSmoother_Reset(t *testing.T) {
	sm, err := NewSmoother(0.5, SeedFromZero)
	require.NoError(t, err)
	in := constantInput()
	sm.Smooth(&in)
	sm.Smooth(&in)
	sm.Reset()
	assert.Equal(t, uint64(0), sm.Frames())
	out := sm.Smooth(&in)
	assert.Equal(t, r3.Scale(0.5, in[Head]), out[Head])
}

func TestNewSmoother_Invalid(t *testing.T) {
	for _, f := range []float64{-0.1, 1, 2, math.NaN()} {
		_, err := NewSmoother(f, SeedFromFirst)
		assert.Error(t, err, "factor %v", f)
	}
	_, err := NewSmoother(0.5, SeedPolicy(7))
	assert.Error(t, err)
	assert.Equal(t, "zero", SeedFromZero.String())
}

func TestParseSeedPolicy(t *testing.T) {
	for _, p := range []SeedPolicy{SeedFromFirst, SeedFromZero} {
		got, err := ParseSeedPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParseSeedPolicy("last")
	assert.Error(t, err)
}
