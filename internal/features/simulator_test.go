package features

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSeeded(t *testing.T, p Profile, seed uint64) *Simulator {
	t.Helper()
	sim, err := NewSimulator(p, rand.NewPCG(seed, seed+1))
	require.NoError(t, err)
	return sim
}

func TestGenerate_NonNegative(t *testing.T) {
	// A wide spread around small means forces plenty of negative raw draws.
	wide := HumanProfile()
	for i := range wide {
		wide[i].StdDev = wide[i].Mean * 3
	}

	for _, p := range []Profile{HumanProfile(), BotProfile(), wide} {
		sim := newSeeded(t, p, 7)
		for i := 0; i < 2000; i++ {
			v, err := sim.Generate()
			require.NoError(t, err)
			for j, x := range v.Slice() {
				require.GreaterOrEqual(t, x, 0.0, "metric %s went negative on draw %d", Names[j], i)
			}
		}
	}
}

func TestGenerate_ClampsToZero(t *testing.T) {
	var p Profile
	for i := range p {
		p[i] = Baseline{Mean: -1000, StdDev: 1}
	}
	sim := newSeeded(t, p, 1)

	v, err := sim.Generate()
	require.NoError(t, err)
	assert.Equal(t, Vector{}, v)
}

func TestGenerate_ZeroSpreadReturnsBaseline(t *testing.T) {
	var p Profile
	for i := range p {
		p[i] = Baseline{Mean: float64(i + 1)}
	}
	sim := newSeeded(t, p, 1)

	v, err := sim.Generate()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, v.Slice())
}

func TestGenerate_DeterministicWithSeed(t *testing.T) {
	a := newSeeded(t, HumanProfile(), 99)
	b := newSeeded(t, HumanProfile(), 99)
	c := newSeeded(t, HumanProfile(), 100)

	va, err := a.Generate()
	require.NoError(t, err)
	vb, err := b.Generate()
	require.NoError(t, err)
	vc, err := c.Generate()
	require.NoError(t, err)

	assert.Equal(t, va, vb, "same seed must reproduce the same draw")
	assert.NotEqual(t, va, vc)

	// Successive calls are independent draws, not repeats.
	next, err := a.Generate()
	require.NoError(t, err)
	assert.NotEqual(t, va, next)
}

func TestGenerate_CentresOnBaseline(t *testing.T) {
	sim := newSeeded(t, HumanProfile(), 3)
	rows, err := sim.Batch(5000)
	require.NoError(t, err)

	var sum float64
	for _, r := range rows {
		sum += r[1]
	}
	// Typing speed is rarely clamped (mean 200, sd 80), so the sample mean stays near 200.
	assert.InDelta(t, 200.0, sum/float64(len(rows)), 5.0)
}

func TestGenerate_Concurrent(t *testing.T) {
	sim := newSeeded(t, HumanProfile(), 5)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, err := sim.Generate()
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}

func TestNewSimulator_Validation(t *testing.T) {
	p := HumanProfile()
	p[3].StdDev = -1
	_, err := NewSimulator(p, rand.NewPCG(1, 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mouse_click_rate")

	_, err = NewSimulator(HumanProfile(), nil)
	require.Error(t, err)
}

func TestVectorSliceOrder(t *testing.T) {
	v := Vector{
		AvgMouseSpeed:        1,
		AvgTypingSpeed:       2,
		TabSwitchRate:        3,
		MouseClickRate:       4,
		KeyboardErrorRate:    5,
		ActiveWindowDuration: 6,
	}
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, v.Slice())

	back, err := FromSlice(v.Slice())
	require.NoError(t, err)
	assert.Equal(t, v, back)

	_, err = FromSlice([]float64{1, 2})
	assert.Error(t, err)
}
