// File: internal/features/simulator.go
package features

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"
)

// Baseline is the centre and spread of one simulated metric.
type Baseline struct {
	Mean   float64
	StdDev float64
}

// Profile holds one Baseline per metric, in Names order.
type Profile [Count]Baseline

// HumanProfile is the default behaviour of an ordinary user.
func HumanProfile() Profile {
	return Profile{
		{Mean: 150.0, StdDev: 50.0}, // avg_mouse_speed
		{Mean: 200.0, StdDev: 80.0}, // avg_typing_speed
		{Mean: 0.5, StdDev: 0.2},    // tab_switch_rate
		{Mean: 2.0, StdDev: 1.0},    // mouse_click_rate
		{Mean: 0.05, StdDev: 0.03},  // keyboard_error_rate
		{Mean: 10.0, StdDev: 5.0},   // active_window_duration
	}
}

// BotProfile describes scripted input: fast, regular, error free, with short windows.
// It is only used to synthesise labelled training data.
func BotProfile() Profile {
	return Profile{
		{Mean: 420.0, StdDev: 30.0},
		{Mean: 520.0, StdDev: 25.0},
		{Mean: 1.8, StdDev: 0.3},
		{Mean: 6.5, StdDev: 0.8},
		{Mean: 0.004, StdDev: 0.003},
		{Mean: 2.0, StdDev: 1.0},
	}
}

// Validate rejects negative spreads, which distuv would accept and silently misbehave on.
func (p Profile) Validate() error {
	for i, b := range p {
		if b.StdDev < 0 || math.IsNaN(b.StdDev) || math.IsNaN(b.Mean) {
			return fmt.Errorf("features: invalid baseline for %s: mean=%v stddev=%v", Names[i], b.Mean, b.StdDev)
		}
	}
	return nil
}

// Simulator draws Vectors from a Profile. It is safe for concurrent use.
type Simulator struct {
	mu    sync.Mutex
	dists [Count]distuv.Normal
}

// NewSimulator builds a simulator whose draws all come from src.
func NewSimulator(p Profile, src rand.Source) (*Simulator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("features: a random source is required")
	}
	s := &Simulator{}
	for i, b := range p {
		s.dists[i] = distuv.Normal{Mu: b.Mean, Sigma: b.StdDev, Src: src}
	}
	return s, nil
}

// Generate draws one Vector. Negative draws are clamped to zero.
func (s *Simulator) Generate() (Vector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	x := make([]float64, Count)
	for i := range s.dists {
		x[i] = math.Max(0, s.dists[i].Rand())
	}
	return FromSlice(x)
}

// Batch draws n Vectors as model input rows.
func (s *Simulator) Batch(n int) ([][]float64, error) {
	rows := make([][]float64, 0, n)
	for range n {
		v, err := s.Generate()
		if err != nil {
			return nil, err
		}
		rows = append(rows, v.Slice())
	}
	return rows, nil
}
