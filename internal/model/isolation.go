// File: internal/model/isolation.go
package model

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// eulerGamma is the Euler-Mascheroni constant used by the average path length estimate.
const eulerGamma = 0.5772156649015329

// defaultIsolationThreshold is the customary cut-off when no contamination is given.
const defaultIsolationThreshold = 0.5

// IsolationForest is an unsupervised anomaly detector. It only reports labels:
// AnomalyLabel (-1) for outliers and 1 for inliers. Each leaf stores the expected
// remaining path length for the rows it isolated.
type IsolationForest struct {
	NFeatures  int     `json:"n_features"`
	SampleSize int     `json:"sample_size"`
	Threshold  float64 `json:"threshold"`
	Trees      []Tree  `json:"trees"`
}

// AnomalyScore returns 2^(-E[h(x)]/c(n)); values near 1 are easy to isolate.
func (f *IsolationForest) AnomalyScore(x []float64) (float64, error) {
	if err := checkDim(x, f.NFeatures); err != nil {
		return 0, err
	}
	var total float64
	for i := range f.Trees {
		leaf, depth := f.Trees[i].walk(x)
		total += float64(depth) + leaf.Value[0]
	}
	mean := total / float64(len(f.Trees))
	return math.Pow(2, -mean/averagePathLength(f.SampleSize)), nil
}

// Predict implements LabelOnlyModel.
func (f *IsolationForest) Predict(x []float64) (int, error) {
	s, err := f.AnomalyScore(x)
	if err != nil {
		return 0, err
	}
	if s > f.Threshold {
		return AnomalyLabel, nil
	}
	return 1, nil
}

func (f *IsolationForest) validate() error {
	if f.NFeatures <= 0 || f.SampleSize < 2 || len(f.Trees) == 0 {
		return fmt.Errorf("isolation forest needs features, a sample size of at least 2 and trees")
	}
	if f.Threshold <= 0 || f.Threshold >= 1 {
		return fmt.Errorf("isolation forest threshold %v outside (0,1)", f.Threshold)
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(f.NFeatures, 1); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// IsolationParams configures TrainIsolationForest. Zero values select the defaults.
type IsolationParams struct {
	Trees      int
	SampleSize int
	// Contamination is the expected outlier fraction used to place the threshold.
	// Zero keeps the 0.5 score cut-off.
	Contamination float64
}

// TrainIsolationForest fits the detector on unlabelled rows; labels in d are ignored.
func TrainIsolationForest(d Dataset, p IsolationParams, rng *rand.Rand) (*IsolationForest, error) {
	if len(d.Y) == 0 {
		d.Y = make([]int, len(d.X))
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if p.Contamination < 0 || p.Contamination >= 0.5 {
		return nil, fmt.Errorf("model: contamination %v outside [0,0.5)", p.Contamination)
	}
	if p.Trees <= 0 {
		p.Trees = 100
	}
	if p.SampleSize <= 0 {
		p.SampleSize = 256
	}
	p.SampleSize = max(2, min(p.SampleSize, len(d.X)))

	heightLimit := int(math.Ceil(math.Log2(float64(p.SampleSize))))
	forest := &IsolationForest{
		NFeatures:  d.Features(),
		SampleSize: p.SampleSize,
		Threshold:  defaultIsolationThreshold,
	}
	for range p.Trees {
		sample := rng.Perm(len(d.X))[:p.SampleSize]
		g := &isolationGrower{x: d.X, limit: heightLimit, rng: rng}
		g.grow(sample, 0)
		forest.Trees = append(forest.Trees, g.b.tree())
	}

	if p.Contamination > 0 {
		scores := make([]float64, len(d.X))
		for i, row := range d.X {
			s, err := forest.AnomalyScore(row)
			if err != nil {
				return nil, err
			}
			scores[i] = s
		}
		sort.Float64s(scores)
		forest.Threshold = stat.Quantile(1-p.Contamination, stat.Empirical, scores, nil)
	}
	return forest, nil
}

type isolationGrower struct {
	x     [][]float64
	limit int
	rng   *rand.Rand
	b     treeBuilder
}

func (g *isolationGrower) grow(rows []int, depth int) int {
	if depth >= g.limit || len(rows) <= 1 {
		return g.b.leaf([]float64{averagePathLength(len(rows))})
	}

	// Only features that still vary can split the rows.
	var varying []int
	for f := range g.x[rows[0]] {
		lo, hi := g.bounds(rows, f)
		if hi > lo {
			varying = append(varying, f)
		}
	}
	if len(varying) == 0 {
		return g.b.leaf([]float64{averagePathLength(len(rows))})
	}

	feature := varying[g.rng.IntN(len(varying))]
	lo, hi := g.bounds(rows, feature)
	threshold := lo + g.rng.Float64()*(hi-lo)
	if threshold >= hi {
		threshold = lo
	}

	var left, right []int
	for _, r := range rows {
		if g.x[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	node := g.b.split(feature, threshold)
	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	g.b.attach(node, l, r)
	return node
}

func (g *isolationGrower) bounds(rows []int, f int) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range rows {
		lo = math.Min(lo, g.x[r][f])
		hi = math.Max(hi, g.x[r][f])
	}
	return lo, hi
}

// averagePathLength is c(n), the mean unsuccessful search length in a binary search tree.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}
