// File: internal/model/forest.go
package model

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

// RandomForest is a bagged ensemble of classification trees. Each leaf stores the class
// distribution of the training rows that reached it; predictions average them.
type RandomForest struct {
	NFeatures int    `json:"n_features"`
	NClasses  int    `json:"n_classes"`
	Trees     []Tree `json:"trees"`
}

// PredictProba implements ProbabilisticModel.
func (f *RandomForest) PredictProba(x []float64) ([]float64, error) {
	if err := checkDim(x, f.NFeatures); err != nil {
		return nil, err
	}
	proba := make([]float64, f.NClasses)
	for i := range f.Trees {
		leaf, _ := f.Trees[i].walk(x)
		for k, p := range leaf.Value {
			proba[k] += p
		}
	}
	for k := range proba {
		proba[k] /= float64(len(f.Trees))
	}
	return proba, nil
}

func (f *RandomForest) validate() error {
	if f.NFeatures <= 0 || f.NClasses <= 0 || len(f.Trees) == 0 {
		return fmt.Errorf("random forest needs features, classes and trees (got %d, %d, %d)", f.NFeatures, f.NClasses, len(f.Trees))
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(f.NFeatures, f.NClasses); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// ForestParams configures TrainRandomForest. Zero values select the defaults.
type ForestParams struct {
	Trees int
	// MaxDepth of zero grows trees until leaves are pure.
	MaxDepth        int
	MinSamplesSplit int
	// MaxFeatures considered per split; zero means sqrt(features).
	MaxFeatures int
}

func (p ForestParams) withDefaults(nFeatures int) ForestParams {
	if p.Trees <= 0 {
		p.Trees = 100
	}
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if p.MaxFeatures <= 0 || p.MaxFeatures > nFeatures {
		p.MaxFeatures = max(1, int(math.Sqrt(float64(nFeatures))))
	}
	return p
}

// TrainRandomForest fits a forest of Gini-split trees on bootstrap samples.
func TrainRandomForest(d Dataset, p ForestParams, rng *rand.Rand) (*RandomForest, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	nFeatures := d.Features()
	p = p.withDefaults(nFeatures)

	forest := &RandomForest{NFeatures: nFeatures, NClasses: d.Classes()}
	for range p.Trees {
		sample := make([]int, len(d.X))
		for i := range sample {
			sample[i] = rng.IntN(len(d.X))
		}
		g := &giniGrower{data: d, params: p, classes: forest.NClasses, rng: rng}
		g.grow(sample, 0)
		forest.Trees = append(forest.Trees, g.b.tree())
	}
	return forest, nil
}

type giniGrower struct {
	data    Dataset
	params  ForestParams
	classes int
	rng     *rand.Rand
	b       treeBuilder
}

func (g *giniGrower) distribution(rows []int) []float64 {
	dist := make([]float64, g.classes)
	for _, r := range rows {
		dist[g.data.Y[r]]++
	}
	for k := range dist {
		dist[k] /= float64(len(rows))
	}
	return dist
}

func (g *giniGrower) grow(rows []int, depth int) int {
	dist := g.distribution(rows)
	pure := slices.Contains(dist, 1.0)
	if pure || len(rows) < g.params.MinSamplesSplit || (g.params.MaxDepth > 0 && depth >= g.params.MaxDepth) {
		return g.b.leaf(dist)
	}

	feature, threshold, ok := g.bestSplit(rows)
	if !ok {
		return g.b.leaf(dist)
	}

	var left, right []int
	for _, r := range rows {
		if g.data.X[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	if len(left) == 0 || len(right) == 0 {
		return g.b.leaf(dist)
	}

	node := g.b.split(feature, threshold)
	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	g.b.attach(node, l, r)
	return node
}

// bestSplit searches a random subset of features for the threshold with the lowest
// weighted Gini impurity.
func (g *giniGrower) bestSplit(rows []int) (int, float64, bool) {
	nFeatures := g.data.Features()
	candidates := g.rng.Perm(nFeatures)[:g.params.MaxFeatures]

	bestFeature, bestThreshold, bestImpurity := -1, 0.0, math.Inf(1)
	sorted := make([]int, len(rows))
	total := make([]float64, g.classes)
	for _, r := range rows {
		total[g.data.Y[r]]++
	}

	for _, f := range candidates {
		copy(sorted, rows)
		slices.SortFunc(sorted, func(a, b int) int {
			va, vb := g.data.X[a][f], g.data.X[b][f]
			switch {
			case va < vb:
				return -1
			case va > vb:
				return 1
			}
			return 0
		})

		left := make([]float64, g.classes)
		for i := 0; i < len(sorted)-1; i++ {
			left[g.data.Y[sorted[i]]]++
			cur, next := g.data.X[sorted[i]][f], g.data.X[sorted[i+1]][f]
			if cur == next {
				continue
			}
			nl := float64(i + 1)
			nr := float64(len(sorted)) - nl
			impurity := nl*gini(left, nl) + nr*giniComplement(total, left, nr)
			if impurity < bestImpurity {
				bestFeature, bestThreshold, bestImpurity = f, midpoint(cur, next), impurity
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func gini(counts []float64, n float64) float64 {
	s := 1.0
	for _, c := range counts {
		p := c / n
		s -= p * p
	}
	return s
}

func giniComplement(total, left []float64, n float64) float64 {
	s := 1.0
	for k := range total {
		p := (total[k] - left[k]) / n
		s -= p * p
	}
	return s
}

// midpoint returns a threshold t with lo <= t < hi, even when the two values are adjacent floats.
func midpoint(lo, hi float64) float64 {
	m := lo + (hi-lo)/2
	if m >= hi {
		return lo
	}
	return m
}
