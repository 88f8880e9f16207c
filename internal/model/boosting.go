// File: internal/model/boosting.go
package model

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

// GradientBoosting is a binary logistic ensemble of regression trees in the XGBoost
// style. Each leaf holds one weight (learning rate already applied); the margin is
// BaseMargin plus the weights of the reached leaves.
type GradientBoosting struct {
	NFeatures  int     `json:"n_features"`
	BaseMargin float64 `json:"base_margin"`
	Trees      []Tree  `json:"trees"`
}

// PredictProba implements ProbabilisticModel and returns [P(human), P(bot)].
func (g *GradientBoosting) PredictProba(x []float64) ([]float64, error) {
	if err := checkDim(x, g.NFeatures); err != nil {
		return nil, err
	}
	margin := g.BaseMargin
	for i := range g.Trees {
		leaf, _ := g.Trees[i].walk(x)
		margin += leaf.Value[0]
	}
	p := sigmoid(margin)
	return []float64{1 - p, p}, nil
}

func (g *GradientBoosting) validate() error {
	if g.NFeatures <= 0 {
		return fmt.Errorf("gradient boosting needs a positive feature count")
	}
	if math.IsNaN(g.BaseMargin) || math.IsInf(g.BaseMargin, 0) {
		return fmt.Errorf("gradient boosting base margin is not finite")
	}
	for i := range g.Trees {
		if err := g.Trees[i].validate(g.NFeatures, 1); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// BoostParams configures TrainGradientBoosting. Zero values select the defaults.
type BoostParams struct {
	Rounds         int
	MaxDepth       int
	LearningRate   float64
	Lambda         float64
	MinChildWeight float64
	// Subsample is the row fraction drawn per round; zero or one uses every row.
	Subsample float64
}

func (p BoostParams) withDefaults() BoostParams {
	if p.Rounds <= 0 {
		p.Rounds = 50
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = 3
	}
	if p.LearningRate <= 0 {
		p.LearningRate = 0.3
	}
	if p.Lambda <= 0 {
		p.Lambda = 1
	}
	if p.MinChildWeight <= 0 {
		p.MinChildWeight = 1
	}
	if p.Subsample <= 0 || p.Subsample > 1 {
		p.Subsample = 1
	}
	return p
}

// TrainGradientBoosting fits a binary classifier. Labels must be 0 or 1.
func TrainGradientBoosting(d Dataset, p BoostParams, rng *rand.Rand) (*GradientBoosting, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d.Classes() > 2 {
		return nil, fmt.Errorf("model: gradient boosting is binary, got %d classes", d.Classes())
	}
	p = p.withDefaults()

	var positives float64
	for _, y := range d.Y {
		positives += float64(y)
	}
	mean := math.Min(math.Max(positives/float64(len(d.Y)), 1e-6), 1-1e-6)

	model := &GradientBoosting{NFeatures: d.Features(), BaseMargin: math.Log(mean / (1 - mean))}
	margins := make([]float64, len(d.X))
	for i := range margins {
		margins[i] = model.BaseMargin
	}

	grad := make([]float64, len(d.X))
	hess := make([]float64, len(d.X))
	for range p.Rounds {
		rows := make([]int, 0, len(d.X))
		for i := range d.X {
			pr := sigmoid(margins[i])
			grad[i] = pr - float64(d.Y[i])
			hess[i] = pr * (1 - pr)
			if p.Subsample == 1 || rng.Float64() < p.Subsample {
				rows = append(rows, i)
			}
		}
		if len(rows) == 0 {
			continue
		}

		gr := &boostGrower{x: d.X, grad: grad, hess: hess, params: p}
		gr.grow(rows, 0)
		tree := gr.b.tree()
		model.Trees = append(model.Trees, tree)

		for i := range d.X {
			leaf, _ := tree.walk(d.X[i])
			margins[i] += leaf.Value[0]
		}
	}
	return model, nil
}

type boostGrower struct {
	x          [][]float64
	grad, hess []float64
	params     BoostParams
	b          treeBuilder
}

func (g *boostGrower) sums(rows []int) (float64, float64) {
	var gs, hs float64
	for _, r := range rows {
		gs += g.grad[r]
		hs += g.hess[r]
	}
	return gs, hs
}

func (g *boostGrower) grow(rows []int, depth int) int {
	gs, hs := g.sums(rows)
	weight := -gs / (hs + g.params.Lambda) * g.params.LearningRate
	if depth >= g.params.MaxDepth || len(rows) < 2 {
		return g.b.leaf([]float64{weight})
	}

	feature, threshold, ok := g.bestSplit(rows, gs, hs)
	if !ok {
		return g.b.leaf([]float64{weight})
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

// bestSplit maximises the second-order gain over every feature.
func (g *boostGrower) bestSplit(rows []int, gs, hs float64) (int, float64, bool) {
	lambda := g.params.Lambda
	parent := gs * gs / (hs + lambda)
	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0

	sorted := make([]int, len(rows))
	for f := range g.x[0] {
		copy(sorted, rows)
		slices.SortFunc(sorted, func(a, b int) int {
			switch va, vb := g.x[a][f], g.x[b][f]; {
			case va < vb:
				return -1
			case va > vb:
				return 1
			}
			return 0
		})

		var gl, hl float64
		for i := 0; i < len(sorted)-1; i++ {
			gl += g.grad[sorted[i]]
			hl += g.hess[sorted[i]]
			cur, next := g.x[sorted[i]][f], g.x[sorted[i+1]][f]
			if cur == next {
				continue
			}
			gr, hr := gs-gl, hs-hl
			if hl < g.params.MinChildWeight || hr < g.params.MinChildWeight {
				continue
			}
			gain := gl*gl/(hl+lambda) + gr*gr/(hr+lambda) - parent
			if gain > bestGain {
				bestFeature, bestThreshold, bestGain = f, midpoint(cur, next), gain
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
