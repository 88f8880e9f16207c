// File: internal/model/model.go
package model

import (
	"errors"
	"fmt"
	"math"
)

// Scores assigned to label-only models, which cannot report a probability.
// The values are fixed defaults rather than a calibration.
const (
	AnomalyScore = 0.8
	NormalScore  = 0.2
)

// AnomalyLabel is the label a label-only detector emits for an outlier.
const AnomalyLabel = -1

var (
	// ErrNoModel means neither a model file nor the demo fallback produced a classifier.
	ErrNoModel = errors.New("model: no usable model could be loaded or trained")
	// ErrDimension is returned when an input does not match the model's feature count.
	ErrDimension = errors.New("model: feature dimension mismatch")
)

// ProbabilisticModel reports one probability per class.
type ProbabilisticModel interface {
	PredictProba(x []float64) ([]float64, error)
}

// LabelOnlyModel reports a class label only.
type LabelOnlyModel interface {
	Predict(x []float64) (int, error)
}

// Classifier is a loaded model with its capability fixed at construction time.
// Exactly one of the two capabilities is set.
type Classifier struct {
	proba ProbabilisticModel
	label LabelOnlyModel
}

// NewProbabilistic wraps a model that reports class probabilities.
func NewProbabilistic(m ProbabilisticModel) Classifier {
	return Classifier{proba: m}
}

// NewLabelOnly wraps a model that reports labels only.
func NewLabelOnly(m LabelOnlyModel) Classifier {
	return Classifier{label: m}
}

// IsZero reports whether the classifier wraps no model at all.
func (c Classifier) IsZero() bool {
	return c.proba == nil && c.label == nil
}

// Probabilistic reports whether Score reads probabilities rather than labels.
func (c Classifier) Probabilistic() bool {
	return c.proba != nil
}

// Unwrap returns the underlying model value.
func (c Classifier) Unwrap() any {
	if c.proba != nil {
		return c.proba
	}
	return c.label
}

// Score maps one input row to a bot likelihood in [0,1].
//
// Probabilistic models yield the probability of class 1, or the single value when only
// one class is reported. Label-only models yield AnomalyScore for AnomalyLabel and
// NormalScore for anything else.
func (c Classifier) Score(x []float64) (float64, error) {
	var score float64
	switch {
	case c.proba != nil:
		p, err := c.proba.PredictProba(x)
		if err != nil {
			return 0, err
		}
		switch len(p) {
		case 0:
			return 0, fmt.Errorf("model: empty probability output")
		case 1:
			score = p[0]
		default:
			score = p[1]
		}
	case c.label != nil:
		label, err := c.label.Predict(x)
		if err != nil {
			return 0, err
		}
		score = NormalScore
		if label == AnomalyLabel {
			score = AnomalyScore
		}
	default:
		return 0, fmt.Errorf("model: classifier has no model")
	}

	if math.IsNaN(score) || score < 0 || score > 1 {
		return 0, fmt.Errorf("model: score %v outside [0,1]", score)
	}
	return score, nil
}

func checkDim(x []float64, n int) error {
	if len(x) != n {
		return fmt.Errorf("%w: expected %d features, got %d", ErrDimension, n, len(x))
	}
	return nil
}
