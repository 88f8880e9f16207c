package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProba struct {
	out []float64
	err error
}

func (f fakeProba) PredictProba([]float64) ([]float64, error) { return f.out, f.err }

type fakeLabel struct {
	label int
	err   error
}

func (f fakeLabel) Predict([]float64) (int, error) { return f.label, f.err }

func TestClassifierScore(t *testing.T) {
	row := []float64{1, 2, 3, 4, 5, 6}

	testCases := []struct {
		name       string
		classifier Classifier
		want       float64
	}{
		{"two classes uses class one", NewProbabilistic(fakeProba{out: []float64{0.1, 0.9}}), 0.9},
		{"three classes still uses index one", NewProbabilistic(fakeProba{out: []float64{0.2, 0.3, 0.5}}), 0.3},
		{"single probability is used as is", NewProbabilistic(fakeProba{out: []float64{0.7}}), 0.7},
		{"anomaly label", NewLabelOnly(fakeLabel{label: AnomalyLabel}), AnomalyScore},
		{"inlier label", NewLabelOnly(fakeLabel{label: 1}), NormalScore},
		{"any other label", NewLabelOnly(fakeLabel{label: 0}), NormalScore},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.classifier.Score(row)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClassifierScore_Failures(t *testing.T) {
	row := []float64{0}
	boom := errors.New("boom")

	_, err := NewProbabilistic(fakeProba{err: boom}).Score(row)
	assert.ErrorIs(t, err, boom)

	_, err = NewLabelOnly(fakeLabel{err: boom}).Score(row)
	assert.ErrorIs(t, err, boom)

	_, err = NewProbabilistic(fakeProba{out: []float64{}}).Score(row)
	assert.ErrorContains(t, err, "empty probability output")

	_, err = NewProbabilistic(fakeProba{out: []float64{0, 1.5}}).Score(row)
	assert.ErrorContains(t, err, "outside [0,1]")

	_, err = NewProbabilistic(fakeProba{out: []float64{0, math.NaN()}}).Score(row)
	assert.ErrorContains(t, err, "outside [0,1]")

	_, err = Classifier{}.Score(row)
	assert.ErrorContains(t, err, "no model")
}

func TestClassifierCapability(t *testing.T) {
	p := NewProbabilistic(fakeProba{})
	l := NewLabelOnly(fakeLabel{})

	assert.True(t, p.Probabilistic())
	assert.False(t, l.Probabilistic())
	assert.False(t, p.IsZero())
	assert.True(t, Classifier{}.IsZero())
	assert.IsType(t, fakeLabel{}, l.Unwrap())
}
