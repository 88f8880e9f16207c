package model

import (
	"fmt"
	"math"
)

// Dataset is a labelled training set. Labels are class indices starting at 0.
type Dataset struct {
	X [][]float64
	Y []int
}

// Features returns the row width, or 0 for an empty dataset.
func (d Dataset) Features() int {
	if len(d.X) == 0 {
		return 0
	}
	return len(d.X[0])
}

// Classes returns the number of classes implied by the largest label.
func (d Dataset) Classes() int {
	k := 0
	for _, y := range d.Y {
		if y+1 > k {
			k = y + 1
		}
	}
	return k
}

// Validate checks the shape and label range of the dataset.
func (d Dataset) Validate() error {
	if len(d.X) == 0 {
		return fmt.Errorf("model: empty training set")
	}
	if len(d.Y) != len(d.X) {
		return fmt.Errorf("model: %d rows but %d labels", len(d.X), len(d.Y))
	}
	width := d.Features()
	if width == 0 {
		return fmt.Errorf("model: training rows have no features")
	}
	for i, row := range d.X {
		if len(row) != width {
			return fmt.Errorf("model: row %d has %d features, expected %d", i, len(row), width)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("model: row %d contains a non-finite value", i)
			}
		}
		if d.Y[i] < 0 {
			return fmt.Errorf("model: row %d has negative label %d", i, d.Y[i])
		}
	}
	return nil
}
