// Package formulas holds the small numeric helpers shared by the analysis code.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// LinearTrend fits y = intercept + slope*x by ordinary least squares, with x
// being the sample index 0..n-1. Fewer than two points yield a zero slope.
func LinearTrend(ys []float64) (slope, intercept float64) {
	switch len(ys) {
	case 0:
		return 0, 0
	case 1:
		return 0, ys[0]
	}

	xs := make([]float64, len(ys))
	for i := range xs {
		xs[i] = float64(i)
	}

	intercept, slope = stat.LinearRegression(xs, ys, nil, false)
	return slope, intercept
}

func isNaN(v float64) bool {
	return math.IsNaN(v)
}
