package dive

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// velocityNoiseFloor is the |velocity| below which a sample is treated
// as sensor jitter and excluded from coefficient-of-variation figures.
const velocityNoiseFloor = 0.05

// velocityStats computes the mean and max of |v| over a velocity
// sequence, plus the coefficient of variation. The CV is computed over
// samples above the noise floor and is defined as 0 when the mean is 0.
func velocityStats(velocities []float64) (mean, max, cv float64) {
	if len(velocities) == 0 {
		return 0, 0, 0
	}
	abs := make([]float64, 0, len(velocities))
	moving := make([]float64, 0, len(velocities))
	for _, v := range velocities {
		a := math.Abs(v)
		abs = append(abs, a)
		if a > max {
			max = a
		}
		if a > velocityNoiseFloor {
			moving = append(moving, a)
		}
	}
	mean = stat.Mean(abs, nil)
	cv = coefficientOfVariation(moving)
	return mean, max, cv
}

// coefficientOfVariation returns stdev/mean of the values, 0 when the
// mean is 0 or fewer than two values are present.
func coefficientOfVariation(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean, variance := stat.MeanVariance(values, nil)
	if mean == 0 {
		return 0
	}
	return math.Sqrt(variance) / mean
}

// meanOf is stat.Mean guarded against empty input.
func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}
