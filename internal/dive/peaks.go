package dive

import (
	"math"
	"sort"
)

// PeakVelocityFloor is the minimum |velocity| for a sample to count as
// a pull peak. Keeps surface drift out of the FIM rhythm signal.
const PeakVelocityFloor = 0.1

// DetectVelocityPeaks returns the indices of local maxima in |velocity|
// above the floor. A peak must be strictly greater than both of its
// neighbours, matching how individual FIM pulls show up at 1Hz.
func DetectVelocityPeaks(velocities []float64) []int {
	var peaks []int
	for i := 1; i < len(velocities)-1; i++ {
		v := math.Abs(velocities[i])
		if v > PeakVelocityFloor &&
			v > math.Abs(velocities[i-1]) &&
			v > math.Abs(velocities[i+1]) {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

// peakIntervals converts peak indices into inter-peak intervals in
// seconds. The trace cadence is fixed at one sample per second, so the
// interval is the index difference.
func peakIntervals(velocities []float64) []float64 {
	peaks := DetectVelocityPeaks(velocities)
	if len(peaks) < 2 {
		return nil
	}
	intervals := make([]float64, 0, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		intervals = append(intervals, float64(peaks[i]-peaks[i-1]))
	}
	return intervals
}

// medianInterval returns the median of the intervals.
func medianInterval(intervals []float64) float64 {
	if len(intervals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), intervals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// intervalRegularity returns the fraction of intervals within the
// tolerance of their median. 1.0 means perfectly regular pulls.
func intervalRegularity(intervals []float64, tolerance float64) float64 {
	if len(intervals) == 0 {
		return 0
	}
	median := medianInterval(intervals)
	within := 0
	for _, iv := range intervals {
		if math.Abs(iv-median) <= tolerance {
			within++
		}
	}
	return float64(within) / float64(len(intervals))
}
