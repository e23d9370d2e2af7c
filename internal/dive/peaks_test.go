package dive

import (
	"math"
	"testing"
)

func TestDetectVelocityPeaks(t *testing.T) {
	cases := []struct {
		name       string
		velocities []float64
		want       []int
	}{
		{"empty", nil, nil},
		{"flat", []float64{0.5, 0.5, 0.5, 0.5}, nil},
		{"single peak", []float64{0.2, 0.9, 0.2}, []int{1}},
		{"below floor", []float64{0.02, 0.08, 0.02}, nil},
		{"plateau is not a peak", []float64{0.2, 0.9, 0.9, 0.2}, nil},
		{"ascent peaks by magnitude", []float64{-0.2, -0.9, -0.2}, []int{1}},
		{"endpoints excluded", []float64{0.9, 0.2, 0.9}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectVelocityPeaks(tc.velocities)
			if len(got) != len(tc.want) {
				t.Fatalf("peaks = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("peaks = %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestPeakIntervals(t *testing.T) {
	// Peaks at 1, 4, 8 seconds into the phase.
	velocities := []float64{0.2, 1.0, 0.2, 0.3, 1.1, 0.3, 0.2, 0.3, 0.9, 0.2}

	intervals := peakIntervals(velocities)
	want := []float64{3, 4}
	if len(intervals) != len(want) {
		t.Fatalf("intervals = %v, want %v", intervals, want)
	}
	for i := range want {
		if intervals[i] != want[i] {
			t.Fatalf("intervals = %v, want %v", intervals, want)
		}
	}
}

func TestPeakIntervals_FewerThanTwoPeaks(t *testing.T) {
	if got := peakIntervals([]float64{0.2, 1.0, 0.2}); got != nil {
		t.Errorf("intervals = %v for one peak, want nil", got)
	}
}

func TestMedianInterval(t *testing.T) {
	if got := medianInterval([]float64{3, 2, 5}); got != 3 {
		t.Errorf("odd median = %v, want 3", got)
	}
	if got := medianInterval([]float64{2, 4}); got != 3 {
		t.Errorf("even median = %v, want 3", got)
	}
	if got := medianInterval(nil); got != 0 {
		t.Errorf("empty median = %v, want 0", got)
	}
}

func TestIntervalRegularity(t *testing.T) {
	if got := intervalRegularity([]float64{3, 3, 3}, 0.5); got != 1 {
		t.Errorf("regularity = %v for identical intervals, want 1", got)
	}
	if got := intervalRegularity([]float64{3, 3, 8, 3}, 0.5); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("regularity = %v, want 0.75", got)
	}
}
