package dive

import (
	"errors"
	"math"
	"testing"
)

// makeTrace builds a 1Hz trace from depth samples. hrs may be nil
// (no heart-rate channel) or must match len(depths); a zero entry
// means a vendor gap for that second.
func makeTrace(depths []float64, hrs []float64) DiveTrace {
	samples := make([]Sample, len(depths))
	for i, d := range depths {
		hr := math.NaN()
		if hrs != nil && hrs[i] > 0 {
			hr = hrs[i]
		}
		samples[i] = Sample{TimeOffset: float64(i), Depth: d, HeartRate: hr}
	}
	return DiveTrace{Samples: samples}
}

// vShapeDive descends to maxDepth at the given rate, holds for
// bottomSecs, and ascends at the same rate.
func vShapeDive(maxDepth, rate float64, bottomSecs int) []float64 {
	var depths []float64
	depths = append(depths, 0)
	for d := rate; d < maxDepth; d += rate {
		depths = append(depths, d)
	}
	for i := 0; i <= bottomSecs; i++ {
		depths = append(depths, maxDepth)
	}
	for d := maxDepth - rate; d > 0; d -= rate {
		depths = append(depths, d)
	}
	depths = append(depths, 0)
	return depths
}

func TestSegment_TooFewSamples(t *testing.T) {
	trace := makeTrace([]float64{0, 5}, nil)

	_, err := Segment(trace)
	if err == nil {
		t.Fatal("expected error for 2-sample trace")
	}
	var ite *InvalidTraceError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTraceError, got %T: %v", err, err)
	}
}

func TestSegment_NeverLeavesSurface(t *testing.T) {
	trace := makeTrace([]float64{0, 0.5, 0.8, 0.6, 0.2}, nil)

	_, err := Segment(trace)
	var ite *InvalidTraceError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTraceError for sub-1m trace, got %v", err)
	}
}

func TestSegment_PhaseCoverage(t *testing.T) {
	trace := makeTrace(vShapeDive(20, 1.0, 10), nil)

	phases, err := Segment(trace)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(phases) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(phases))
	}

	wantKinds := []PhaseKind{PhaseDescent, PhaseBottom, PhaseAscent}
	for i, p := range phases {
		if p.Kind != wantKinds[i] {
			t.Errorf("phase %d: kind = %s, want %s", i, p.Kind, wantKinds[i])
		}
		if p.EndIndex < p.StartIndex {
			t.Errorf("phase %s: end index %d before start %d", p.Kind, p.EndIndex, p.StartIndex)
		}
	}

	// Contiguous and non-overlapping.
	for i := 1; i < len(phases); i++ {
		if phases[i].StartIndex != phases[i-1].EndIndex+1 {
			t.Errorf("phase %s starts at %d, want %d", phases[i].Kind, phases[i].StartIndex, phases[i-1].EndIndex+1)
		}
	}

	// Union covers the whole trace except leading/trailing surface samples.
	first := phases[0].StartIndex
	last := phases[len(phases)-1].EndIndex
	for i, s := range trace.Samples {
		above := s.Depth > DefaultSurfaceThreshold
		inPhases := i >= first && i <= last
		if above && !inPhases {
			t.Errorf("sample %d (%.1fm) not covered by any phase", i, s.Depth)
		}
	}
}

func TestSegment_DegenerateBottom(t *testing.T) {
	// Touch-and-go dive: no stable bottom, the bottom phase collapses
	// to the samples around the depth maximum. Valid, not an error.
	depths := []float64{0, 2, 4, 6, 8, 10, 8, 6, 4, 2, 0}
	trace := makeTrace(depths, nil)

	phases, err := Segment(trace)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	bottom := phaseByKind(phases, PhaseBottom)
	if bottom == nil {
		t.Fatal("expected a bottom phase")
	}
	if bottom.SampleCount() != 1 {
		t.Errorf("bottom samples = %d, want 1 (single point at depth max)", bottom.SampleCount())
	}
	if bottom.StartDepth != 10 {
		t.Errorf("bottom depth = %.1f, want 10", bottom.StartDepth)
	}
}

func TestSegment_VelocitySignConvention(t *testing.T) {
	trace := makeTrace(vShapeDive(20, 1.0, 10), nil)

	phases, err := Segment(trace)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	descent := phaseByKind(phases, PhaseDescent)
	for _, v := range descent.Velocities[1 : len(descent.Velocities)-1] {
		if v <= 0 {
			t.Fatalf("descent velocity %f should be positive (descending)", v)
		}
	}
	ascent := phaseByKind(phases, PhaseAscent)
	mid := ascent.Velocities[len(ascent.Velocities)/2]
	if mid >= 0 {
		t.Fatalf("mid-ascent velocity %f should be negative (ascending)", mid)
	}
}

func TestSegment_BottomWithinTenPercentOfMax(t *testing.T) {
	trace := makeTrace(vShapeDive(30, 1.0, 8), nil)

	phases, err := Segment(trace)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	bottom := phaseByKind(phases, PhaseBottom)
	threshold := 30 * (1 - DefaultBottomDepthFraction)
	for i := bottom.StartIndex; i <= bottom.EndIndex; i++ {
		if trace.Samples[i].Depth < threshold {
			t.Errorf("bottom sample %d at %.1fm outside 10%% of max depth", i, trace.Samples[i].Depth)
		}
	}
}
