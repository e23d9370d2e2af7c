package dive

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// steadyHR returns a flat HR series of the given length.
func steadyHR(n int, bpm float64) []float64 {
	hrs := make([]float64, n)
	for i := range hrs {
		hrs[i] = bpm
	}
	return hrs
}

func TestExtract_Idempotent(t *testing.T) {
	depths := vShapeDive(25, 1.0, 12)
	trace := makeTrace(depths, steadyHR(len(depths), 80))
	phases, err := Segment(trace)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}

	first := Extract(trace, phases)
	second := Extract(trace, phases)

	if diff := cmp.Diff(first, second, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("Extract is not deterministic (-first +second):\n%s", diff)
	}
}

func TestExtract_BasicFields(t *testing.T) {
	depths := vShapeDive(20, 1.0, 10)
	trace := makeTrace(depths, steadyHR(len(depths), 75))
	phases, err := Segment(trace)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}

	f := Extract(trace, phases)

	if f.MaxDepth != 20 {
		t.Errorf("MaxDepth = %.1f, want 20", f.MaxDepth)
	}
	if f.AvgDescentRate < 0.8 || f.AvgDescentRate > 1.1 {
		t.Errorf("AvgDescentRate = %.2f, want ~1.0", f.AvgDescentRate)
	}
	if f.AvgAscentRate < 0.8 || f.AvgAscentRate > 1.1 {
		t.Errorf("AvgAscentRate = %.2f, want ~1.0", f.AvgAscentRate)
	}
	if f.BottomDuration < 5 {
		t.Errorf("BottomDuration = %.0f, want >= 5", f.BottomDuration)
	}
	if !f.HasHR || f.AvgHR != 75 {
		t.Errorf("AvgHR = %.1f (HasHR=%v), want 75", f.AvgHR, f.HasHR)
	}
	if f.HRStdDev != 0 {
		t.Errorf("HRStdDev = %.2f for flat HR, want 0", f.HRStdDev)
	}
}

func TestExtract_HeartRateAtDepth(t *testing.T) {
	depths := vShapeDive(20, 1.0, 12)
	hrs := make([]float64, len(depths))
	for i := range hrs {
		hrs[i] = 90
	}
	// Drop HR in the middle of the bottom phase (dive reflex).
	trace := makeTrace(depths, hrs)
	phases, _ := Segment(trace)
	bottom := phaseByKind(phases, PhaseBottom)
	for i := bottom.StartIndex; i <= bottom.EndIndex; i++ {
		trace.Samples[i].HeartRate = 60
	}

	f := Extract(trace, phases)

	if f.DepthHR != 60 {
		t.Errorf("DepthHR = %.1f, want 60 (middle of bottom phase)", f.DepthHR)
	}
	if f.SurfaceHR != 90 {
		t.Errorf("SurfaceHR = %.1f, want 90 (first 5s)", f.SurfaceHR)
	}
	if f.MinHR != 60 {
		t.Errorf("MinHR = %.1f, want 60", f.MinHR)
	}
}

func TestExtract_MissingHeartRate(t *testing.T) {
	depths := vShapeDive(15, 1.0, 6)
	trace := makeTrace(depths, nil)
	phases, _ := Segment(trace)

	f := Extract(trace, phases)

	if f.HasHR {
		t.Error("HasHR should be false for a trace with no HR channel")
	}
	for name, v := range map[string]float64{
		"AvgHR": f.AvgHR, "MinHR": f.MinHR, "MaxHR": f.MaxHR,
		"SurfaceHR": f.SurfaceHR, "DepthHR": f.DepthHR,
	} {
		if !math.IsNaN(v) {
			t.Errorf("%s = %f, want NaN when HR is missing", name, v)
		}
	}
}

func TestExtract_BuoyancySignal(t *testing.T) {
	// Negative-buoyancy start: slow through 0-2m, accelerating 2-5m.
	depths := []float64{0, 0.4, 0.8, 1.2, 1.8, 2.6, 3.6, 4.8, 6.2, 7.6, 9.0, 10.4, 11.0, 11.0, 10.0, 8.0, 6.0, 4.0, 2.0, 0}
	trace := makeTrace(depths, nil)
	phases, err := Segment(trace)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}

	f := Extract(trace, phases)

	if !f.HasBuoyancy {
		t.Fatal("expected buoyancy signal for a trace crossing both zones")
	}
	if f.VelocityTwoToFiveMetres <= f.VelocityFirstTwoMetres {
		t.Errorf("expected acceleration: 0-2m %.2f, 2-5m %.2f", f.VelocityFirstTwoMetres, f.VelocityTwoToFiveMetres)
	}
	if !f.BuoyancyStruggle {
		t.Errorf("BuoyancyAcceleration = %.2f, expected struggle above %.2f", f.BuoyancyAcceleration, BuoyancyAccelThreshold)
	}
}

func TestExtract_VelocityCVGuard(t *testing.T) {
	// A dive whose samples barely move still extracts without dividing
	// by a zero mean velocity.
	depths := []float64{0, 1.2, 1.2, 1.2, 1.2, 1.2, 0}
	trace := makeTrace(depths, nil)
	phases, err := Segment(trace)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}

	f := Extract(trace, phases)

	if math.IsNaN(f.VelocityCV) || math.IsInf(f.VelocityCV, 0) {
		t.Errorf("VelocityCV = %f, want finite", f.VelocityCV)
	}
}
