package dive

import (
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
)

// Buoyancy zone boundaries (metres). The velocity contrast between the
// first two metres and metres two to five reveals the diver's buoyancy
// at the start of the descent.
const (
	BuoyancyShallowZoneMax = 2.0
	BuoyancyDeepZoneMax    = 5.0

	// BuoyancyAccelThreshold is the velocity gain (m/s) between the
	// two zones that counts as visible acceleration.
	BuoyancyAccelThreshold = 0.1
)

// surfaceHRWindowSecs is the window at the start of the trace used for
// the surface heart-rate reading.
const surfaceHRWindowSecs = 5.0

// Features is the derived, immutable per-dive feature set consumed by
// the classifiers and the baseline updater. Heart-rate fields are NaN
// when the vendor trace carried no usable HR samples; rules that
// depend on them are skipped rather than scored against.
type Features struct {
	DiveID uuid.UUID

	MaxDepth float64
	AvgDepth float64

	DescentDuration float64
	BottomDuration  float64
	AscentDuration  float64
	TotalDuration   float64

	AvgDescentRate float64
	MaxDescentRate float64
	AvgAscentRate  float64
	MaxAscentRate  float64

	// VelocityCV is the coefficient of variation of |velocity| over
	// the whole dive.
	VelocityCV float64

	// DescentVelocityCV is the CV over the descent phase only, the
	// primary smoothness signal for discipline classification.
	DescentVelocityCV float64

	// DescentPeakIntervals holds the seconds between successive
	// velocity peaks in the descent phase (FIM pull rhythm).
	DescentPeakIntervals []float64

	HasHR     bool
	AvgHR     float64
	MaxHR     float64
	MinHR     float64
	HRStdDev  float64
	SurfaceHR float64 // mean HR over the first 5 seconds, NaN if absent
	DepthHR   float64 // mean HR over the middle 50% of the bottom phase, NaN if absent

	HasBuoyancy             bool
	VelocityFirstTwoMetres  float64 // mean descending |v| at depth 0-2m
	VelocityTwoToFiveMetres float64 // mean descending |v| at depth 2-5m
	BuoyancyAcceleration    float64 // deep zone minus shallow zone
	BuoyancyStruggle        bool    // visible acceleration between zones
}

// Extract computes all dive features. It is a pure function: the same
// (trace, phases) pair always yields identical features.
func Extract(trace DiveTrace, phases []Phase) Features {
	f := Features{
		DiveID:    trace.DiveID,
		AvgHR:     math.NaN(),
		MaxHR:     math.NaN(),
		MinHR:     math.NaN(),
		HRStdDev:  math.NaN(),
		SurfaceHR: math.NaN(),
		DepthHR:   math.NaN(),
	}
	if len(trace.Samples) == 0 || len(phases) == 0 {
		return f
	}

	depths := make([]float64, len(trace.Samples))
	for i, s := range trace.Samples {
		depths[i] = s.Depth
		if s.Depth > f.MaxDepth {
			f.MaxDepth = s.Depth
		}
	}
	f.AvgDepth = stat.Mean(depths, nil)
	f.TotalDuration = trace.Samples[len(trace.Samples)-1].TimeOffset - trace.Samples[0].TimeOffset

	vel := trace.VelocityProfile(DefaultSmoothingWindow)
	_, _, f.VelocityCV = velocityStats(vel[1:])

	descent := phaseByKind(phases, PhaseDescent)
	bottom := phaseByKind(phases, PhaseBottom)
	ascent := phaseByKind(phases, PhaseAscent)

	if descent != nil {
		f.DescentDuration = descent.Duration
		f.DescentVelocityCV = descent.VelocityCV
		f.AvgDescentRate, f.MaxDescentRate = directionalRates(descent.Velocities, true)
		f.DescentPeakIntervals = peakIntervals(descent.Velocities)
	}
	if bottom != nil {
		f.BottomDuration = bottom.Duration
	}
	if ascent != nil {
		f.AscentDuration = ascent.Duration
		f.AvgAscentRate, f.MaxAscentRate = directionalRates(ascent.Velocities, false)
	}

	extractHeartRate(&f, trace, bottom)
	extractBuoyancy(&f, trace, vel, descent)
	return f
}

// phaseByKind returns the first phase of the given kind, or nil.
func phaseByKind(phases []Phase, kind PhaseKind) *Phase {
	for i := range phases {
		if phases[i].Kind == kind {
			return &phases[i]
		}
	}
	return nil
}

// directionalRates computes the mean and max speed over velocities in
// one direction only (descending when down is true), ignoring samples
// below the noise floor.
func directionalRates(velocities []float64, down bool) (avg, max float64) {
	var moving []float64
	for _, v := range velocities {
		if down && v > velocityNoiseFloor {
			moving = append(moving, v)
		} else if !down && v < -velocityNoiseFloor {
			moving = append(moving, -v)
		}
	}
	if len(moving) == 0 {
		return 0, 0
	}
	for _, v := range moving {
		if v > max {
			max = v
		}
	}
	return stat.Mean(moving, nil), max
}

// extractHeartRate fills the HR feature fields. Missing HR samples
// (vendor gaps) leave the fields NaN so classifier rules depending on
// them default to "no evidence" instead of a negative signal.
func extractHeartRate(f *Features, trace DiveTrace, bottom *Phase) {
	var all, surface []float64
	for _, s := range trace.Samples {
		if !s.HasHeartRate() {
			continue
		}
		all = append(all, s.HeartRate)
		if s.TimeOffset < surfaceHRWindowSecs {
			surface = append(surface, s.HeartRate)
		}
	}
	if len(all) == 0 {
		return
	}

	f.HasHR = true
	mean, variance := stat.MeanVariance(all, nil)
	f.AvgHR = mean
	f.HRStdDev = 0
	if len(all) > 1 {
		f.HRStdDev = math.Sqrt(variance)
	}
	f.MinHR = all[0]
	f.MaxHR = all[0]
	for _, hr := range all {
		if hr < f.MinHR {
			f.MinHR = hr
		}
		if hr > f.MaxHR {
			f.MaxHR = hr
		}
	}
	f.SurfaceHR = meanOf(surface)

	if bottom != nil {
		f.DepthHR = meanOf(bottomMiddleHR(trace, bottom))
	}
}

// bottomMiddleHR gathers valid HR samples from the middle 50% of the
// bottom phase's sample indices (rounding down, minimum one sample).
func bottomMiddleHR(trace DiveTrace, bottom *Phase) []float64 {
	n := bottom.SampleCount()
	quarter := n / 4
	lo := bottom.StartIndex + quarter
	hi := bottom.EndIndex - quarter
	if hi < lo {
		lo = bottom.StartIndex + n/2
		hi = lo
	}
	var hrs []float64
	for i := lo; i <= hi && i < len(trace.Samples); i++ {
		if trace.Samples[i].HasHeartRate() {
			hrs = append(hrs, trace.Samples[i].HeartRate)
		}
	}
	return hrs
}

// extractBuoyancy computes the buoyancy signal from descending
// velocities in the 0-2m and 2-5m depth zones of the descent phase.
func extractBuoyancy(f *Features, trace DiveTrace, vel []float64, descent *Phase) {
	f.VelocityFirstTwoMetres = math.NaN()
	f.VelocityTwoToFiveMetres = math.NaN()
	f.BuoyancyAcceleration = math.NaN()
	if descent == nil {
		return
	}

	var shallow, deep []float64
	for i := descent.StartIndex; i <= descent.EndIndex && i < len(vel); i++ {
		d := trace.Samples[i].Depth
		v := vel[i]
		if v <= velocityNoiseFloor {
			continue // descending only
		}
		switch {
		case d <= BuoyancyShallowZoneMax:
			shallow = append(shallow, v)
		case d <= BuoyancyDeepZoneMax:
			deep = append(deep, v)
		}
	}
	if len(shallow) == 0 || len(deep) == 0 {
		return
	}

	f.HasBuoyancy = true
	f.VelocityFirstTwoMetres = stat.Mean(shallow, nil)
	f.VelocityTwoToFiveMetres = stat.Mean(deep, nil)
	f.BuoyancyAcceleration = f.VelocityTwoToFiveMetres - f.VelocityFirstTwoMetres
	f.BuoyancyStruggle = f.BuoyancyAcceleration > BuoyancyAccelThreshold
}
