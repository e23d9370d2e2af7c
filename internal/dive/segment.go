package dive

// PhaseKind identifies one of the three sequential segments of a
// breath-hold dive.
type PhaseKind string

const (
	PhaseDescent PhaseKind = "descent"
	PhaseBottom  PhaseKind = "bottom"
	PhaseAscent  PhaseKind = "ascent"
)

// Segmentation thresholds (tunable via TuningConfig).
const (
	// DefaultSurfaceThreshold is the depth (metres) below which a
	// sample is considered "at the surface" and trimmed from phases.
	DefaultSurfaceThreshold = 0.3

	// DefaultBottomDepthFraction defines the bottom phase: samples
	// within this fraction of max depth (0.10 = within 10%).
	DefaultBottomDepthFraction = 0.10
)

// Phase is one contiguous segment of a dive trace. Indices are
// inclusive and refer to the trace the phase was segmented from.
// Velocities are signed (positive = descending); the velocity at a
// trace index describes the preceding one-second interval.
type Phase struct {
	Kind       PhaseKind
	StartIndex int
	EndIndex   int
	StartDepth float64
	EndDepth   float64
	Duration   float64 // seconds

	Velocities   []float64
	MeanVelocity float64 // mean of |v|
	MaxVelocity  float64 // max of |v|
	VelocityCV   float64 // stdev/mean of |v|, 0 when mean is 0
}

// SampleCount returns the number of trace samples the phase spans.
func (p Phase) SampleCount() int {
	return p.EndIndex - p.StartIndex + 1
}

// Segmenter splits a dive trace into descent, bottom, and ascent
// phases around the global depth maximum.
type Segmenter struct {
	SurfaceThreshold    float64
	BottomDepthFraction float64
	SmoothingWindow     int
}

// NewSegmenter returns a Segmenter with the default thresholds.
func NewSegmenter() *Segmenter {
	return &Segmenter{
		SurfaceThreshold:    DefaultSurfaceThreshold,
		BottomDepthFraction: DefaultBottomDepthFraction,
		SmoothingWindow:     DefaultSmoothingWindow,
	}
}

// Segment splits the trace into its phases. The phases are contiguous,
// non-overlapping, and together cover the whole trace except leading
// and trailing surface samples. A dive with no stable bottom yields a
// single-sample bottom phase at the depth maximum; that is valid, not
// an error. Fails with InvalidTraceError on degenerate traces.
func Segment(trace DiveTrace) ([]Phase, error) {
	return NewSegmenter().Segment(trace)
}

// Segment implements the package-level Segment with this segmenter's
// thresholds.
func (sg *Segmenter) Segment(trace DiveTrace) ([]Phase, error) {
	if err := trace.Validate(); err != nil {
		return nil, err
	}

	depths := trace.Samples
	anchor := trace.maxDepthIndex()
	maxDepth := depths[anchor].Depth
	bottomThreshold := maxDepth * (1 - sg.BottomDepthFraction)

	// Trim leading and trailing surface samples.
	start := 0
	for start < len(depths) && depths[start].Depth <= sg.SurfaceThreshold {
		start++
	}
	end := len(depths) - 1
	for end > anchor && depths[end].Depth <= sg.SurfaceThreshold {
		end--
	}
	if start > anchor {
		start = anchor
	}

	// Bottom spans every sample within the bottom threshold. The
	// anchor always qualifies, so the bottom is never empty.
	bottomStart := anchor
	for bottomStart > start && depths[bottomStart-1].Depth >= bottomThreshold {
		bottomStart--
	}
	bottomEnd := anchor
	for bottomEnd < end && depths[bottomEnd+1].Depth >= bottomThreshold {
		bottomEnd++
	}

	vel := trace.VelocityProfile(sg.SmoothingWindow)

	// Descent and ascent can be empty on truncated traces; the bottom
	// phase always exists, so the phase list is never empty.
	var phases []Phase
	if bottomStart > start {
		phases = append(phases, sg.buildPhase(PhaseDescent, trace, vel, start, bottomStart-1))
	}
	phases = append(phases, sg.buildPhase(PhaseBottom, trace, vel, bottomStart, bottomEnd))
	if bottomEnd < end {
		phases = append(phases, sg.buildPhase(PhaseAscent, trace, vel, bottomEnd+1, end))
	}
	return phases, nil
}

// buildPhase assembles one phase with its velocity statistics. The
// velocity sequence covers the intervals ending inside [startIdx,
// endIdx]; a single-sample phase uses the interval ending at its only
// sample.
func (sg *Segmenter) buildPhase(kind PhaseKind, trace DiveTrace, vel []float64, startIdx, endIdx int) Phase {
	p := Phase{
		Kind:       kind,
		StartIndex: startIdx,
		EndIndex:   endIdx,
		StartDepth: trace.Samples[startIdx].Depth,
		EndDepth:   trace.Samples[endIdx].Depth,
		Duration:   trace.Samples[endIdx].TimeOffset - trace.Samples[startIdx].TimeOffset,
	}

	lo := startIdx + 1
	hi := endIdx
	if lo > hi {
		lo = startIdx
		hi = startIdx
	}
	p.Velocities = append([]float64(nil), vel[lo:hi+1]...)
	p.MeanVelocity, p.MaxVelocity, p.VelocityCV = velocityStats(p.Velocities)
	return p
}
