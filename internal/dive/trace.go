package dive

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Sample is one observation in a dive trace at the fixed 1-second cadence.
// HeartRate is NaN when the vendor recorded no HR for that second.
type Sample struct {
	TimeOffset float64 // seconds since dive start
	Depth      float64 // metres, positive down
	HeartRate  float64 // beats per minute, NaN if missing
}

// HasHeartRate reports whether the sample carries a usable HR reading.
func (s Sample) HasHeartRate() bool {
	return !math.IsNaN(s.HeartRate) && s.HeartRate > 0
}

// DiveTrace is the immutable input for one descent: an ordered sequence
// of per-second samples. The trace is owned by the caller and is never
// mutated by this package.
type DiveTrace struct {
	DiveID  uuid.UUID
	Samples []Sample
}

// MinTraceSamples is the minimum number of samples required before a
// trace can be segmented.
const MinTraceSamples = 3

// MinValidMaxDepth is the depth (metres) the trace must reach for the
// descent to count as a real dive rather than surface noise.
const MinValidMaxDepth = 1.0

// DefaultSmoothingWindow is the moving-average window applied to the
// raw velocity profile to suppress depth-sensor jitter.
const DefaultSmoothingWindow = 3

// InvalidTraceError reports a malformed or degenerate trace. It is not
// retryable: the caller must discard the trace or request a re-sync.
type InvalidTraceError struct {
	Reason string
}

func (e *InvalidTraceError) Error() string {
	return fmt.Sprintf("invalid dive trace: %s", e.Reason)
}

// Validate checks the structural constraints shared by all operations:
// at least MinTraceSamples samples and a maximum depth beyond
// MinValidMaxDepth.
func (t DiveTrace) Validate() error {
	if len(t.Samples) < MinTraceSamples {
		return &InvalidTraceError{Reason: fmt.Sprintf("need at least %d samples, got %d", MinTraceSamples, len(t.Samples))}
	}
	if maxIdx := t.maxDepthIndex(); t.Samples[maxIdx].Depth <= MinValidMaxDepth {
		return &InvalidTraceError{Reason: fmt.Sprintf("max depth %.2fm never exceeds %.1fm", t.Samples[maxIdx].Depth, MinValidMaxDepth)}
	}
	return nil
}

// maxDepthIndex returns the index of the first global depth maximum.
func (t DiveTrace) maxDepthIndex() int {
	best := 0
	for i, s := range t.Samples {
		if s.Depth > t.Samples[best].Depth {
			best = i
		}
	}
	return best
}

// VelocityProfile computes the signed per-sample velocity in m/s,
// smoothed with a moving average of the given window. Positive values
// mean descending. The first element is always 0 since velocity is
// defined over the preceding interval.
func (t DiveTrace) VelocityProfile(window int) []float64 {
	vel := make([]float64, len(t.Samples))
	for i := 1; i < len(t.Samples); i++ {
		dt := t.Samples[i].TimeOffset - t.Samples[i-1].TimeOffset
		if dt > 0 {
			vel[i] = (t.Samples[i].Depth - t.Samples[i-1].Depth) / dt
		}
	}
	return movingAverage(vel, window)
}

// movingAverage smooths data with a centred window, padding the edges
// by clamping so the output has the same length as the input.
func movingAverage(data []float64, window int) []float64 {
	if window < 2 || len(data) == 0 {
		return data
	}
	half := window / 2
	out := make([]float64, len(data))
	for i := range data {
		lo := i - half
		hi := i + (window - 1 - half)
		if lo < 0 {
			lo = 0
		}
		if hi > len(data)-1 {
			hi = len(data) - 1
		}
		var sum float64
		for j := lo; j <= hi; j++ {
			sum += data[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}
