package dive

import "math"

// SessionHRReference computes the session-relative heart-rate
// reference for the dive at exclude: the mean avg-HR of the session's
// other dives. Returns NaN when no other dive carries HR, so callers
// can pass the result straight to the lung-volume classifier.
func SessionHRReference(dives []Features, exclude int) float64 {
	var hrs []float64
	for i, f := range dives {
		if i == exclude || !f.HasHR {
			continue
		}
		hrs = append(hrs, f.AvgHR)
	}
	if len(hrs) == 0 {
		return math.NaN()
	}
	return meanOf(hrs)
}
