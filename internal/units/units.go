// Package units provides shared constants and validation for depth units
package units

import "fmt"

// Unit constants
const (
	Metres = "m"
	Feet   = "ft"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Metres, Feet}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "m, ft"
}

// ConvertDepth converts a depth from metres to the target units
// Database stores depths in metres
func ConvertDepth(depthM float64, targetUnits string) float64 {
	switch targetUnits {
	case Feet:
		return depthM * 3.28084
	case Metres:
		return depthM
	default:
		return depthM
	}
}

// FormatDepth renders a depth with its unit suffix.
func FormatDepth(depthM float64, targetUnits string) string {
	if !IsValid(targetUnits) {
		targetUnits = Metres
	}
	return fmt.Sprintf("%.1f%s", ConvertDepth(depthM, targetUnits), targetUnits)
}

// FormatDuration renders seconds as m:ss for dive durations.
func FormatDuration(secs float64) string {
	total := int(secs + 0.5)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
