package units

import "fmt"

// ConvertRate converts a vertical rate from metres per second to the
// target depth units per second
func ConvertRate(rateMPS float64, targetUnits string) float64 {
	return ConvertDepth(rateMPS, targetUnits)
}

// FormatRate renders a descent or ascent rate with its unit suffix.
func FormatRate(rateMPS float64, targetUnits string) string {
	if !IsValid(targetUnits) {
		targetUnits = Metres
	}
	return fmt.Sprintf("%.2f%s/s", ConvertRate(rateMPS, targetUnits), targetUnits)
}
