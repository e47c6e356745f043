// Package units provides shared constants and conversions for acoustic quantities
package units

import "math"

// Depth unit constants
const (
	Meters      = "m"
	Millimeters = "mm"
	Centimeters = "cm"
)

// ValidDepthUnits contains all valid depth unit values
var ValidDepthUnits = []string{Meters, Millimeters, Centimeters}

// IsValidDepthUnit checks if the given unit is in the list of valid units
func IsValidDepthUnit(unit string) bool {
	for _, validUnit := range ValidDepthUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidDepthUnitsString returns a comma-separated string of valid units for error messages
func GetValidDepthUnitsString() string {
	return "m, mm, cm"
}

// ConvertDepth converts a depth from meters to the target units
// All internal geometry is expressed in meters
func ConvertDepth(depthMeters float64, targetUnits string) float64 {
	switch targetUnits {
	case Millimeters:
		return depthMeters * 1000
	case Centimeters:
		return depthMeters * 100
	case Meters:
		return depthMeters // no conversion needed
	default:
		return depthMeters // default to meters if unknown unit
	}
}

// DepthToTime converts a one-way depth in meters to the round-trip echo
// time in seconds at the given speed of sound.
func DepthToTime(depthMeters, soundSpeed float64) float64 {
	if soundSpeed <= 0 {
		return 0
	}
	return 2 * depthMeters / soundSpeed
}

// TimeToDepth converts a round-trip echo time in seconds to the one-way
// depth in meters at the given speed of sound.
func TimeToDepth(seconds, soundSpeed float64) float64 {
	return seconds * soundSpeed / 2
}

// LinearToDB converts a linear amplitude ratio to decibels. Zero or
// negative input returns negative infinity.
func LinearToDB(linear float64) float64 {
	if linear <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(linear)
}

// DBToLinear converts decibels to a linear amplitude ratio.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}
