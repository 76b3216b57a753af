package spatial

import "math"

// NormalizeDegrees maps any angle onto [0, 360)
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg -= 360
	}
	return deg
}

// AngularDifferenceDegrees calculates the smallest signed difference from angle1 to angle2
// Result is in range [-180, 180]
func AngularDifferenceDegrees(angle1, angle2 float64) float64 {
	diff := angle2 - angle1
	for diff > 180 {
		diff -= 360
	}
	for diff < -180 {
		diff += 360
	}
	return diff
}

// InterpolateHeading interpolates between two headings along the shortest arc.
// 359 -> 1 at ratio 0.5 yields 0, not 180.
func InterpolateHeading(from, to, ratio float64) float64 {
	return NormalizeDegrees(from + AngularDifferenceDegrees(from, to)*ratio)
}
