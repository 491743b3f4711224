package utils

import "math"

// RoundTo rounds x half away from zero to digits fractional digits.
// Negative zero is normalized to zero so rounded values print cleanly.
func RoundTo(x float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	r := math.Round(x*p) / p
	if r == 0 {
		return 0
	}
	return r
}

// AlmostEqual reports whether a and b differ by at most tol.
func AlmostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
