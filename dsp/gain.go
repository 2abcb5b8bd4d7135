package dsp

import "math"

// DBToLinear converts decibels to a linear amplitude factor.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts a linear amplitude to decibels, floored at -120 dB.
func LinearToDB(linear float64) float64 {
	return 20 * math.Log10(math.Max(math.Abs(linear), 1e-6))
}

// FlushDenormals converts denormal numbers to zero to avoid performance issues
func FlushDenormals(x float32) float32 {
	const epsilon = 1e-30
	if x > -epsilon && x < epsilon {
		return 0.0
	}
	return x
}
