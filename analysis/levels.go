package analysis

import "math"

// RMS returns the root-mean-square level of x.
func RMS(x []float32) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		f := float64(v)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(x)))
}

// Peak returns the largest absolute sample of x.
func Peak(x []float32) float64 {
	var peak float64
	for _, v := range x {
		if a := math.Abs(float64(v)); a > peak {
			peak = a
		}
	}
	return peak
}

// DBFS converts a linear level to dB full scale, floored at -240 dB.
func DBFS(level float64) float64 { return linToDB(level) }

// ToFloat64 widens a float32 buffer.
func ToFloat64(x []float32) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = float64(v)
	}
	return out
}

// AttackTime returns the time in seconds until the RMS envelope of x first
// reaches frac of its maximum, or NaN when x is silent.
func AttackTime(x []float64, sampleRate int, frac float64) float64 {
	const frame, hop = 256, 64
	env := rmsEnvelope(x, frame, hop)
	if len(env) == 0 || sampleRate <= 0 {
		return math.NaN()
	}
	peak := 0.0
	for _, v := range env {
		peak = math.Max(peak, v)
	}
	if peak <= 1e-12 {
		return math.NaN()
	}
	for i, v := range env {
		if v >= frac*peak {
			return float64(i*hop+frame) / float64(sampleRate)
		}
	}
	return math.NaN()
}
