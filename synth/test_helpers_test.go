package synth

import (
	"math"
	"testing"
)

func measureFundamentalFreq(samples []float32, sampleRate float64) float64 {
	startIdx := len(samples) / 10
	crossings := 0
	for i := startIdx + 1; i < len(samples); i++ {
		if (samples[i-1] < 0 && samples[i] >= 0) || (samples[i-1] >= 0 && samples[i] < 0) {
			crossings++
		}
	}
	if crossings == 0 {
		return 0
	}
	duration := float64(len(samples)-startIdx) / sampleRate
	return float64(crossings) / (2.0 * duration)
}

func windowRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func peakAbs(samples []float32) float64 {
	peak := 0.0
	for _, s := range samples {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	return peak
}

func newTestEngine(t testing.TB, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	return e
}
