package analysis

import (
	"math"
	"math/rand"
	"testing"
)

func TestCompareIdenticalSignalsHasLowDistance(t *testing.T) {
	sr := 48000
	x := makeDecaySine(sr, 440.0, 1.5, 0.7)
	m := Compare(x, x, sr)
	if m.Score > 0.05 {
		t.Fatalf("expected very low score for identical signals, got %f", m.Score)
	}
	if m.Similarity < 0.85 {
		t.Fatalf("expected high similarity for identical signals, got %f", m.Similarity)
	}
}

func TestCompareDifferentSignalsHasHigherDistance(t *testing.T) {
	sr := 48000
	a := makeDecaySine(sr, 261.63, 1.8, 0.8)
	b := makeDecaySine(sr, 330.0, 0.8, 0.25)
	m := Compare(a, b, sr)
	if m.Score < 0.25 {
		t.Fatalf("expected higher score for different signals, got %f", m.Score)
	}
}

func TestEstimateLagFindsPositiveShift(t *testing.T) {
	const (
		n      = 8192
		shift  = 237
		maxLag = 600
	)
	ref := randomSignal(n, 7)
	cand := make([]float64, n)
	copy(cand, ref[shift:])

	got := estimateLag(ref, cand, maxLag)
	if got != shift {
		t.Fatalf("estimateLag() = %d, want %d", got, shift)
	}
}

func TestEstimateLagFindsNegativeShift(t *testing.T) {
	const (
		n      = 8192
		shift  = -191
		maxLag = 600
	)
	ref := randomSignal(n, 11)
	cand := make([]float64, n)
	copy(cand[-shift:], ref)

	got := estimateLag(ref, cand, maxLag)
	if got != shift {
		t.Fatalf("estimateLag() = %d, want %d", got, shift)
	}
}

func TestEstimateLagFFTMatchesExhaustive(t *testing.T) {
	const (
		n      = 16000
		shift  = 443
		maxLag = 1000
	)
	ref := randomSignal(n, 23)
	cand := make([]float64, n)
	copy(cand, ref[shift:])

	got := estimateLag(ref, cand, maxLag)
	want := estimateLagExhaustive(ref, cand, maxLag)
	if got != want {
		t.Fatalf("estimateLag() = %d, exhaustive = %d", got, want)
	}
}

func TestCompareReportsDominantFactor(t *testing.T) {
	sr := 48000
	a := makeDecaySine(sr, 440.0, 1.5, 0.7)
	b := makeDecaySine(sr, 440.0, 1.5, 0.05)
	m := Compare(a, b, sr)
	if m.Dominant == "" {
		t.Fatalf("dominant factor not set")
	}
	var sum, weights float64
	for _, c := range m.Components() {
		sum += c.Contribution()
		weights += c.Weight
	}
	if math.Abs(weights-1) > 1e-12 {
		t.Fatalf("weights sum to %f, want 1", weights)
	}
	if math.Abs(clamp01(sum)-m.Score) > 1e-12 {
		t.Fatalf("score %f does not match weighted norms %f", m.Score, sum)
	}
	if math.Abs(m.RefPeakHz-440) > 2 || math.Abs(m.CandPeakHz-440) > 2 {
		t.Fatalf("peak estimates off: ref=%.2f cand=%.2f", m.RefPeakHz, m.CandPeakHz)
	}
}

func TestCompareDegenerateInputs(t *testing.T) {
	x := makeDecaySine(48000, 440, 0.5, 0.2)
	for _, m := range []Metrics{
		Compare(nil, x, 48000),
		Compare(x, nil, 48000),
		Compare(x, x, 0),
		Compare(make([]float64, 1000), x, 48000),
	} {
		if m.Score != 1 || m.Similarity != 0 {
			t.Fatalf("degenerate compare: score=%f similarity=%f", m.Score, m.Similarity)
		}
	}
}

func TestCompareBrightnessTracksHarmonicContent(t *testing.T) {
	sr := 48000
	pure := makeDecaySine(sr, 220, 1.0, 0.6)
	bright := makeHarmonicTone(sr, 220, 12, 1.0, 0.6)
	m := Compare(pure, bright, sr)
	if m.CandCentroidHz <= m.RefCentroidHz {
		t.Fatalf("centroid: ref=%.1f cand=%.1f, want brighter candidate", m.RefCentroidHz, m.CandCentroidHz)
	}
	if m.BrightnessNorm <= 0 {
		t.Fatalf("brightness norm = %f, want > 0", m.BrightnessNorm)
	}
	if math.Abs(m.PitchCents) > 10 {
		t.Fatalf("pitch = %.1f cents, want same fundamental", m.PitchCents)
	}
}

func TestCompareAttackDifference(t *testing.T) {
	sr := 48000
	fast := makeDecaySine(sr, 440, 1.0, 0.8)
	slow := make([]float64, len(fast))
	ramp := int(0.2 * float64(sr))
	for i := range slow {
		g := 1.0
		if i < ramp {
			g = float64(i) / float64(ramp)
		}
		slow[i] = g * math.Sin(2*math.Pi*440*float64(i)/float64(sr)) * 0.8
	}
	m := Compare(fast, slow, sr)
	if m.CandAttackSec <= m.RefAttackSec {
		t.Fatalf("attack: ref=%.3f cand=%.3f, want slower candidate", m.RefAttackSec, m.CandAttackSec)
	}
	if m.AttackDiffSec < 0.1 {
		t.Fatalf("attack diff = %.3f s, want >= 0.1", m.AttackDiffSec)
	}
}

func TestComponentsOrderIsStable(t *testing.T) {
	want := []string{"time", "envelope", "spectral", "brightness", "attack", "decay"}
	got := Metrics{}.Components()
	if len(got) != len(want) {
		t.Fatalf("got %d components, want %d", len(got), len(want))
	}
	for i, c := range got {
		if c.Name != want[i] {
			t.Fatalf("component %d = %s, want %s", i, c.Name, want[i])
		}
	}
}

func estimateLagExhaustive(ref []float64, cand []float64, maxLag int) int {
	return correlateDirect(ref, cand, maxLag, 1)
}

func makeDecaySine(sr int, freq float64, durationSec float64, decaySec float64) []float64 {
	n := int(float64(sr) * durationSec)
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sr)
		env := math.Exp(-t / decaySec)
		out[i] = env * math.Sin(2*math.Pi*freq*t)
	}
	return out
}

func makeHarmonicTone(sr int, freq float64, harmonics int, durationSec, decaySec float64) []float64 {
	n := int(float64(sr) * durationSec)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sr)
		var s float64
		for k := 1; k <= harmonics; k++ {
			s += math.Sin(2*math.Pi*freq*float64(k)*t) / float64(k)
		}
		out[i] = math.Exp(-t/decaySec) * s
	}
	return out
}

func randomSignal(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()*2 - 1
	}
	return out
}
