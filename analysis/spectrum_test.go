package analysis

import (
	"errors"
	"math"
	"slices"
	"testing"
)

func TestPeakFrequencyFindsSine(t *testing.T) {
	for _, f := range []float64{110, 440, 1234.5, 9000} {
		x := makeDecaySine(48000, f, 0.5, 100)
		got, err := PeakFrequency(x, 48000)
		if err != nil {
			t.Fatalf("PeakFrequency(%v Hz) = %v", f, err)
		}
		if math.Abs(got-f) > 1.0 {
			t.Fatalf("PeakFrequency = %.3f, want %.3f", got, f)
		}
	}
	if _, err := PeakFrequency(make([]float64, 10), 48000); !errors.Is(err, ErrShortSignal) {
		t.Fatalf("short signal: err = %v, want %v", err, ErrShortSignal)
	}
}

func TestSpectrumMatchesNaiveDFT(t *testing.T) {
	a, _ := benchmarkSignals(1024)
	mag, err := Spectrum(a, 1024)
	if err != nil {
		t.Fatalf("Spectrum() = %v", err)
	}
	if len(mag) != 513 {
		t.Fatalf("len(mag) = %d, want 513", len(mag))
	}

	aw, _, _ := spectralWindowedInputs(a, a)
	for _, k := range []int{1, 7, 57, 200, 511} {
		want := dftBinMag(aw, k)
		if math.Abs(mag[k]-want) > 1e-6*math.Max(1, mag[k]) {
			t.Fatalf("bin %d = %g, want %g", k, mag[k], want)
		}
	}
}

func TestSpectralDistanceOfIdenticalSignalsIsZero(t *testing.T) {
	a, c := benchmarkSignals(4096)
	ma, _, n := spectraOf(a, a)
	if n != 4096 {
		t.Fatalf("fft size = %d, want 4096", n)
	}
	if d := logSpectralDistance(ma, ma); math.Abs(d) > 1e-9 {
		t.Fatalf("self distance = %g, want 0", d)
	}
	ma, mc, _ := spectraOf(a, c)
	if d := logSpectralDistance(ma, mc); d <= 1.0 {
		t.Fatalf("distance between different signals = %g, want > 1", d)
	}
}

func TestLevels(t *testing.T) {
	x := []float32{0.5, -0.5, 0.5, -0.5}
	if r := RMS(x); math.Abs(r-0.5) > 1e-12 {
		t.Fatalf("RMS = %v, want 0.5", r)
	}
	if p := Peak(x); math.Abs(p-0.5) > 1e-12 {
		t.Fatalf("Peak = %v, want 0.5", p)
	}
	if db := DBFS(0.5); math.Abs(db+6.0206) > 1e-4 {
		t.Fatalf("DBFS(0.5) = %v, want -6.0206", db)
	}
	if r := RMS(nil); r != 0 {
		t.Fatalf("RMS(nil) = %v, want 0", r)
	}
	if got := ToFloat64(x); !slices.Equal(got, []float64{0.5, -0.5, 0.5, -0.5}) {
		t.Fatalf("ToFloat64 = %v", got)
	}
}

func TestAttackTime(t *testing.T) {
	sr := 48000
	x := make([]float64, sr/2)
	for i := range x {
		ramp := math.Min(1, float64(i)/(0.1*float64(sr)))
		x[i] = ramp * math.Sin(2*math.Pi*440*float64(i)/float64(sr))
	}
	if got := AttackTime(x, sr, 0.9); math.Abs(got-0.09) > 0.01 {
		t.Fatalf("AttackTime = %.4f, want about 0.09", got)
	}
	if got := AttackTime(make([]float64, 1000), sr, 0.9); !math.IsNaN(got) {
		t.Fatalf("AttackTime of silence = %v, want NaN", got)
	}
}
