package analysis

import (
	"errors"
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
)

// ErrShortSignal is returned when a signal is too short to analyze.
var ErrShortSignal = errors.New("analysis: signal too short")

// maxPeakFFT bounds the transform used by PeakFrequency.
const maxPeakFFT = 1 << 16

// Spectrum returns the Hann-windowed magnitude spectrum of the first n
// samples of x, n/2+1 bins. n must be a power of two no larger than len(x).
func Spectrum(x []float64, n int) ([]float64, error) {
	if n < 2 || n > len(x) {
		return nil, ErrShortSignal
	}
	plan, err := algofft.NewPlanReal64(n)
	if err != nil {
		return nil, err
	}
	buf := make([]float64, n)
	for i := 0; i < n; i++ {
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		buf[i] = x[i] * w
	}
	spec := make([]complex128, n/2+1)
	plan.Forward(spec, buf)
	mag := make([]float64, len(spec))
	for k, c := range spec {
		mag[k] = cmplx.Abs(c)
	}
	return mag, nil
}

// PeakFrequency estimates the frequency of the strongest spectral peak of x,
// refined by parabolic interpolation over the neighbouring bins.
func PeakFrequency(x []float64, sampleRate int) (float64, error) {
	if sampleRate <= 0 || len(x) < 64 {
		return 0, ErrShortSignal
	}
	n := floorPow2(len(x))
	if n > maxPeakFFT {
		n = maxPeakFFT
	}
	mag, err := Spectrum(x, n)
	if err != nil {
		return 0, err
	}
	best := 1
	for k := 2; k < len(mag)-1; k++ {
		if mag[k] > mag[best] {
			best = k
		}
	}
	offset := 0.0
	if best > 0 && best < len(mag)-1 {
		a := linToDB(mag[best-1])
		b := linToDB(mag[best])
		c := linToDB(mag[best+1])
		if den := a - 2*b + c; den != 0 {
			offset = 0.5 * (a - c) / den
		}
	}
	return (float64(best) + offset) * float64(sampleRate) / float64(n), nil
}

func floorPow2(n int) int {
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}
