package analysis

import (
	"math"

	algofft "github.com/cwbudde/algo-fft"
)

const (
	silenceThreshold = 1e-6
	targetRMS        = 0.1
	minAligned       = 256
	maxAlignedSec    = 12
)

// aligned is a reference/candidate pair trimmed, level-matched and shifted
// onto a common time axis. refOnset and candOnset are the same signals before
// the shift, each starting at its own first non-silent sample.
type aligned struct {
	ref, cand           []float64
	refOnset, candOnset []float64
	lag                 int
}

// align prepares two renders for comparison. It reports false when there is
// not enough overlapping signal to compare.
func align(reference, candidate []float64, sampleRate int) (aligned, bool) {
	ref := scaleToRMS(skipSilence(reference), targetRMS)
	cand := scaleToRMS(skipSilence(candidate), targetRMS)
	if len(ref) == 0 || len(cand) == 0 {
		return aligned{}, false
	}

	a := aligned{refOnset: ref, candOnset: cand}

	maxLag := min(sampleRate/2, len(ref)-1, len(cand)-1)
	a.lag = estimateLag(ref, cand, max(maxLag, 1))
	if a.lag >= 0 {
		ref = ref[min(a.lag, len(ref)):]
	} else {
		cand = cand[min(-a.lag, len(cand)):]
	}

	n := min(len(ref), len(cand), sampleRate*maxAlignedSec)
	if n < minAligned {
		return a, false
	}
	a.ref, a.cand = ref[:n], cand[:n]
	return a, true
}

// skipSilence drops the leading samples below the silence threshold, so
// renders with different onset delays line up before correlation.
func skipSilence(x []float64) []float64 {
	for i, v := range x {
		if math.Abs(v) > silenceThreshold {
			return x[i:]
		}
	}
	return nil
}

// scaleToRMS returns a copy of x scaled to the given RMS level.
func scaleToRMS(x []float64, target float64) []float64 {
	out := make([]float64, len(x))
	g := 1.0
	if r := rms1(x); r > 1e-12 {
		g = target / r
	}
	for i, v := range x {
		out[i] = v * g
	}
	return out
}

// estimateLag returns the shift in [-maxLag, maxLag] with the strongest
// cross-correlation between ref and cand. A positive lag means the candidate
// starts later in ref. The correlation is one FFT convolution of ref with the
// time-reversed candidate.
func estimateLag(ref, cand []float64, maxLag int) int {
	if len(ref) == 0 || len(cand) == 0 {
		return 0
	}
	a := make([]float32, len(ref))
	for i, v := range ref {
		a[i] = float32(v)
	}
	b := make([]float32, len(cand))
	for i, v := range cand {
		b[len(cand)-1-i] = float32(v)
	}
	corr := make([]float32, len(a)+len(b)-1)
	if err := algofft.ConvolveReal(corr, a, b); err != nil {
		return correlateDirect(ref, cand, maxLag, 2)
	}

	// corr[lag+len(cand)-1] is the dot product of ref[lag:] and cand.
	origin := len(cand) - 1
	lo := max(-maxLag, -origin)
	hi := min(maxLag, len(corr)-1-origin)
	best := lo
	for lag := lo + 1; lag <= hi; lag++ {
		if corr[lag+origin] > corr[best+origin] {
			best = lag
		}
	}
	return best
}

// correlateDirect is the time-domain search, decimated by step.
func correlateDirect(ref, cand []float64, maxLag, step int) int {
	best, bestLag := math.Inf(-1), 0
	for lag := -maxLag; lag <= maxLag; lag++ {
		r, c := ref, cand
		if lag >= 0 {
			r = ref[min(lag, len(ref)):]
		} else {
			c = cand[min(-lag, len(cand)):]
		}
		var sum float64
		for i := 0; i < min(len(r), len(c)); i += step {
			sum += r[i] * c[i]
		}
		if sum > best {
			best, bestLag = sum, lag
		}
	}
	return bestLag
}
