package synth

import (
	"math"

	"github.com/cwbudde/algo-approx"
)

// NoteToFreq converts a MIDI note number to frequency in Hz (A4 = 69 = 440 Hz).
func NoteToFreq(note int) float64 {
	const a4Freq = 440.0
	const a4Note = 69
	exponent := float32(note-a4Note) / 12.0
	return a4Freq * float64(pow2Approx(exponent))
}

// FreqToNote converts a frequency to a fractional MIDI note number.
func FreqToNote(freq float64) float64 {
	if freq <= 0 {
		return math.Inf(-1)
	}
	return 69 + 12*math.Log2(freq/440)
}

func pow2Approx(x float32) float32 {
	const ln2 = 0.69314718055994530942
	return approx.FastExp(x * ln2)
}

func semitonesToRatio(semitones float64) float64 {
	if semitones == 0 {
		return 1
	}
	return float64(pow2Approx(float32(semitones / 12.0)))
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func clampf(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// wrapPhase folds p back into [0,1) by subtraction. Increments stay below one
// cycle per sample, so the loop runs at most once on the hot path.
func wrapPhase(p float64) float64 {
	for p >= 1 {
		p -= 1
	}
	return p
}
