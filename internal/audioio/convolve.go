package audioio

import (
	"errors"
	"fmt"

	algofft "github.com/cwbudde/algo-fft"
)

// ErrEmptyIR is returned when an impulse response has no samples.
var ErrEmptyIR = errors.New("audioio: empty impulse response")

// Convolve returns the full linear convolution of x and ir,
// len(x)+len(ir)-1 samples.
func Convolve(x, ir []float32) ([]float32, error) {
	if len(ir) == 0 {
		return nil, ErrEmptyIR
	}
	if len(x) == 0 {
		return nil, nil
	}
	out := make([]float32, len(x)+len(ir)-1)
	if err := algofft.ConvolveReal(out, x, ir); err != nil {
		return nil, fmt.Errorf("audioio: convolve: %w", err)
	}
	return out, nil
}

// IR is a stereo impulse response at a fixed sample rate.
type IR struct {
	Left       []float32
	Right      []float32
	SampleRate int
}

// LoadIR reads an impulse response WAV and resamples it to sampleRate.
func LoadIR(path string, sampleRate int) (*IR, error) {
	left, right, rate, err := ReadStereo(path)
	if err != nil {
		return nil, err
	}
	if left, err = Resample32(left, rate, sampleRate); err != nil {
		return nil, err
	}
	if right, err = Resample32(right, rate, sampleRate); err != nil {
		return nil, err
	}
	return &IR{Left: left, Right: right, SampleRate: sampleRate}, nil
}

// Apply convolves the mono signal with both IR channels and mixes the result
// with the dry signal. mix is the wet share in [0, 1]. The output keeps the
// reverb tail, so both channels are len(mono)+len(ir)-1 samples long.
func (ir *IR) Apply(mono []float32, mix float32) ([]float32, []float32, error) {
	if ir == nil || len(ir.Left) == 0 || len(ir.Right) == 0 {
		return nil, nil, ErrEmptyIR
	}
	if mix < 0 {
		mix = 0
	} else if mix > 1 {
		mix = 1
	}
	wetL, err := Convolve(mono, ir.Left)
	if err != nil {
		return nil, nil, err
	}
	wetR, err := Convolve(mono, ir.Right)
	if err != nil {
		return nil, nil, err
	}
	n := len(wetL)
	if len(wetR) > n {
		n = len(wetR)
	}
	left := make([]float32, n)
	right := make([]float32, n)
	dry := 1 - mix
	for i := 0; i < n; i++ {
		var d float32
		if i < len(mono) {
			d = mono[i] * dry
		}
		left[i] = d
		right[i] = d
		if i < len(wetL) {
			left[i] += wetL[i] * mix
		}
		if i < len(wetR) {
			right[i] += wetR[i] * mix
		}
	}
	return left, right, nil
}
