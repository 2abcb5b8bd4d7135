package audioio

import (
	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
)

// Resample converts in from fromRate to toRate. Equal rates return in as is.
func Resample(in []float64, fromRate, toRate int) ([]float64, error) {
	if fromRate == toRate {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}
	return r.Process(in), nil
}

// Resample32 is Resample for float32 buffers.
func Resample32(in []float32, fromRate, toRate int) ([]float32, error) {
	if fromRate == toRate {
		return in, nil
	}
	in64 := make([]float64, len(in))
	for i, v := range in {
		in64[i] = float64(v)
	}
	out64, err := Resample(in64, fromRate, toRate)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(out64))
	for i, v := range out64 {
		out[i] = float32(v)
	}
	return out, nil
}
