package synth

import (
	"errors"
	"math"
)

// ErrEmptyWavetable is returned for tables with fewer than two samples.
var ErrEmptyWavetable = errors.New("synth: wavetable needs at least 2 samples")

// MaxWavetableHarmonics is the largest harmonic count a WavetableBank holds.
const MaxWavetableHarmonics = 32

// Wavetable is an immutable single-cycle table. It is safe to share between
// any number of oscillators without synchronization.
type Wavetable struct {
	samples []float32
}

// NewWavetable copies samples into a new table.
func NewWavetable(samples []float32) (*Wavetable, error) {
	if len(samples) < 2 {
		return nil, ErrEmptyWavetable
	}
	return &Wavetable{samples: append([]float32(nil), samples...)}, nil
}

// NewHarmonicWavetable builds a saw-like table from the first harmonics
// partials (amplitude 1/k), normalized to a peak of 1. One harmonic is a sine.
func NewHarmonicWavetable(size, harmonics int) (*Wavetable, error) {
	if size < 2 {
		return nil, ErrEmptyWavetable
	}
	if harmonics < 1 {
		harmonics = 1
	}
	// Keep every partial below Nyquist of the table itself.
	if harmonics > size/2 {
		harmonics = size / 2
	}
	acc := make([]float64, size)
	for k := 1; k <= harmonics; k++ {
		amp := 1.0 / float64(k)
		for i := range acc {
			phase := float64(i) / float64(size)
			acc[i] += amp * math.Sin(2*math.Pi*phase*float64(k))
		}
	}
	peak := 0.0
	for _, v := range acc {
		peak = math.Max(peak, math.Abs(v))
	}
	samples := make([]float32, size)
	for i, v := range acc {
		if peak > 0 {
			v /= peak
		}
		samples[i] = float32(v)
	}
	return &Wavetable{samples: samples}, nil
}

// Size returns the number of samples in one cycle.
func (w *Wavetable) Size() int { return len(w.samples) }

// At returns the raw table entry i.
func (w *Wavetable) At(i int) float32 { return w.samples[i] }

// Lookup reads the table at phase in [0,1) with linear interpolation between
// the two nearest entries.
func (w *Wavetable) Lookup(phase float64) float32 {
	n := len(w.samples)
	pos := phase * float64(n)
	i := int(pos)
	frac := float32(pos - float64(i))
	if i >= n {
		i -= n
	}
	j := i + 1
	if j == n {
		j = 0
	}
	a := w.samples[i]
	return a + frac*(w.samples[j]-a)
}

// WavetableBank holds one shared table per harmonic count, from 1 to
// MaxWavetableHarmonics.
type WavetableBank struct {
	tables [MaxWavetableHarmonics]*Wavetable
}

// NewWavetableBank precomputes every table of the bank.
func NewWavetableBank(size int) (*WavetableBank, error) {
	b := &WavetableBank{}
	for h := 1; h <= MaxWavetableHarmonics; h++ {
		t, err := NewHarmonicWavetable(size, h)
		if err != nil {
			return nil, err
		}
		b.tables[h-1] = t
	}
	return b, nil
}

// Table returns the table with the given harmonic count, clamped to the bank.
func (b *WavetableBank) Table(harmonics int) *Wavetable {
	if harmonics < 1 {
		harmonics = 1
	}
	if harmonics > MaxWavetableHarmonics {
		harmonics = MaxWavetableHarmonics
	}
	return b.tables[harmonics-1]
}
