package synth

import (
	"errors"
	"math"
)

// ErrNegativeFrequency is returned when an oscillator is created below 0 Hz.
var ErrNegativeFrequency = errors.New("synth: frequency must be >= 0")

const twoPi = 2 * math.Pi

// FMParams configures the two-operator FM waveform. Both ratios are relative
// to the oscillator frequency.
type FMParams struct {
	CarrierRatio   float64
	ModulatorRatio float64
	Index          float64
}

// DefaultFMParams returns carrier 1, modulator 2, index 3.
func DefaultFMParams() FMParams {
	return FMParams{CarrierRatio: 1, ModulatorRatio: 2, Index: 3}
}

// Oscillator is a phase-accumulator tone source. The phase is kept in [0,1).
type Oscillator struct {
	sampleRate float64
	waveform   Waveform
	freq       float64
	phase      float64
	inc        float64

	table *Wavetable

	fm         FMParams
	modPhase   float64
	carrierInc float64
	modInc     float64
}

// NewOscillator returns a sine oscillator at freq.
func NewOscillator(sampleRate, freq float64) (*Oscillator, error) {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return nil, ErrInvalidSampleRate
	}
	if freq < 0 || math.IsNaN(freq) {
		return nil, ErrNegativeFrequency
	}
	o := &Oscillator{
		sampleRate: sampleRate,
		waveform:   WaveSine,
		fm:         DefaultFMParams(),
	}
	o.SetFrequency(freq)
	return o, nil
}

// SetFrequency changes the pitch without touching the phase. Values are
// clamped to [0, sampleRate/2]; NaN is ignored.
func (o *Oscillator) SetFrequency(freq float64) {
	if math.IsNaN(freq) {
		return
	}
	o.freq = clampf(freq, 0, 0.5*o.sampleRate)
	o.updateIncrements()
}

// SetWaveform switches the shape. Unknown waveforms are ignored.
func (o *Oscillator) SetWaveform(w Waveform) {
	if w.Valid() {
		o.waveform = w
	}
}

// SetWavetable sets the table used by WaveTable. A nil table falls back to sine.
func (o *Oscillator) SetWavetable(t *Wavetable) {
	o.table = t
}

// SetFM updates the FM operator settings. Negative values are clamped to 0.
func (o *Oscillator) SetFM(p FMParams) {
	o.fm = FMParams{
		CarrierRatio:   math.Max(0, p.CarrierRatio),
		ModulatorRatio: math.Max(0, p.ModulatorRatio),
		Index:          math.Max(0, p.Index),
	}
	o.updateIncrements()
}

func (o *Oscillator) updateIncrements() {
	o.inc = o.freq / o.sampleRate
	o.carrierInc = o.inc * o.fm.CarrierRatio
	o.modInc = o.inc * o.fm.ModulatorRatio
}

// Reset returns both phase accumulators to zero.
func (o *Oscillator) Reset() {
	o.phase = 0
	o.modPhase = 0
}

func (o *Oscillator) Frequency() float64 { return o.freq }
func (o *Oscillator) Waveform() Waveform  { return o.waveform }
func (o *Oscillator) Phase() float64      { return o.phase }
func (o *Oscillator) FM() FMParams        { return o.fm }

// NextSample advances the phase by one sample and returns the waveform value
// at the new phase, in [-1,1].
func (o *Oscillator) NextSample() float32 {
	if o.waveform == WaveFM {
		o.phase = wrapPhase(o.phase + o.carrierInc)
		o.modPhase = wrapPhase(o.modPhase + o.modInc)
		mod := o.fm.Index * math.Sin(twoPi*o.modPhase)
		return float32(math.Sin(twoPi*o.phase + mod))
	}

	o.phase = wrapPhase(o.phase + o.inc)
	p := o.phase
	switch o.waveform {
	case WaveSquare:
		if p < 0.5 {
			return 1
		}
		return -1
	case WaveSaw:
		return float32(2*p - 1)
	case WaveTriangle:
		return float32(2*math.Abs(2*p-1) - 1)
	case WaveTable:
		if o.table != nil {
			return o.table.Lookup(p)
		}
	}
	return float32(math.Sin(twoPi * p))
}

// Process fills dst with consecutive samples.
func (o *Oscillator) Process(dst []float32) {
	for i := range dst {
		dst[i] = o.NextSample()
	}
}
