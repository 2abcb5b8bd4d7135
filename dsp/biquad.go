package dsp

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidSampleRate is returned when a filter is built for a non-positive sample rate.
var ErrInvalidSampleRate = errors.New("dsp: sample rate must be > 0")

// FilterKind selects the biquad response.
type FilterKind int

const (
	LowPass FilterKind = iota
	HighPass
	BandPass
)

// FilterKindCount is the number of supported filter kinds.
const FilterKindCount = 3

// Parameter limits applied by the biquad setters.
const (
	MinCutoffHz     = 10.0
	MaxCutoffFactor = 0.49 // fraction of the sample rate, just below Nyquist
	MinQ            = 0.05
	MaxQ            = 40.0
)

func (k FilterKind) String() string {
	switch k {
	case LowPass:
		return "lowpass"
	case HighPass:
		return "highpass"
	case BandPass:
		return "bandpass"
	default:
		return fmt.Sprintf("FilterKind(%d)", int(k))
	}
}

// ParseFilterKind accepts the String() names plus the short forms lp/hp/bp.
func ParseFilterKind(s string) (FilterKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lowpass", "low-pass", "lp":
		return LowPass, nil
	case "highpass", "high-pass", "hp":
		return HighPass, nil
	case "bandpass", "band-pass", "bp":
		return BandPass, nil
	}
	return LowPass, fmt.Errorf("dsp: unknown filter kind %q", s)
}

// Biquad implements a second-order IIR filter (no heap allocations in Process).
// Coefficients follow the RBJ cookbook and are recomputed lazily, on the first
// Process call after the kind, cutoff or Q actually changed.
type Biquad struct {
	sampleRate float64
	kind       FilterKind
	cutoff     float64
	q          float64
	dirty      bool

	// Coefficients, normalized by a0
	b0, b1, b2 float64
	a1, a2     float64

	// State (previous samples)
	x1, x2 float64 // input history
	y1, y2 float64 // output history
}

// NewBiquad creates a filter. Cutoff and Q are clamped into range like every
// later parameter change.
func NewBiquad(sampleRate float64, kind FilterKind, cutoff, q float64) (*Biquad, error) {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return nil, ErrInvalidSampleRate
	}
	b := &Biquad{
		sampleRate: sampleRate,
		kind:       LowPass,
		cutoff:     0.25 * sampleRate,
		q:          math.Sqrt2 / 2,
		dirty:      true,
	}
	b.Set(kind, cutoff, q)
	b.updateCoefficients()
	return b, nil
}

// Set changes all three parameters at once.
func (b *Biquad) Set(kind FilterKind, cutoff, q float64) {
	b.SetKind(kind)
	b.SetCutoff(cutoff)
	b.SetQ(q)
}

// SetKind switches the response type. Unknown kinds are ignored.
func (b *Biquad) SetKind(kind FilterKind) {
	if kind < 0 || kind >= FilterKindCount || kind == b.kind {
		return
	}
	b.kind = kind
	b.dirty = true
}

// SetCutoff sets the cutoff (or center) frequency, clamped to
// [MinCutoffHz, MaxCutoffFactor*sampleRate]. NaN is ignored.
func (b *Biquad) SetCutoff(hz float64) {
	if math.IsNaN(hz) {
		return
	}
	hz = clamp(hz, MinCutoffHz, MaxCutoffFactor*b.sampleRate)
	if hz == b.cutoff {
		return
	}
	b.cutoff = hz
	b.dirty = true
}

// SetQ sets the resonance, clamped to [MinQ, MaxQ]. NaN is ignored.
func (b *Biquad) SetQ(q float64) {
	if math.IsNaN(q) {
		return
	}
	q = clamp(q, MinQ, MaxQ)
	if q == b.q {
		return
	}
	b.q = q
	b.dirty = true
}

func (b *Biquad) Kind() FilterKind    { return b.kind }
func (b *Biquad) Cutoff() float64     { return b.cutoff }
func (b *Biquad) Q() float64          { return b.q }
func (b *Biquad) SampleRate() float64 { return b.sampleRate }

// Process processes one sample through the biquad filter
func (b *Biquad) Process(input float32) float32 {
	if b.dirty {
		b.updateCoefficients()
	}
	x := float64(input)

	// Direct Form I
	y := b.b0*x + b.b1*b.x1 + b.b2*b.x2 - b.a1*b.y1 - b.a2*b.y2
	if y > -1e-30 && y < 1e-30 {
		y = 0
	}

	b.x2 = b.x1
	b.x1 = x
	b.y2 = b.y1
	b.y1 = y

	return float32(y)
}

// ProcessBlock filters buf in place.
func (b *Biquad) ProcessBlock(buf []float32) {
	for i := range buf {
		buf[i] = b.Process(buf[i])
	}
}

// Reset clears the filter state
func (b *Biquad) Reset() {
	b.x1, b.x2 = 0, 0
	b.y1, b.y2 = 0, 0
}

// MagnitudeAt returns the linear magnitude response at freq Hz.
func (b *Biquad) MagnitudeAt(freq float64) float64 {
	if b.dirty {
		b.updateCoefficients()
	}
	w := 2 * math.Pi * freq / b.sampleRate
	c1, s1 := math.Cos(w), math.Sin(w)
	c2, s2 := math.Cos(2*w), math.Sin(2*w)
	numRe := b.b0 + b.b1*c1 + b.b2*c2
	numIm := -(b.b1*s1 + b.b2*s2)
	denRe := 1 + b.a1*c1 + b.a2*c2
	denIm := -(b.a1*s1 + b.a2*s2)
	return math.Hypot(numRe, numIm) / math.Hypot(denRe, denIm)
}

func (b *Biquad) updateCoefficients() {
	w0 := 2.0 * math.Pi * b.cutoff / b.sampleRate
	cosw0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2.0 * b.q)

	var b0, b1, b2 float64
	switch b.kind {
	case HighPass:
		b0 = (1.0 + cosw0) / 2.0
		b1 = -(1.0 + cosw0)
		b2 = (1.0 + cosw0) / 2.0
	case BandPass:
		b0 = alpha
		b1 = 0
		b2 = -alpha
	default:
		b0 = (1.0 - cosw0) / 2.0
		b1 = 1.0 - cosw0
		b2 = (1.0 - cosw0) / 2.0
	}
	a0 := 1.0 + alpha
	a1 := -2.0 * cosw0
	a2 := 1.0 - alpha

	// Normalize by a0
	b.b0 = b0 / a0
	b.b1 = b1 / a0
	b.b2 = b2 / a0
	b.a1 = a1 / a0
	b.a2 = a2 / a0
	b.dirty = false
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
