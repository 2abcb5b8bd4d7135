package synth

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-synth/dsp"
)

// ErrInvalidConfig wraps every construction-time validation failure.
var ErrInvalidConfig = errors.New("synth: invalid config")

// ErrInvalidSampleRate is returned for a sample rate that is not a positive
// finite number.
var ErrInvalidSampleRate = fmt.Errorf("%w: sample rate must be > 0", ErrInvalidConfig)

// MaxVoices bounds the voice pool.
const MaxVoices = 256

// FilterRouting selects where the filter sits in the signal chain.
type FilterRouting int

const (
	// RouteMaster filters the summed voices with one biquad.
	RouteMaster FilterRouting = iota
	// RouteVoice gives every voice its own biquad with shared settings.
	RouteVoice
	// RouteOff bypasses filtering.
	RouteOff
)

func (r FilterRouting) String() string {
	switch r {
	case RouteMaster:
		return "master"
	case RouteVoice:
		return "voice"
	case RouteOff:
		return "off"
	}
	return fmt.Sprintf("FilterRouting(%d)", int(r))
}

// ParseFilterRouting accepts the String() names.
func ParseFilterRouting(s string) (FilterRouting, error) {
	for r := RouteMaster; r <= RouteOff; r++ {
		if r.String() == s {
			return r, nil
		}
	}
	return RouteMaster, fmt.Errorf("synth: unknown filter routing %q", s)
}

// Config is the construction record of an Engine.
type Config struct {
	SampleRate float64
	VoiceCount int

	Waveform   Waveform
	FilterType dsp.FilterKind

	Attack  float32
	Decay   float32
	Sustain float32
	Release float32

	FilterCutoff    float32
	FilterResonance float32

	MasterGain     float32
	PitchBendRange float32

	FM                 FMParams
	WavetableSize      int
	WavetableHarmonics int

	FilterRouting FilterRouting
	Retrigger     RetriggerMode
	// StealFade is the fade-out time in seconds of a stolen voice. Zero cuts
	// the old note immediately.
	StealFade    float32
	FreeRunPhase bool

	// QueueCapacity sizes the lock-free event queue (power of two).
	QueueCapacity int
}

// DefaultConfig returns the stock patch: 48 kHz, 16 voices, a sine through
// an open low-pass.
func DefaultConfig() Config {
	return Config{
		SampleRate:         48000,
		VoiceCount:         16,
		Waveform:           WaveSine,
		FilterType:         dsp.LowPass,
		Attack:             0.01,
		Decay:              0.1,
		Sustain:            0.7,
		Release:            0.3,
		FilterCutoff:       20000,
		FilterResonance:    0.707,
		MasterGain:         0.5,
		PitchBendRange:     2,
		FM:                 DefaultFMParams(),
		WavetableSize:      2048,
		WavetableHarmonics: 16,
		FilterRouting:      RouteMaster,
		Retrigger:          RetriggerFromZero,
		QueueCapacity:      256,
	}
}

// Validate checks the construction-time contracts.
func (c Config) Validate() error {
	if !(c.SampleRate > 0) || math.IsInf(c.SampleRate, 0) {
		return ErrInvalidSampleRate
	}
	if c.VoiceCount < 1 || c.VoiceCount > MaxVoices {
		return fmt.Errorf("%w: %w (got %d, max %d)", ErrInvalidConfig, ErrInvalidVoiceCount, c.VoiceCount, MaxVoices)
	}
	if !c.Waveform.Valid() {
		return fmt.Errorf("%w: unknown waveform %d", ErrInvalidConfig, int(c.Waveform))
	}
	if c.FilterType < 0 || c.FilterType >= dsp.FilterKindCount {
		return fmt.Errorf("%w: unknown filter type %d", ErrInvalidConfig, int(c.FilterType))
	}
	if c.FilterRouting < RouteMaster || c.FilterRouting > RouteOff {
		return fmt.Errorf("%w: unknown filter routing %d", ErrInvalidConfig, int(c.FilterRouting))
	}
	for _, f := range []struct {
		name string
		v    float32
	}{{"attack", c.Attack}, {"decay", c.Decay}, {"release", c.Release}} {
		if !(f.v >= 0) || math.IsInf(float64(f.v), 0) {
			return fmt.Errorf("%w: %w: %s must be >= 0", ErrInvalidConfig, ErrInvalidEnvelope, f.name)
		}
	}
	if !(c.Sustain >= 0 && c.Sustain <= 1) {
		return fmt.Errorf("%w: %w: sustain must be in [0,1]", ErrInvalidConfig, ErrInvalidEnvelope)
	}
	// Every parameter must lie in the range of its cell, so the engine
	// starts from exactly the values given here.
	vals := c.paramValues()
	for id := ParamID(0); id < ParamCount; id++ {
		lo, hi := id.Range()
		v := vals[id]
		if v >= lo && v <= hi {
			continue
		}
		if id == ParamAttack || id == ParamDecay || id == ParamRelease {
			return fmt.Errorf("%w: %w: %s must be in [%g,%g] (got %g)", ErrInvalidConfig, ErrInvalidEnvelope, id.Name(), lo, hi, v)
		}
		return fmt.Errorf("%w: %s must be in [%g,%g] (got %g)", ErrInvalidConfig, id.Name(), lo, hi, v)
	}
	if c.WavetableSize < 2 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrEmptyWavetable)
	}
	if c.Retrigger != RetriggerFromZero && c.Retrigger != RetriggerFromLevel {
		return fmt.Errorf("%w: unknown retrigger mode %d", ErrInvalidConfig, int(c.Retrigger))
	}
	if !(c.StealFade >= 0) {
		return fmt.Errorf("%w: steal_fade must be >= 0", ErrInvalidConfig)
	}
	if c.QueueCapacity != 0 && (c.QueueCapacity < 2 || c.QueueCapacity&(c.QueueCapacity-1) != 0) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrQueueCapacity)
	}
	return nil
}
