package synth

import (
	"errors"
	"math"
)

// ErrInvalidEnvelope is returned for negative stage times or a sustain level
// outside [0,1].
var ErrInvalidEnvelope = errors.New("synth: invalid envelope settings")

// Stage is the current ADSR segment.
type Stage int

const (
	StageIdle Stage = iota
	StageAttack
	StageDecay
	StageSustain
	StageRelease
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageAttack:
		return "attack"
	case StageDecay:
		return "decay"
	case StageSustain:
		return "sustain"
	case StageRelease:
		return "release"
	}
	return "unknown"
}

// RetriggerMode controls where a new attack starts when the envelope is
// already sounding.
type RetriggerMode int

const (
	// RetriggerFromZero restarts the attack at level 0.
	RetriggerFromZero RetriggerMode = iota
	// RetriggerFromLevel ramps from the current level up to 1.
	RetriggerFromLevel
)

// Envelope is a linear ADSR generator. Stage lengths are counted in whole
// samples, so a 10 ms attack at 48 kHz peaks on exactly the 480th sample.
type Envelope struct {
	sampleRate float64

	attack, decay, release float64
	sustain                float64

	attackN, decayN, releaseN int64

	stage     Stage
	pos       int64
	level     float64
	from      float64
	retrigger RetriggerMode
}

// NewEnvelope validates the settings and returns an idle envelope.
func NewEnvelope(sampleRate, attack, decay, sustain, release float64) (*Envelope, error) {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return nil, ErrInvalidSampleRate
	}
	for _, t := range []float64{attack, decay, release} {
		if !(t >= 0) || math.IsInf(t, 0) {
			return nil, ErrInvalidEnvelope
		}
	}
	if !(sustain >= 0 && sustain <= 1) {
		return nil, ErrInvalidEnvelope
	}
	e := &Envelope{sampleRate: sampleRate}
	e.SetADSR(attack, decay, sustain, release)
	return e, nil
}

// SetADSR updates all four settings. Out-of-range values are clamped, so this
// is safe to call from the audio thread with host-supplied values. A running
// stage keeps its position and continues with the new length.
func (e *Envelope) SetADSR(attack, decay, sustain, release float64) {
	e.attack = sanitizeTime(attack)
	e.decay = sanitizeTime(decay)
	e.release = sanitizeTime(release)
	if math.IsNaN(sustain) {
		sustain = e.sustain
	}
	e.sustain = clampf(sustain, 0, 1)
	e.attackN = e.samples(e.attack)
	e.decayN = e.samples(e.decay)
	e.releaseN = e.samples(e.release)
}

func sanitizeTime(t float64) float64 {
	if !(t > 0) {
		return 0
	}
	return math.Min(t, 3600)
}

func (e *Envelope) samples(seconds float64) int64 {
	return int64(math.Round(seconds * e.sampleRate))
}

func (e *Envelope) SetRetrigger(m RetriggerMode) { e.retrigger = m }

// NoteOn starts the attack stage.
func (e *Envelope) NoteOn() {
	if e.retrigger == RetriggerFromLevel && e.stage != StageIdle {
		e.from = e.level
	} else {
		e.from = 0
		e.level = 0
	}
	e.stage = StageAttack
	e.pos = 0
}

// NoteOff enters the release stage from the current level. It does nothing
// when the envelope is idle or already releasing.
func (e *Envelope) NoteOff() {
	if e.stage == StageIdle || e.stage == StageRelease {
		return
	}
	e.stage = StageRelease
	e.pos = 0
	e.from = e.level
}

// Kill silences the envelope immediately.
func (e *Envelope) Kill() {
	e.stage = StageIdle
	e.pos = 0
	e.level = 0
	e.from = 0
}

// NextValue advances one sample and returns the level in [0,1].
func (e *Envelope) NextValue() float32 {
	switch e.stage {
	case StageAttack:
		e.pos++
		if e.pos >= e.attackN {
			e.level = 1
			e.stage = StageDecay
			e.pos = 0
		} else {
			e.level = e.from + (1-e.from)*float64(e.pos)/float64(e.attackN)
		}
	case StageDecay:
		e.pos++
		if e.pos >= e.decayN {
			e.level = e.sustain
			e.stage = StageSustain
			e.pos = 0
		} else {
			e.level = 1 - (1-e.sustain)*float64(e.pos)/float64(e.decayN)
		}
	case StageSustain:
		e.level = e.sustain
	case StageRelease:
		e.pos++
		if e.pos >= e.releaseN {
			e.Kill()
		} else {
			e.level = e.from * (1 - float64(e.pos)/float64(e.releaseN))
		}
	default:
		e.level = 0
	}
	return float32(e.level)
}

// Stage returns the current segment.
func (e *Envelope) Stage() Stage { return e.stage }

// Level returns the last value produced by NextValue.
func (e *Envelope) Level() float32 { return float32(e.level) }

// IsActive reports whether the envelope is in any stage but idle.
func (e *Envelope) IsActive() bool { return e.stage != StageIdle }

// Elapsed returns the time spent in the current stage.
func (e *Envelope) Elapsed() float64 { return float64(e.pos) / e.sampleRate }

func (e *Envelope) Attack() float64  { return e.attack }
func (e *Envelope) Decay() float64   { return e.decay }
func (e *Envelope) Sustain() float64 { return e.sustain }
func (e *Envelope) Release() float64 { return e.release }
