package synth

import (
	"github.com/cwbudde/algo-synth/dsp"
)

// Voice is one polyphonic slot: an oscillator shaped by an envelope, with an
// optional per-voice filter. Voices are owned by a Pool and reused in place.
type Voice struct {
	osc    *Oscillator
	env    *Envelope
	filter *dsp.Biquad

	note      int
	velocity  float32
	stamp     uint64
	baseFreq  float64
	bend      float64
	sustained bool
	freeRun   bool

	// Steal crossfade: the old note fades out over fadeLen samples and the
	// pending note starts once it is silent.
	fadeLeft     int
	fadeLen      int
	pendingNote  int
	pendingVel   float32
	pendingStamp uint64
	pendingOff   bool
}

// NewVoice builds an idle voice around osc and env.
func NewVoice(osc *Oscillator, env *Envelope) *Voice {
	return &Voice{osc: osc, env: env, note: -1, bend: 1}
}

// SetFilter attaches a per-voice filter. Pass nil to remove it.
func (v *Voice) SetFilter(f *dsp.Biquad) { v.filter = f }

// SetFreeRunPhase keeps the oscillator phase running across note starts.
func (v *Voice) SetFreeRunPhase(on bool) { v.freeRun = on }

// Trigger starts note at velocity, replacing whatever the voice was playing.
func (v *Voice) Trigger(note int, velocity float32) {
	v.start(note, velocity, v.stamp)
}

func (v *Voice) start(note int, velocity float32, stamp uint64) {
	wasActive := v.env.IsActive()
	v.note = note
	v.velocity = clampVelocity(velocity)
	v.stamp = stamp
	v.sustained = false
	v.baseFreq = NoteToFreq(note)
	v.osc.SetFrequency(v.baseFreq * v.bend)
	if !wasActive {
		if !v.freeRun {
			v.osc.Reset()
		}
		if v.filter != nil {
			v.filter.Reset()
		}
	}
	v.env.NoteOn()
}

// steal hands the voice to a new note. With fade > 0 the current note is
// faded out first; otherwise it is cut.
func (v *Voice) steal(note int, velocity float32, stamp uint64, fade int) {
	if fade <= 0 || !v.env.IsActive() {
		v.cancelFade()
		v.env.Kill()
		v.start(note, velocity, stamp)
		return
	}
	v.fadeLen = fade
	v.fadeLeft = fade
	v.pendingNote = note
	v.pendingVel = velocity
	v.pendingStamp = stamp
	v.pendingOff = false
	v.stamp = stamp
	v.sustained = false
}

func (v *Voice) finishSteal() {
	note, vel, stamp, off := v.pendingNote, v.pendingVel, v.pendingStamp, v.pendingOff
	v.cancelFade()
	v.env.Kill()
	v.start(note, vel, stamp)
	if off {
		v.env.NoteOff()
	}
}

func (v *Voice) cancelFade() {
	v.fadeLen = 0
	v.fadeLeft = 0
	v.pendingOff = false
}

func (v *Voice) fading() bool { return v.fadeLen > 0 }

// Release moves the voice into its release stage.
func (v *Voice) Release() {
	v.sustained = false
	if v.fading() {
		v.pendingOff = true
		return
	}
	v.env.NoteOff()
}

// Kill silences the voice immediately and drops any pending note.
func (v *Voice) Kill() {
	v.cancelFade()
	v.sustained = false
	v.env.Kill()
	v.note = -1
}

// IsActive reports whether the voice produces sound.
func (v *Voice) IsActive() bool { return v.fading() || v.env.IsActive() }

// Note returns the note assigned to the voice. It is only meaningful while
// the voice is active. During a steal crossfade this is the incoming note.
func (v *Voice) Note() int {
	if v.fading() {
		return v.pendingNote
	}
	return v.note
}

func (v *Voice) Velocity() float32 { return v.velocity }

// Stamp is the pool clock value at which the current note started.
func (v *Voice) Stamp() uint64 { return v.stamp }

func (v *Voice) Oscillator() *Oscillator { return v.osc }
func (v *Voice) Envelope() *Envelope     { return v.env }
func (v *Voice) Filter() *dsp.Biquad     { return v.filter }

// Released reports whether the note has been let go, either by a note-off or
// by the end of its envelope.
func (v *Voice) Released() bool {
	if v.fading() {
		return v.pendingOff
	}
	return v.env.Stage() == StageRelease || v.env.Stage() == StageIdle
}

// SetPitchBend applies a frequency ratio on top of the note pitch without
// resetting the phase.
func (v *Voice) SetPitchBend(ratio float64) {
	if !(ratio > 0) {
		ratio = 1
	}
	v.bend = ratio
	if v.baseFreq > 0 {
		v.osc.SetFrequency(v.baseFreq * ratio)
	}
}

// RenderSample returns the next output sample. An inactive voice returns 0
// and its state is left untouched.
func (v *Voice) RenderSample() float32 {
	if v.fading() {
		var s float32
		if v.env.IsActive() {
			s = v.render() * float32(v.fadeLeft) / float32(v.fadeLen)
		}
		v.fadeLeft--
		if v.fadeLeft <= 0 {
			v.finishSteal()
		}
		return s
	}
	if !v.env.IsActive() {
		return 0
	}
	return v.render()
}

func (v *Voice) render() float32 {
	s := v.osc.NextSample() * v.env.NextValue() * v.velocity
	if v.filter != nil {
		s = v.filter.Process(s)
	}
	return s
}

func clampVelocity(v float32) float32 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
