package synth

import "errors"

// ErrInvalidVoiceCount is returned for a pool without voices.
var ErrInvalidVoiceCount = errors.New("synth: voice count must be >= 1")

// Pool owns a fixed set of voices and assigns notes to them. It never grows:
// a note-on with every voice busy steals the voice whose note started first.
type Pool struct {
	voices    []*Voice
	clock     uint64
	next      int
	sustain   bool
	stealFade int
	bend      float64
}

// NewPool takes ownership of voices.
func NewPool(voices []*Voice) (*Pool, error) {
	if len(voices) == 0 {
		return nil, ErrInvalidVoiceCount
	}
	for _, v := range voices {
		if v == nil {
			return nil, errors.New("synth: nil voice")
		}
	}
	return &Pool{voices: voices, bend: 1}, nil
}

// SetStealFade sets the crossfade length, in samples, used when a sounding
// voice is stolen. Zero cuts the old note.
func (p *Pool) SetStealFade(samples int) {
	if samples < 0 {
		samples = 0
	}
	p.stealFade = samples
}

// NoteOn assigns note to a voice and returns its index, or -1 when the note
// number is outside 0..127. Order of preference: the voice already holding
// the note (retriggered in place), a free voice, the oldest sounding voice.
func (p *Pool) NoteOn(note int, velocity float32) int {
	if note < 0 || note > 127 {
		return -1
	}
	p.clock++
	stamp := p.clock

	if idx := p.Find(note); idx >= 0 {
		v := p.voices[idx]
		if v.fading() {
			v.pendingVel = velocity
			v.pendingStamp = stamp
			v.pendingOff = false
			v.stamp = stamp
		} else {
			v.start(note, velocity, stamp)
		}
		return idx
	}

	if idx := p.findFree(); idx >= 0 {
		p.voices[idx].start(note, velocity, stamp)
		return idx
	}

	idx := p.oldest()
	p.voices[idx].steal(note, velocity, stamp, p.stealFade)
	return idx
}

// NoteOff releases the voice holding note. While the sustain pedal is down
// the release is deferred until the pedal comes up.
func (p *Pool) NoteOff(note int) {
	idx := p.Find(note)
	if idx < 0 {
		return
	}
	v := p.voices[idx]
	if p.sustain {
		v.sustained = true
		return
	}
	v.Release()
}

// SetSustain sets the pedal state. Lifting the pedal releases every note
// whose key was let go while it was down.
func (p *Pool) SetSustain(down bool) {
	p.sustain = down
	if down {
		return
	}
	for _, v := range p.voices {
		if v.sustained && v.IsActive() {
			v.Release()
		}
		v.sustained = false
	}
}

func (p *Pool) Sustain() bool { return p.sustain }

// AllNotesOff releases every voice and lifts the sustain pedal.
func (p *Pool) AllNotesOff() {
	p.sustain = false
	for _, v := range p.voices {
		if v.IsActive() {
			v.Release()
		}
	}
}

// AllSoundOff silences every voice immediately.
func (p *Pool) AllSoundOff() {
	p.sustain = false
	for _, v := range p.voices {
		v.Kill()
	}
}

// SetPitchBend applies a frequency ratio to all voices, including idle ones,
// so that later notes start bent.
func (p *Pool) SetPitchBend(ratio float64) {
	p.bend = ratio
	for _, v := range p.voices {
		v.SetPitchBend(ratio)
	}
}

// Find returns the index of the active voice holding note, or -1.
func (p *Pool) Find(note int) int {
	for i, v := range p.voices {
		if v.IsActive() && v.Note() == note {
			return i
		}
	}
	return -1
}

func (p *Pool) findFree() int {
	n := len(p.voices)
	for i := 0; i < n; i++ {
		idx := (p.next + i) % n
		if !p.voices[idx].IsActive() {
			p.next = (idx + 1) % n
			return idx
		}
	}
	return -1
}

func (p *Pool) oldest() int {
	best := 0
	for i, v := range p.voices {
		if v.stamp < p.voices[best].stamp {
			best = i
		}
	}
	return best
}

// Render sums one sample from every voice.
func (p *Pool) Render() float32 {
	var sum float32
	for _, v := range p.voices {
		sum += v.RenderSample()
	}
	return sum
}

// ActiveCount returns the number of sounding voices.
func (p *Pool) ActiveCount() int {
	n := 0
	for _, v := range p.voices {
		if v.IsActive() {
			n++
		}
	}
	return n
}

func (p *Pool) Len() int           { return len(p.voices) }
func (p *Pool) Voice(i int) *Voice { return p.voices[i] }
func (p *Pool) Voices() []*Voice   { return p.voices }
func (p *Pool) PitchBend() float64 { return p.bend }
