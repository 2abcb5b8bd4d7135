package score

import (
	"github.com/cwbudde/algo-synth/synth"
)

type frameEvent struct {
	frame int64
	ev    synth.Event
}

// Player feeds a compiled score into an engine. It renders on the audio
// thread and does not allocate once constructed.
type Player struct {
	engine  *synth.Engine
	events  []frameEvent
	next    int
	pos     int64
	scratch []synth.Event
}

// NewPlayer schedules s against e's sample rate.
func NewPlayer(e *synth.Engine, s *Score) *Player {
	sr := e.SampleRate()
	p := &Player{engine: e}
	if s != nil {
		p.events = make([]frameEvent, len(s.Events))
		for i, t := range s.Events {
			p.events[i] = frameEvent{frame: Frame(t.Time, sr), ev: t.Event}
		}
	}
	p.scratch = make([]synth.Event, 0, 64)
	return p
}

// Engine returns the engine being driven.
func (p *Player) Engine() *synth.Engine { return p.engine }

// Position returns the number of frames rendered so far.
func (p *Player) Position() int64 { return p.pos }

// Finished reports whether every scheduled event has been dispatched.
func (p *Player) Finished() bool { return p.next >= len(p.events) }

// Done reports whether the score is finished and the engine has gone silent.
func (p *Player) Done() bool { return p.Finished() && p.engine.ActiveVoices() == 0 }

// Render fills out with the next len(out) mono frames.
func (p *Player) Render(out []float32) int {
	n := len(out)
	end := p.pos + int64(n)
	pos := 0
	for p.next < len(p.events) && p.events[p.next].frame < end {
		p.scratch = p.scratch[:0]
		for p.next < len(p.events) && p.events[p.next].frame < end && len(p.scratch) < cap(p.scratch) {
			fe := p.events[p.next]
			off := int(fe.frame - p.pos)
			if off < pos {
				off = pos
			}
			p.scratch = append(p.scratch, fe.ev.At(off))
			p.next++
		}
		// A full scratch buffer splits the block at the last event's offset.
		split := n
		if p.next < len(p.events) && p.events[p.next].frame < end {
			split = p.scratch[len(p.scratch)-1].Offset
		}
		for i := range p.scratch {
			p.scratch[i].Offset -= pos
		}
		p.engine.Process(out[pos:split], p.scratch)
		pos = split
	}
	if pos < n {
		p.engine.RenderBlock(out[pos:], n-pos)
	}
	p.pos = end
	return n
}

// RenderInterleaved renders len(buf)/channels frames, duplicating the mono
// signal into every channel.
func (p *Player) RenderInterleaved(buf []float32, channels int) int {
	if channels < 1 {
		return 0
	}
	frames := p.Render(buf[:len(buf)/channels])
	for i := frames - 1; i >= 0 && channels > 1; i-- {
		s := buf[i]
		base := i * channels
		for c := 0; c < channels; c++ {
			buf[base+c] = s
		}
	}
	return frames
}

// Reset rewinds to the start of the score and silences the engine.
func (p *Player) Reset() {
	p.next = 0
	p.pos = 0
	p.engine.Reset()
}
