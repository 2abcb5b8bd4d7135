// Package midi turns raw MIDI channel messages into synth events.
package midi

import (
	"fmt"

	"github.com/cwbudde/algo-synth/synth"
)

// Status nibbles of the channel voice messages the router understands.
const (
	StatusNoteOff       byte = 0x80
	StatusNoteOn        byte = 0x90
	StatusPolyPressure  byte = 0xA0
	StatusControlChange byte = 0xB0
	StatusProgramChange byte = 0xC0
	StatusChanPressure  byte = 0xD0
	StatusPitchBend     byte = 0xE0
)

// Controller numbers with a fixed meaning.
const (
	CCModWheel    byte = 1
	CCVolume      byte = 7
	CCSustain     byte = 64
	CCResonance   byte = 71
	CCCutoff      byte = 74
	CCAllSoundOff byte = 120
	CCAllNotesOff byte = 123
)

// Omni makes the router accept every channel.
const Omni = -1

// Sink receives decoded events. *synth.Engine implements it.
type Sink interface {
	HandleEvent(ev synth.Event)
}

type ccTarget struct {
	id     synth.ParamID
	mapped bool
}

// Router decodes MIDI messages. Controllers are mapped to parameters through
// a fixed table, so decoding never allocates.
type Router struct {
	channel int
	cc      [128]ccTarget
}

// NewRouter returns an omni router with volume, cutoff, resonance and the
// mod wheel (FM index) mapped.
func NewRouter() *Router {
	r := &Router{channel: Omni}
	r.MapCC(CCVolume, synth.ParamMasterGain)
	r.MapCC(CCCutoff, synth.ParamFilterCutoff)
	r.MapCC(CCResonance, synth.ParamFilterResonance)
	r.MapCC(CCModWheel, synth.ParamFMModIndex)
	return r
}

// SetChannel restricts the router to channel 0..15, or Omni.
func (r *Router) SetChannel(ch int) error {
	if ch != Omni && (ch < 0 || ch > 15) {
		return fmt.Errorf("midi: channel %d out of range", ch)
	}
	r.channel = ch
	return nil
}

func (r *Router) Channel() int { return r.channel }

// MapCC routes controller cc to parameter id as a normalized value. The
// controllers with a fixed meaning (sustain, all notes/sound off) cannot be
// remapped.
func (r *Router) MapCC(cc byte, id synth.ParamID) {
	if cc > 127 || cc == CCSustain || cc == CCAllNotesOff || cc == CCAllSoundOff {
		return
	}
	r.cc[cc] = ccTarget{id: id, mapped: true}
}

// UnmapCC removes a controller mapping.
func (r *Router) UnmapCC(cc byte) {
	if cc <= 127 {
		r.cc[cc] = ccTarget{}
	}
}

// Decode converts one complete channel message into an event scheduled at
// offset. It reports false for messages that carry nothing for the synth:
// other channels, unmapped controllers, program changes, system messages,
// truncated input.
func (r *Router) Decode(msg []byte, offset int) (synth.Event, bool) {
	if len(msg) < 2 || msg[0] < 0x80 || msg[0] >= 0xF0 {
		return synth.Event{}, false
	}
	status := msg[0] & 0xF0
	if r.channel != Omni && int(msg[0]&0x0F) != r.channel {
		return synth.Event{}, false
	}
	if dataLen(status) > len(msg)-1 {
		return synth.Event{}, false
	}
	d1 := msg[1] & 0x7F

	var ev synth.Event
	switch status {
	case StatusNoteOn:
		vel := msg[2] & 0x7F
		if vel == 0 {
			ev = synth.NoteOff(int(d1))
		} else {
			ev = synth.NoteOn(int(d1), float32(vel)/127)
		}
	case StatusNoteOff:
		ev = synth.NoteOff(int(d1))
	case StatusPitchBend:
		raw := int(msg[2]&0x7F)<<7 | int(d1)
		ev = synth.PitchBend(float64(raw)/8192 - 1)
	case StatusControlChange:
		val := msg[2] & 0x7F
		switch d1 {
		case CCSustain:
			ev = synth.Sustain(val >= 64)
		case CCAllNotesOff:
			ev = synth.AllNotesOff()
		case CCAllSoundOff:
			ev = synth.AllSoundOff()
		default:
			t := r.cc[d1]
			if !t.mapped {
				return synth.Event{}, false
			}
			ev = synth.ParamChangeNormalized(t.id, float64(val)/127)
		}
	default:
		return synth.Event{}, false
	}
	return ev.At(offset), true
}

// Dispatch decodes msg and hands the result to sink.
func (r *Router) Dispatch(sink Sink, msg []byte, offset int) bool {
	ev, ok := r.Decode(msg, offset)
	if ok {
		sink.HandleEvent(ev)
	}
	return ok
}

// Split walks a byte stream and calls fn once per complete channel message,
// expanding running status. System real-time bytes are skipped, system
// exclusive blocks are dropped whole. fn must not retain msg.
func Split(stream []byte, fn func(msg []byte)) {
	var buf [3]byte
	var running byte
	n, need := 0, 0
	inSysEx := false
	for _, b := range stream {
		switch {
		case b >= 0xF8:
			continue
		case b == 0xF0:
			inSysEx = true
			running, n = 0, 0
			continue
		case b == 0xF7:
			inSysEx = false
			continue
		case inSysEx:
			continue
		case b >= 0xF0:
			running, n = 0, 0
			continue
		case b >= 0x80:
			running = b
			buf[0] = b
			n = 1
			need = 1 + dataLen(b&0xF0)
			continue
		}
		if running == 0 {
			continue
		}
		if n == 0 {
			buf[0] = running
			n = 1
		}
		buf[n] = b
		n++
		if n == need {
			fn(buf[:n])
			n = 0
		}
	}
}

func dataLen(status byte) int {
	switch status {
	case StatusProgramChange, StatusChanPressure:
		return 1
	}
	return 2
}
