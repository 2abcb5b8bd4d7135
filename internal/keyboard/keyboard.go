// Package keyboard turns a computer keyboard into a note source. Terminals
// report key presses but no releases, so a note is held while its key
// auto-repeats and released a gate time after the last repeat.
package keyboard

import (
	"time"

	"github.com/cwbudde/algo-synth/synth"
)

// Pusher receives events. *synth.EventQueue implements it.
type Pusher interface {
	Push(ev synth.Event) bool
}

// Action is what a key press does besides playing a note.
type Action int

const (
	ActionNone Action = iota
	ActionNote
	ActionOctaveDown
	ActionOctaveUp
	ActionPanic
	ActionQuit
)

// Two tracker-style rows: the bottom row starts at the base C, the top row
// one octave higher.
var layout = map[byte]int{
	'z': 0, 's': 1, 'x': 2, 'd': 3, 'c': 4, 'v': 5, 'g': 6,
	'b': 7, 'h': 8, 'n': 9, 'j': 10, 'm': 11, ',': 12,
	'q': 12, '2': 13, 'w': 14, '3': 15, 'e': 16, 'r': 17, '5': 18,
	't': 19, '6': 20, 'y': 21, '7': 22, 'u': 23, 'i': 24,
}

// Lookup classifies a key byte. For ActionNote the semitone offset from the
// base note is returned as well.
func Lookup(b byte) (Action, int) {
	if st, ok := layout[b]; ok {
		return ActionNote, st
	}
	switch b {
	case '[':
		return ActionOctaveDown, 0
	case ']':
		return ActionOctaveUp, 0
	case ' ':
		return ActionPanic, 0
	case 0x03, 0x1b:
		return ActionQuit, 0
	}
	return ActionNone, 0
}

// DefaultGate covers the initial auto-repeat delay of common terminals.
const DefaultGate = 550 * time.Millisecond

// Keyboard maps key presses to note events. It is not safe for concurrent
// use; one goroutine feeds it and so stays the queue's single producer.
type Keyboard struct {
	out      Pusher
	base     int
	velocity float32
	gate     time.Duration
	held     map[int]time.Time
}

// New creates a keyboard whose bottom row starts at MIDI note 48 (C3).
func New(out Pusher) *Keyboard {
	return &Keyboard{
		out:      out,
		base:     48,
		velocity: 0.8,
		gate:     DefaultGate,
		held:     make(map[int]time.Time),
	}
}

func (k *Keyboard) SetVelocity(v float32) { k.velocity = v }
func (k *Keyboard) SetGate(d time.Duration) {
	if d > 0 {
		k.gate = d
	}
}

// Base returns the note of the bottom-row 'z' key.
func (k *Keyboard) Base() int { return k.base }

// Held returns the number of sounding notes.
func (k *Keyboard) Held() int { return len(k.held) }

// Press handles one key byte received at now.
func (k *Keyboard) Press(b byte, now time.Time) Action {
	action, st := Lookup(b)
	switch action {
	case ActionNote:
		note := k.base + st
		if note > 127 {
			return ActionNone
		}
		if _, ok := k.held[note]; !ok {
			k.out.Push(synth.NoteOn(note, k.velocity))
		}
		k.held[note] = now.Add(k.gate)
	case ActionOctaveDown:
		if k.base-12 >= 0 {
			k.releaseAll()
			k.base -= 12
		}
	case ActionOctaveUp:
		if k.base+12 <= 108 {
			k.releaseAll()
			k.base += 12
		}
	case ActionPanic:
		k.held = make(map[int]time.Time)
		k.out.Push(synth.AllSoundOff())
	case ActionQuit:
		k.releaseAll()
	}
	return action
}

// Tick releases notes whose gate has expired.
func (k *Keyboard) Tick(now time.Time) {
	for note, until := range k.held {
		if !now.Before(until) {
			k.out.Push(synth.NoteOff(note))
			delete(k.held, note)
		}
	}
}

func (k *Keyboard) releaseAll() {
	for note := range k.held {
		k.out.Push(synth.NoteOff(note))
		delete(k.held, note)
	}
}
