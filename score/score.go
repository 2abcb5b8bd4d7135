// Package score compiles Lua scripts into timed synth events and plays them
// back block by block with sample-accurate offsets.
package score

import (
	"errors"
	"math"
	"sort"

	"github.com/cwbudde/algo-synth/synth"
)

// ErrScript wraps every compile or runtime failure of a score script.
var ErrScript = errors.New("score: script error")

// MaxEvents bounds the size of a compiled score.
const MaxEvents = 1 << 20

// Timed is an event scheduled at an absolute time in seconds.
type Timed struct {
	Time  float64
	Event synth.Event
	seq   int
}

// Score is an ordered list of timed events.
type Score struct {
	Events []Timed
}

// priority orders simultaneous events: releases first, then controls, then
// new notes, so a repeated note re-attacks and picks up a param set at the
// same instant.
func priority(k synth.EventKind) int {
	switch k {
	case synth.EventNoteOff, synth.EventAllNotesOff, synth.EventAllSoundOff:
		return 0
	case synth.EventNoteOn:
		return 2
	}
	return 1
}

func (s *Score) sort() {
	sort.SliceStable(s.Events, func(i, j int) bool {
		a, b := s.Events[i], s.Events[j]
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		pa, pb := priority(a.Event.Kind), priority(b.Event.Kind)
		if pa != pb {
			return pa < pb
		}
		return a.seq < b.seq
	})
}

// Duration returns the time of the last event.
func (s *Score) Duration() float64 {
	if len(s.Events) == 0 {
		return 0
	}
	return s.Events[len(s.Events)-1].Time
}

// Frame converts a time to a sample index at sampleRate.
func Frame(t, sampleRate float64) int64 {
	if t <= 0 {
		return 0
	}
	return int64(math.Round(t * sampleRate))
}
