package synth

import "fmt"

// EventKind tags the variant held by an Event.
type EventKind uint8

const (
	EventNone EventKind = iota
	EventNoteOn
	EventNoteOff
	EventPitchBend
	EventParamChange
	EventSustain
	EventAllNotesOff
	EventAllSoundOff
)

func (k EventKind) String() string {
	switch k {
	case EventNoteOn:
		return "note-on"
	case EventNoteOff:
		return "note-off"
	case EventPitchBend:
		return "pitch-bend"
	case EventParamChange:
		return "param"
	case EventSustain:
		return "sustain"
	case EventAllNotesOff:
		return "all-notes-off"
	case EventAllSoundOff:
		return "all-sound-off"
	}
	return "none"
}

// Event is a host event. It is a plain value so it can travel through the
// lock-free queue without allocating; only the fields used by Kind are set.
type Event struct {
	Kind EventKind
	// Offset is the sample position within the block being rendered.
	Offset   int
	Note     int
	Velocity float32
	// Value carries the bend amount in [-1,1], the parameter value, or the
	// pedal position.
	Value      float64
	Param      ParamID
	Normalized bool
}

func NoteOn(note int, velocity float32) Event {
	return Event{Kind: EventNoteOn, Note: note, Velocity: velocity}
}

func NoteOff(note int) Event {
	return Event{Kind: EventNoteOff, Note: note}
}

// PitchBend carries a bend in [-1,1]; the engine scales it by the bend range.
func PitchBend(value float64) Event {
	return Event{Kind: EventPitchBend, Value: value}
}

// ParamChange sets id to a plain value.
func ParamChange(id ParamID, plain float64) Event {
	return Event{Kind: EventParamChange, Param: id, Value: plain}
}

// ParamChangeNormalized sets id from a host value in [0,1].
func ParamChangeNormalized(id ParamID, norm float64) Event {
	return Event{Kind: EventParamChange, Param: id, Value: norm, Normalized: true}
}

func Sustain(down bool) Event {
	v := 0.0
	if down {
		v = 1
	}
	return Event{Kind: EventSustain, Value: v}
}

func AllNotesOff() Event { return Event{Kind: EventAllNotesOff} }
func AllSoundOff() Event { return Event{Kind: EventAllSoundOff} }

// At returns a copy of e scheduled at sample offset.
func (e Event) At(offset int) Event {
	e.Offset = offset
	return e
}

func (e Event) String() string {
	switch e.Kind {
	case EventNoteOn:
		return fmt.Sprintf("%s@%d note=%d vel=%.2f", e.Kind, e.Offset, e.Note, e.Velocity)
	case EventNoteOff:
		return fmt.Sprintf("%s@%d note=%d", e.Kind, e.Offset, e.Note)
	case EventParamChange:
		return fmt.Sprintf("%s@%d %s=%g", e.Kind, e.Offset, e.Param, e.Value)
	case EventPitchBend, EventSustain:
		return fmt.Sprintf("%s@%d %g", e.Kind, e.Offset, e.Value)
	}
	return fmt.Sprintf("%s@%d", e.Kind, e.Offset)
}
