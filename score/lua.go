package score

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/cwbudde/algo-synth/synth"
)

// compiler holds the cursor state the script functions share.
type compiler struct {
	score    *Score
	cursor   float64
	bpm      float64
	velocity float32
	seq      int
}

// Compile runs a score script and returns the events it scheduled. Scripts
// get the base, table, string and math libraries plus the score functions;
// ctx cancels runaway scripts.
func Compile(ctx context.Context, src, name string) (*Score, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	if ctx != nil {
		L.SetContext(ctx)
	}

	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", ErrScript, lib.name, err)
		}
	}
	// No file or module access from scores.
	for _, g := range []string{"dofile", "loadfile", "require"} {
		L.SetGlobal(g, lua.LNil)
	}

	c := &compiler{score: &Score{}, bpm: 120, velocity: 0.8}
	c.register(L)

	fn, err := L.Load(strings.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScript, err)
	}
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScript, err)
	}
	c.score.sort()
	return c.score, nil
}

// LoadFile compiles the script at path.
func LoadFile(ctx context.Context, path string) (*Score, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(ctx, string(b), filepath.Base(path))
}

func (c *compiler) register(L *lua.LState) {
	funcs := map[string]lua.LGFunction{
		"tempo":         c.luaTempo,
		"velocity":      c.luaVelocity,
		"note":          c.luaNote,
		"play":          c.luaPlay,
		"chord":         c.luaChord,
		"rest":          c.luaRest,
		"at":            c.luaAt,
		"now":           c.luaNow,
		"beats":         c.luaBeats,
		"param":         c.luaParam,
		"bend":          c.luaBend,
		"sustain":       c.luaSustain,
		"all_notes_off": c.luaAllNotesOff,
		"all_sound_off": c.luaAllSoundOff,
	}
	for name, fn := range funcs {
		L.SetGlobal(name, L.NewFunction(fn))
	}
}

func (c *compiler) add(L *lua.LState, t float64, ev synth.Event) {
	if len(c.score.Events) >= MaxEvents {
		L.RaiseError("score exceeds %d events", MaxEvents)
	}
	c.seq++
	c.score.Events = append(c.score.Events, Timed{Time: t, Event: ev, seq: c.seq})
}

func (c *compiler) seconds(beats float64) float64 { return beats * 60 / c.bpm }

func checkFinite(L *lua.LState, n int) float64 {
	v := float64(L.CheckNumber(n))
	if math.IsNaN(v) || math.IsInf(v, 0) {
		L.ArgError(n, "must be finite")
	}
	return v
}

func checkBeats(L *lua.LState, n int) float64 {
	b := checkFinite(L, n)
	if b < 0 {
		L.ArgError(n, "duration must be >= 0")
	}
	return b
}

func checkNote(L *lua.LState, n int) int {
	v := L.Get(n)
	switch v.Type() {
	case lua.LTNumber:
		note := int(lua.LVAsNumber(v))
		if note < 0 || note > 127 {
			L.ArgError(n, "note out of range 0..127")
		}
		return note
	case lua.LTString:
		note, err := ParseNote(lua.LVAsString(v))
		if err != nil {
			L.ArgError(n, err.Error())
		}
		return note
	}
	L.TypeError(n, lua.LTNumber)
	return 0
}

func (c *compiler) optVelocity(L *lua.LState, n int) float32 {
	if L.GetTop() < n || L.Get(n) == lua.LNil {
		return c.velocity
	}
	v := checkFinite(L, n)
	if v < 0 || v > 1 {
		L.ArgError(n, "velocity must be in [0, 1]")
	}
	return float32(v)
}

func (c *compiler) schedule(L *lua.LState, notes []int, beats float64, vel float32) {
	dur := c.seconds(beats)
	for _, note := range notes {
		c.add(L, c.cursor, synth.NoteOn(note, vel))
		c.add(L, c.cursor+dur, synth.NoteOff(note))
	}
}

// tempo(bpm)
func (c *compiler) luaTempo(L *lua.LState) int {
	bpm := checkFinite(L, 1)
	if bpm <= 0 {
		L.ArgError(1, "tempo must be > 0")
	}
	c.bpm = bpm
	return 0
}

// velocity(v) sets the default velocity.
func (c *compiler) luaVelocity(L *lua.LState) int {
	c.velocity = c.optVelocity(L, 1)
	return 0
}

// note(n, beats [, vel]) plays and advances the cursor.
func (c *compiler) luaNote(L *lua.LState) int {
	note := checkNote(L, 1)
	beats := checkBeats(L, 2)
	c.schedule(L, []int{note}, beats, c.optVelocity(L, 3))
	c.cursor += c.seconds(beats)
	return 0
}

// play(n, beats [, vel]) plays without moving the cursor.
func (c *compiler) luaPlay(L *lua.LState) int {
	note := checkNote(L, 1)
	beats := checkBeats(L, 2)
	c.schedule(L, []int{note}, beats, c.optVelocity(L, 3))
	return 0
}

// chord({n...}, beats [, vel])
func (c *compiler) luaChord(L *lua.LState) int {
	tbl := L.CheckTable(1)
	beats := checkBeats(L, 2)
	vel := c.optVelocity(L, 3)

	notes := make([]int, 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		L.Push(tbl.RawGetInt(i))
		notes = append(notes, checkNote(L, L.GetTop()))
		L.Pop(1)
	}
	c.schedule(L, notes, beats, vel)
	c.cursor += c.seconds(beats)
	return 0
}

// rest(beats)
func (c *compiler) luaRest(L *lua.LState) int {
	c.cursor += c.seconds(checkBeats(L, 1))
	return 0
}

// at(seconds) moves the cursor to an absolute time.
func (c *compiler) luaAt(L *lua.LState) int {
	t := checkFinite(L, 1)
	if t < 0 {
		L.ArgError(1, "time must be >= 0")
	}
	c.cursor = t
	return 0
}

// now() returns the cursor in seconds.
func (c *compiler) luaNow(L *lua.LState) int {
	L.Push(lua.LNumber(c.cursor))
	return 1
}

// beats(b) converts beats to seconds at the current tempo.
func (c *compiler) luaBeats(L *lua.LState) int {
	L.Push(lua.LNumber(c.seconds(checkFinite(L, 1))))
	return 1
}

// param(name, value)
func (c *compiler) luaParam(L *lua.LState) int {
	id, err := synth.ParseParamID(L.CheckString(1))
	if err != nil {
		L.ArgError(1, err.Error())
	}
	c.add(L, c.cursor, synth.ParamChange(id, checkFinite(L, 2)))
	return 0
}

// bend(v) with v in [-1, 1].
func (c *compiler) luaBend(L *lua.LState) int {
	v := checkFinite(L, 1)
	c.add(L, c.cursor, synth.PitchBend(math.Max(-1, math.Min(1, v))))
	return 0
}

// sustain(down)
func (c *compiler) luaSustain(L *lua.LState) int {
	c.add(L, c.cursor, synth.Sustain(L.ToBool(1)))
	return 0
}

func (c *compiler) luaAllNotesOff(L *lua.LState) int {
	c.add(L, c.cursor, synth.AllNotesOff())
	return 0
}

func (c *compiler) luaAllSoundOff(L *lua.LState) int {
	c.add(L, c.cursor, synth.AllSoundOff())
	return 0
}
