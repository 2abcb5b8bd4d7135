package score

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-synth/synth"
)

func compile(t *testing.T, src string) *Score {
	t.Helper()
	s, err := Compile(context.Background(), src, "test.lua")
	require.NoError(t, err)
	return s
}

func TestParseNote(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"A4", 69},
		{"C4", 60},
		{"c#3", 49},
		{"Bb2", 46},
		{"C-1", 0},
		{"G9", 127},
		{" 69 ", 69},
	}
	for _, tt := range tests {
		got, err := ParseNote(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
	for _, bad := range []string{"", "H2", "G#9", "C", "128", "-1"} {
		_, err := ParseNote(bad)
		require.Error(t, err, bad)
	}
}

func TestCompileSequence(t *testing.T) {
	s := compile(t, `
tempo(120)
note("C4", 1)
rest(1)
note(64, 0.5, 0.25)
`)
	require.Len(t, s.Events, 4)

	on := s.Events[0]
	require.Equal(t, synth.EventNoteOn, on.Event.Kind)
	require.Equal(t, 60, on.Event.Note)
	require.InDelta(t, 0.8, on.Event.Velocity, 1e-6)
	require.Zero(t, on.Time)

	require.Equal(t, synth.EventNoteOff, s.Events[1].Event.Kind)
	require.InDelta(t, 0.5, s.Events[1].Time, 1e-12)

	require.Equal(t, 64, s.Events[2].Event.Note)
	require.InDelta(t, 1.0, s.Events[2].Time, 1e-12)
	require.InDelta(t, 0.25, s.Events[2].Event.Velocity, 1e-6)
	require.InDelta(t, 1.25, s.Duration(), 1e-12)
}

func TestCompileOrdersSimultaneousEvents(t *testing.T) {
	s := compile(t, `
note(60, 1)
param("filter_cutoff", 800)
note(60, 1)
`)
	// At t=0.5: the first note's off, then the param, then the new on.
	var kinds []synth.EventKind
	for _, ev := range s.Events {
		if ev.Time == 0.5 {
			kinds = append(kinds, ev.Event.Kind)
		}
	}
	require.Equal(t, []synth.EventKind{synth.EventNoteOff, synth.EventParamChange, synth.EventNoteOn}, kinds)
}

func TestCompileChordPlayAndAt(t *testing.T) {
	s := compile(t, `
tempo(60)
chord({"C4", "E4", "G4"}, 2)
play("C5", 4)
at(10)
bend(3)
sustain(true)
assert(now() == 10)
assert(beats(2) == 2)
`)
	ons := 0
	for _, ev := range s.Events {
		if ev.Event.Kind == synth.EventNoteOn {
			ons++
		}
	}
	require.Equal(t, 4, ons)

	last := s.Events[len(s.Events)-1]
	require.Equal(t, 10.0, last.Time)
	require.Equal(t, synth.EventSustain, last.Event.Kind)
	require.Equal(t, 1.0, last.Event.Value)

	bend := s.Events[len(s.Events)-2]
	require.Equal(t, synth.EventPitchBend, bend.Event.Kind)
	require.Equal(t, 1.0, bend.Event.Value, "bend is clamped to [-1, 1]")
}

func TestCompileErrors(t *testing.T) {
	scripts := map[string]string{
		"syntax":       `note(60,`,
		"bad note":     `note("X9", 1)`,
		"bad param":    `param("nope", 1)`,
		"bad tempo":    `tempo(0)`,
		"bad velocity": `note(60, 1, 2)`,
		"negative":     `rest(-1)`,
		"runtime":      `error("boom")`,
		"no require":   `require("os")`,
	}
	for name, src := range scripts {
		_, err := Compile(context.Background(), src, name)
		require.ErrorIs(t, err, ErrScript, name)
	}
}

func TestCompileHonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := Compile(ctx, `while true do end`, "loop.lua")
	require.ErrorIs(t, err, ErrScript)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(context.Background(), "does/not/exist.lua")
	require.Error(t, err)
}

func newEngine(t *testing.T) *synth.Engine {
	t.Helper()
	e, err := synth.New(synth.DefaultConfig())
	require.NoError(t, err)
	return e
}

func renderAll(p *Player, frames, block int) []float32 {
	out := make([]float32, frames)
	for pos := 0; pos < frames; pos += block {
		end := min(pos+block, frames)
		p.Render(out[pos:end])
	}
	return out
}

func TestPlayerIsBlockSizeIndependent(t *testing.T) {
	s := compile(t, `
tempo(240)
note("A4", 1)
param("filter_cutoff", 2000)
chord({60, 64, 67}, 1, 0.5)
local big = {}
for n = 30, 110 do big[#big + 1] = n end
chord(big, 0.5)
`)
	const frames = 48000
	var ref []float32
	for _, block := range []int{7, 64, 512, frames} {
		out := renderAll(NewPlayer(newEngine(t), s), frames, block)
		if ref == nil {
			ref = out
			continue
		}
		for i := range ref {
			if math.Abs(float64(out[i]-ref[i])) > 1e-6 {
				t.Fatalf("block=%d differs at frame %d: %f vs %f", block, i, out[i], ref[i])
			}
		}
	}
}

func TestPlayerEventLandsOnFrame(t *testing.T) {
	s := compile(t, `at(0.01) note(69, 1)`)
	e := newEngine(t)
	p := NewPlayer(e, s)
	out := make([]float32, 1000)
	p.Render(out)
	for i := 0; i < 480; i++ {
		require.Zero(t, out[i], "frame %d before the note-on", i)
	}
	require.Equal(t, 1, e.ActiveVoices())
	require.Equal(t, int64(1000), p.Position())
}

func TestPlayerDone(t *testing.T) {
	s := compile(t, `note(69, 0.2)`)
	e := newEngine(t)
	p := NewPlayer(e, s)
	require.False(t, p.Done())

	buf := make([]float32, 256)
	for i := 0; i < 1000 && !p.Done(); i++ {
		p.Render(buf)
	}
	require.True(t, p.Finished())
	require.True(t, p.Done())
	require.Less(t, p.Position(), int64(48000), "0.1 s note plus 0.3 s release")

	p.Reset()
	require.False(t, p.Finished())
	require.Zero(t, p.Position())
}

func TestPlayerRenderInterleaved(t *testing.T) {
	s := compile(t, `note(69, 1)`)
	p := NewPlayer(newEngine(t), s)
	buf := make([]float32, 2*600)
	require.Equal(t, 600, p.RenderInterleaved(buf, 2))
	for i := 0; i < 600; i++ {
		require.Equal(t, buf[2*i], buf[2*i+1])
	}
	require.NotZero(t, buf[2*500])
}

func TestPlayerAllocatesNothing(t *testing.T) {
	src := `for i = 0, 400 do note(48 + i % 24, 0.05) end`
	s := compile(t, src)
	p := NewPlayer(newEngine(t), s)
	buf := make([]float32, 256)
	allocs := testing.AllocsPerRun(100, func() {
		p.Render(buf)
	})
	require.Zero(t, allocs)
}
