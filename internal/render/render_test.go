package render

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-synth/analysis"
	"github.com/cwbudde/algo-synth/synth"
)

func newEngine(t *testing.T) *synth.Engine {
	t.Helper()
	e, err := synth.New(synth.DefaultConfig())
	require.NoError(t, err)
	return e
}

func TestNoteFixedDuration(t *testing.T) {
	e := newEngine(t)
	opts := DefaultOptions()
	opts.Duration = 0.7
	opts.ReleaseAfter = 0.25

	out, err := Note(e, opts)
	require.NoError(t, err)
	require.Len(t, out, 33600)
	require.Greater(t, analysis.RMS(out[4800:9600]), 0.05)
	require.Equal(t, 0, e.ActiveVoices(), "0.45 s of tail outlasts the 0.3 s release")
}

func TestNoteReleaseIndependentOfBlockSize(t *testing.T) {
	opts := DefaultOptions()
	opts.Duration = 0.1
	opts.ReleaseAfter = 100.0 / 48000.0

	var outs [][]float32
	for _, bs := range []int{32, 128, 1000} {
		opts.BlockSize = bs
		out, err := Note(newEngine(t), opts)
		require.NoError(t, err)
		outs = append(outs, out)
	}
	for i := 1; i < len(outs); i++ {
		require.Len(t, outs[i], len(outs[0]))
		for j := range outs[0] {
			if math.Abs(float64(outs[i][j]-outs[0][j])) > 1e-6 {
				t.Fatalf("render %d differs at frame %d: %f vs %f", i, j, outs[i][j], outs[0][j])
			}
		}
	}
}

func TestNoteAutoStop(t *testing.T) {
	e := newEngine(t)
	opts := DefaultOptions()
	opts.DecayDBFS = -60
	opts.ReleaseAfter = 0.1
	opts.MinDuration = 0.2
	opts.MaxDuration = 5

	out, err := Note(e, opts)
	require.NoError(t, err)
	require.Less(t, len(out), 48000, "render should stop shortly after the 0.3 s release")
	require.GreaterOrEqual(t, len(out), int(0.38*48000))
	tail := out[len(out)-DefaultBlockSize:]
	require.Less(t, analysis.RMS(tail), math.Pow(10, -60.0/20))
}

func TestNoteRejectsEmptyRender(t *testing.T) {
	e := newEngine(t)
	opts := DefaultOptions()
	opts.Duration = 0
	_, err := Note(e, opts)
	require.ErrorIs(t, err, ErrDuration)
}
