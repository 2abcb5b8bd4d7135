package audioout

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-synth/synth"
)

type rampSource struct{ next float32 }

func (r *rampSource) RenderInterleaved(buf []float32, channels int) int {
	frames := len(buf) / channels
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			buf[i*channels+c] = r.next
		}
		r.next++
	}
	return frames
}

func TestStreamReadEncodesWholeFrames(t *testing.T) {
	s := NewStream(&rampSource{}, 2)
	p := make([]byte, 8*3+5)
	n, err := s.Read(p)
	require.NoError(t, err)
	require.Equal(t, 24, n)

	for i := 0; i < 6; i++ {
		got := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		require.Equal(t, float32(i/2), got)
	}

	n, err = s.Read(make([]byte, 7))
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestStreamRecorderCapturesPlayedSamples(t *testing.T) {
	s := NewStream(&rampSource{}, 1)
	rec := NewRecorder(64)
	s.SetRecorder(rec)

	_, err := s.Read(make([]byte, 16))
	require.NoError(t, err)
	_, err = s.Read(make([]byte, 8))
	require.NoError(t, err)
	require.Equal(t, []float32{0, 1, 2, 3, 4, 5}, rec.Samples())

	s.SetRecorder(nil)
	_, err = s.Read(make([]byte, 8))
	require.NoError(t, err)
	require.Equal(t, 6, rec.Len())
}

func TestStreamPullsFromEngine(t *testing.T) {
	e, err := synth.New(synth.DefaultConfig())
	require.NoError(t, err)
	require.True(t, e.Queue().Push(synth.NoteOn(69, 1)))

	s := NewStream(e, 2)
	p := make([]byte, 4*2*4800)
	_, err = s.Read(p)
	require.NoError(t, err)
	require.Equal(t, 1, e.ActiveVoices())

	var peak float64
	for i := 0; i < len(p)/8; i++ {
		l := math.Float32frombits(binary.LittleEndian.Uint32(p[i*8:]))
		r := math.Float32frombits(binary.LittleEndian.Uint32(p[i*8+4:]))
		require.Equal(t, l, r)
		peak = math.Max(peak, math.Abs(float64(l)))
	}
	require.Greater(t, peak, 0.1)
}

func TestRecorderDropsPastCapacity(t *testing.T) {
	s := NewStream(&rampSource{}, 1)
	rec := NewRecorder(5)
	s.SetRecorder(rec)

	_, err := s.Read(make([]byte, 4*8))
	require.NoError(t, err)
	require.Equal(t, []float32{0, 1, 2, 3, 4}, rec.Samples())
	require.Equal(t, 3, rec.Dropped())
}

func TestStreamReadSplitsLargeRequests(t *testing.T) {
	s := NewStream(&rampSource{}, 2)
	rec := NewRecorder(3 * chunkSamples)
	s.SetRecorder(rec)

	frames := chunkSamples + 100
	p := make([]byte, frames*2*bytesPerSample)
	n, err := s.Read(p)
	require.NoError(t, err)
	require.Equal(t, len(p), n)

	last := math.Float32frombits(binary.LittleEndian.Uint32(p[len(p)-bytesPerSample:]))
	require.Equal(t, float32(frames-1), last)
	require.Equal(t, 2*frames, rec.Len())
}

func TestStreamReadDoesNotAllocate(t *testing.T) {
	e, err := synth.New(synth.DefaultConfig())
	require.NoError(t, err)
	e.NoteOn(60, 1)

	s := NewStream(e, 2)
	s.SetRecorder(NewRecorder(1 << 20))
	p := make([]byte, 2*bytesPerSample*512)
	allocs := testing.AllocsPerRun(50, func() {
		if _, err := s.Read(p); err != nil {
			t.Fatal(err)
		}
	})
	require.Zero(t, allocs)
}
