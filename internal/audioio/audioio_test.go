package audioio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// One 16-bit quantization step plus rounding slack.
const pcmTol = 2.0 / 32768.0

func directConvolve(x []float32, h []float32) []float32 {
	y := make([]float32, len(x)+len(h)-1)
	for i := 0; i < len(x); i++ {
		for j := 0; j < len(h); j++ {
			y[i+j] += x[i] * h[j]
		}
	}
	return y
}

func TestWriteMonoReadMono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mono.wav")
	data := make([]float32, 480)
	for i := range data {
		data[i] = float32(0.5 * math.Sin(2*math.Pi*float64(i)/48))
	}
	require.NoError(t, WriteMono(path, data, 48000))

	got, rate, err := ReadMono(path)
	require.NoError(t, err)
	require.Equal(t, 48000, rate)
	require.Len(t, got, len(data))
	for i := range data {
		if math.Abs(got[i]-float64(data[i])) > pcmTol {
			t.Fatalf("sample %d: got %f want %f", i, got[i], data[i])
		}
	}
}

func TestReadMonoAveragesChannels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	left := []float32{0.5, 0.5, 0.5, 0.5}
	right := []float32{-0.5, 0, 0.25, 0.5}
	require.NoError(t, WriteStereo(path, left, right, 44100))

	got, rate, err := ReadMono(path)
	require.NoError(t, err)
	require.Equal(t, 44100, rate)
	want := []float64{0, 0.25, 0.375, 0.5}
	require.Len(t, got, len(want))
	for i := range want {
		require.InDelta(t, want[i], got[i], pcmTol)
	}
}

func TestReadStereoDuplicatesMono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ir.wav")
	require.NoError(t, WriteMono(path, []float32{1, 0.5, 0.25}, 48000))

	l, r, rate, err := ReadStereo(path)
	require.NoError(t, err)
	require.Equal(t, 48000, rate)
	require.Equal(t, l, r)
	require.InDelta(t, 0.5, l[1], pcmTol)
}

func TestWriteStereoRejectsMismatch(t *testing.T) {
	err := WriteStereo(filepath.Join(t.TempDir(), "x.wav"), []float32{0}, []float32{0, 0}, 48000)
	require.ErrorIs(t, err, ErrChannelMismatch)

	err = WriteInterleaved(filepath.Join(t.TempDir(), "y.wav"), []float32{0, 0, 0}, 2, 48000)
	require.ErrorIs(t, err, ErrChannelMismatch)
}

func TestReadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a riff file"), 0o644))

	_, _, err := ReadMono(path)
	require.True(t, errors.Is(err, ErrInvalidWAV), "got %v", err)

	_, _, err = ReadMono(filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
}

func TestInterleave(t *testing.T) {
	got := Interleave([]float32{1, 2}, 3)
	require.Equal(t, []float32{1, 1, 1, 2, 2, 2}, got)
}

func TestResampleSameRateIsIdentity(t *testing.T) {
	in := []float64{1, 2, 3}
	out, err := Resample(in, 48000, 48000)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestResampleHalvesLength(t *testing.T) {
	in := make([]float32, 9600)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 96000))
	}
	out, err := Resample32(in, 96000, 48000)
	require.NoError(t, err)
	require.InDelta(t, 4800, len(out), 200)
}

func TestConvolveMatchesDirect(t *testing.T) {
	x := []float32{1, 2, 3, 4, 5, -1, 0.5}
	h := []float32{0.5, -0.25, 0.125}
	got, err := Convolve(x, h)
	require.NoError(t, err)
	want := directConvolve(x, h)
	require.Len(t, got, len(want))
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-4 {
			t.Fatalf("mismatch at %d: got=%f want=%f", i, got[i], want[i])
		}
	}

	_, err = Convolve(x, nil)
	require.ErrorIs(t, err, ErrEmptyIR)
}

func TestIRApplyMix(t *testing.T) {
	ir := &IR{Left: []float32{1, 0.5}, Right: []float32{0.5}, SampleRate: 48000}
	mono := []float32{1, 0, 0}

	l, r, err := ir.Apply(mono, 0)
	require.NoError(t, err)
	require.Len(t, l, 4)
	require.InDelta(t, 1, l[0], 1e-5)
	require.InDelta(t, 0, l[1], 1e-5)
	require.InDelta(t, 1, r[0], 1e-5)

	l, r, err = ir.Apply(mono, 1)
	require.NoError(t, err)
	require.InDelta(t, 1, l[0], 1e-4)
	require.InDelta(t, 0.5, l[1], 1e-4)
	require.InDelta(t, 0.5, r[0], 1e-4)
	require.InDelta(t, 0, r[1], 1e-4)

	var empty *IR
	_, _, err = empty.Apply(mono, 1)
	require.ErrorIs(t, err, ErrEmptyIR)
}

func TestLoadIRResamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ir96.wav")
	n := 960
	left := make([]float32, n)
	right := make([]float32, n)
	left[0], right[0] = 0.9, 0.4
	for i := 1; i < n; i++ {
		left[i] = left[i-1] * 0.99
		right[i] = right[i-1] * 0.99
	}
	require.NoError(t, WriteStereo(path, left, right, 96000))

	ir, err := LoadIR(path, 48000)
	require.NoError(t, err)
	require.Equal(t, 48000, ir.SampleRate)
	require.Less(t, len(ir.Left), n)
	require.Equal(t, len(ir.Left), len(ir.Right))
}
