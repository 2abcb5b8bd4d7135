// Package audioout streams engine output to the sound card through oto.
package audioout

import (
	"encoding/binary"
	"math"
	"sync/atomic"
)

// bytesPerSample is the size of one FormatFloat32LE sample.
const bytesPerSample = 4

// chunkSamples is the size of the render scratch buffer. Larger reads are
// rendered in several chunks.
const chunkSamples = 4096

// Source renders interleaved frames. *synth.Engine and *score.Player
// implement it.
type Source interface {
	RenderInterleaved(buf []float32, channels int) int
}

// Stream adapts a Source to the io.Reader oto pulls from. Read runs on the
// oto goroutine, which thereby becomes the engine's audio thread; it neither
// locks nor allocates.
type Stream struct {
	src      Source
	channels int
	buf      []float32
	recorder atomic.Pointer[Recorder]
}

// NewStream creates a stream for channels interleaved channels.
func NewStream(src Source, channels int) *Stream {
	channels = max(channels, 1)
	frames := max(chunkSamples/channels, 1)
	return &Stream{src: src, channels: channels, buf: make([]float32, frames*channels)}
}

// Channels returns the interleaved channel count.
func (s *Stream) Channels() int { return s.channels }

// SetRecorder installs or, with nil, removes a capture tap.
func (s *Stream) SetRecorder(r *Recorder) { s.recorder.Store(r) }

// Read fills p with whole frames of little-endian float32 samples.
func (s *Stream) Read(p []byte) (int, error) {
	frameBytes := bytesPerSample * s.channels
	frames := len(p) / frameBytes
	rec := s.recorder.Load()
	chunk := len(s.buf) / s.channels
	for done := 0; done < frames; {
		n := min(chunk, frames-done) * s.channels
		samples := s.buf[:n]
		s.src.RenderInterleaved(samples, s.channels)
		out := p[done*frameBytes:]
		for i, v := range samples {
			binary.LittleEndian.PutUint32(out[i*bytesPerSample:], math.Float32bits(v))
		}
		if rec != nil {
			rec.write(samples)
		}
		done += n / s.channels
	}
	return frames * frameBytes, nil
}

// Recorder captures what a Stream plays into a buffer allocated up front.
// One Stream writes; any goroutine may read. Samples beyond the capacity are
// dropped and counted.
type Recorder struct {
	buf     []float32
	n       atomic.Int64
	dropped atomic.Int64
}

// NewRecorder allocates room for capacity interleaved samples.
func NewRecorder(capacity int) *Recorder {
	return &Recorder{buf: make([]float32, max(capacity, 0))}
}

func (r *Recorder) write(samples []float32) {
	n := int(r.n.Load())
	c := copy(r.buf[n:], samples)
	if c < len(samples) {
		r.dropped.Add(int64(len(samples) - c))
	}
	// Publishing the new length after the copy makes the samples visible.
	r.n.Store(int64(n + c))
}

// Samples returns a copy of the captured interleaved samples.
func (r *Recorder) Samples() []float32 {
	n := r.n.Load()
	return append([]float32(nil), r.buf[:n]...)
}

// Len returns the number of captured samples.
func (r *Recorder) Len() int { return int(r.n.Load()) }

// Dropped returns how many samples did not fit.
func (r *Recorder) Dropped() int { return int(r.dropped.Load()) }
