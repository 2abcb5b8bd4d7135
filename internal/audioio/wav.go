// Package audioio reads and writes WAV files and offers the offline signal
// plumbing the tools share: sample-rate conversion and impulse-response
// convolution.
package audioio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// BitDepth is the PCM depth of every file written by this package.
const BitDepth = 16

var (
	// ErrInvalidWAV is returned for files that are not decodable PCM WAV.
	ErrInvalidWAV = errors.New("audioio: invalid wav file")
	// ErrChannelMismatch is returned when channel buffers differ in length.
	ErrChannelMismatch = errors.New("audioio: channel length mismatch")
)

// decode reads the whole file as interleaved float32 samples in [-1, 1].
func decode(path string) (*audio.Float32Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidWAV, path, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %s: missing format", ErrInvalidWAV, path)
	}
	return buf, nil
}

// ReadMono decodes path and averages all channels into one float64 signal.
func ReadMono(path string) ([]float64, int, error) {
	buf, err := decode(path)
	if err != nil {
		return nil, 0, err
	}
	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < ch; c++ {
			sum += float64(buf.Data[i*ch+c])
		}
		out[i] = sum / float64(ch)
	}
	return out, buf.Format.SampleRate, nil
}

// ReadStereo decodes path into a left/right pair. Mono files are returned
// as dual mono; channels beyond the second are ignored.
func ReadStereo(path string) ([]float32, []float32, int, error) {
	buf, err := decode(path)
	if err != nil {
		return nil, nil, 0, err
	}
	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	if frames == 0 {
		return nil, nil, 0, fmt.Errorf("%w: %s: no samples", ErrInvalidWAV, path)
	}
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := 0; i < frames; i++ {
		left[i] = buf.Data[i*ch]
		if ch > 1 {
			right[i] = buf.Data[i*ch+1]
		} else {
			right[i] = left[i]
		}
	}
	return left, right, buf.Format.SampleRate, nil
}

// WriteMono writes a single-channel 16-bit WAV, creating parent directories.
func WriteMono(path string, data []float32, sampleRate int) error {
	return WriteInterleaved(path, data, 1, sampleRate)
}

// WriteStereo interleaves left and right and writes a 16-bit stereo WAV.
func WriteStereo(path string, left, right []float32, sampleRate int) error {
	if len(left) != len(right) {
		return fmt.Errorf("%w: left=%d right=%d", ErrChannelMismatch, len(left), len(right))
	}
	data := make([]float32, len(left)*2)
	for i := range left {
		data[i*2] = left[i]
		data[i*2+1] = right[i]
	}
	return WriteInterleaved(path, data, 2, sampleRate)
}

// WriteInterleaved writes frames of interleaved samples as a 16-bit WAV.
func WriteInterleaved(path string, samples []float32, channels, sampleRate int) error {
	if channels < 1 {
		return fmt.Errorf("audioio: channel count must be >= 1, got %d", channels)
	}
	if len(samples)%channels != 0 {
		return fmt.Errorf("%w: %d samples for %d channels", ErrChannelMismatch, len(samples), channels)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, BitDepth, channels, 1)
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: channels,
		},
		Data:           samples,
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

// Interleave returns mono duplicated into channels interleaved channels.
func Interleave(mono []float32, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	out := make([]float32, len(mono)*channels)
	for i, s := range mono {
		for c := 0; c < channels; c++ {
			out[i*channels+c] = s
		}
	}
	return out
}
