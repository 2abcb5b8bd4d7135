// Package render drives a synth.Engine offline: single notes with an
// optional auto-stop once the release tail falls below a level.
package render

import (
	"errors"
	"math"

	"github.com/cwbudde/algo-synth/analysis"
	"github.com/cwbudde/algo-synth/synth"
)

// DefaultBlockSize is the block length used when Options.BlockSize is unset.
const DefaultBlockSize = 128

// ErrDuration is returned when the requested render length is empty.
var ErrDuration = errors.New("render: max duration too small")

// Options controls a single-note render.
type Options struct {
	Note     int
	Velocity float32

	// Duration is the fixed length in seconds when auto-stop is disabled.
	Duration float64
	// ReleaseAfter is when the note-off is sent, in seconds. Negative holds
	// the note for the whole render.
	ReleaseAfter float64

	// DecayDBFS enables auto-stop when finite: rendering ends once
	// HoldBlocks consecutive blocks have an RMS below it, but never before
	// MinDuration and never after MaxDuration.
	DecayDBFS   float64
	HoldBlocks  int
	MinDuration float64
	MaxDuration float64

	BlockSize int
}

// DefaultOptions renders A4 at full velocity for two seconds, releasing
// after one.
func DefaultOptions() Options {
	return Options{
		Note:         69,
		Velocity:     1,
		Duration:     2,
		ReleaseAfter: 1,
		DecayDBFS:    math.Inf(-1),
		HoldBlocks:   6,
		MinDuration:  0.5,
		MaxDuration:  20,
		BlockSize:    DefaultBlockSize,
	}
}

// AutoStop reports whether the decay threshold is active.
func (o Options) AutoStop() bool {
	return !math.IsInf(o.DecayDBFS, 0) && !math.IsNaN(o.DecayDBFS)
}

// Note plays one note through e and returns the mono output.
func Note(e *synth.Engine, opts Options) ([]float32, error) {
	sr := e.SampleRate()
	blockSize := opts.BlockSize
	if blockSize < 16 {
		blockSize = DefaultBlockSize
	}
	holdBlocks := max(opts.HoldBlocks, 1)

	minFrames := 0
	maxFrames := int(sr * opts.Duration)
	if opts.AutoStop() {
		minDur := math.Max(opts.MinDuration, 0)
		maxDur := math.Max(opts.MaxDuration, minDur)
		minFrames = int(sr * minDur)
		maxFrames = int(sr * maxDur)
	}
	if maxFrames < 1 {
		return nil, ErrDuration
	}
	releaseAt := -1
	if opts.ReleaseAfter >= 0 {
		releaseAt = int(sr * opts.ReleaseAfter)
	}
	threshold := math.Pow(10, opts.DecayDBFS/20)

	out := make([]float32, 0, maxFrames)
	block := make([]float32, blockSize)
	e.NoteOn(opts.Note, opts.Velocity)
	released := false
	below := 0
	rendered := 0
	for rendered < maxFrames {
		n := min(blockSize, maxFrames-rendered)
		if !released && releaseAt >= 0 && rendered+n > releaseAt {
			// Split the block so the note-off lands on its exact frame.
			off := max(releaseAt-rendered, 0)
			e.Process(block[:n], []synth.Event{synth.NoteOff(opts.Note).At(off)})
			released = true
		} else {
			e.RenderBlock(block, n)
		}
		out = append(out, block[:n]...)
		rendered += n

		if opts.AutoStop() && rendered >= minFrames {
			if analysis.RMS(block[:n]) < threshold {
				below++
				if below >= holdBlocks {
					break
				}
			} else {
				below = 0
			}
		}
	}
	return out, nil
}
