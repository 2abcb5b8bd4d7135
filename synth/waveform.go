package synth

import (
	"fmt"
	"strings"
)

// Waveform selects the oscillator shape.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveSquare
	WaveSaw
	WaveTriangle
	WaveTable
	WaveFM
)

// WaveformCount is the number of supported waveforms.
const WaveformCount = 6

var waveformNames = [WaveformCount]string{"sine", "square", "saw", "triangle", "wavetable", "fm"}

var waveformLabels = [WaveformCount]string{"Sine", "Square", "Saw", "Triangle", "Wavetable", "FM"}

func (w Waveform) String() string {
	if w < 0 || w >= WaveformCount {
		return fmt.Sprintf("Waveform(%d)", int(w))
	}
	return waveformNames[w]
}

// Valid reports whether w is one of the known waveforms.
func (w Waveform) Valid() bool {
	return w >= 0 && w < WaveformCount
}

// ParseWaveform maps a name such as "saw" or "wavetable" to a Waveform.
func ParseWaveform(s string) (Waveform, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "sawtooth":
		return WaveSaw, nil
	case "tri":
		return WaveTriangle, nil
	case "table", "wt":
		return WaveTable, nil
	}
	for i, n := range waveformNames {
		if n == name {
			return Waveform(i), nil
		}
	}
	return WaveSine, fmt.Errorf("synth: unknown waveform %q", s)
}
