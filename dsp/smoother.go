package dsp

import "math"

// Smoother is a one-pole lowpass for parameter changes. It reaches ~63% of a
// new target after the configured time.
type Smoother struct {
	value  float64
	target float64
	coeff  float64
}

// NewSmoother creates a smoother resting at initial.
func NewSmoother(initial, seconds, sampleRate float64) Smoother {
	s := Smoother{value: initial, target: initial}
	s.SetTime(seconds, sampleRate)
	return s
}

// SetTime changes the smoothing time. A non-positive time makes the smoother
// jump straight to its target.
func (s *Smoother) SetTime(seconds, sampleRate float64) {
	if seconds <= 0 || sampleRate <= 0 {
		s.coeff = 1
		return
	}
	s.coeff = 1 - math.Exp(-1/(seconds*sampleRate))
}

func (s *Smoother) SetTarget(target float64) { s.target = target }

// Next advances one sample and returns the smoothed value.
func (s *Smoother) Next() float64 {
	s.value += s.coeff * (s.target - s.value)
	if math.Abs(s.target-s.value) < 1e-9 {
		s.value = s.target
	}
	return s.value
}

// Reset jumps to value without smoothing.
func (s *Smoother) Reset(value float64) {
	s.value = value
	s.target = value
}

func (s *Smoother) Value() float64  { return s.value }
func (s *Smoother) Target() float64 { return s.target }
