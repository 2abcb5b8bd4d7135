package synth

import (
	"math"

	"github.com/cwbudde/algo-synth/dsp"
)

// gainSmoothing is the time constant of the master gain smoother.
const gainSmoothing = 0.01

// Engine renders the voice pool into caller-provided buffers. Render and
// event methods must be called from a single goroutine, the audio thread.
// Other goroutines talk to it through Params and Queue.
type Engine struct {
	cfg        Config
	sampleRate float64

	params *Params
	queue  *EventQueue
	pool   *Pool
	bank   *WavetableBank

	voiceFilters []*dsp.Biquad
	master       *dsp.Biquad
	gain         dsp.Smoother

	snap   ParamSnapshot
	serial uint64
	bend   float64
}

// New creates an engine with its own parameter set.
func New(cfg Config) (*Engine, error) {
	return NewWithParams(cfg, nil)
}

// NewWithParams creates an engine reading from params, which may be shared
// with a control thread. A nil params is created from cfg.
func NewWithParams(cfg Config, params *Params) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = DefaultConfig().QueueCapacity
	}
	if params == nil {
		params = NewParams(cfg)
	}
	sr := cfg.SampleRate

	bank, err := NewWavetableBank(cfg.WavetableSize)
	if err != nil {
		return nil, err
	}
	queue, err := NewEventQueue(cfg.QueueCapacity)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		sampleRate: sr,
		params:     params,
		queue:      queue,
		bank:       bank,
	}

	voices := make([]*Voice, cfg.VoiceCount)
	for i := range voices {
		osc, err := NewOscillator(sr, 0)
		if err != nil {
			return nil, err
		}
		env, err := NewEnvelope(sr, float64(cfg.Attack), float64(cfg.Decay), float64(cfg.Sustain), float64(cfg.Release))
		if err != nil {
			return nil, err
		}
		env.SetRetrigger(cfg.Retrigger)
		v := NewVoice(osc, env)
		v.SetFreeRunPhase(cfg.FreeRunPhase)
		if cfg.FilterRouting == RouteVoice {
			f, err := dsp.NewBiquad(sr, cfg.FilterType, float64(cfg.FilterCutoff), float64(cfg.FilterResonance))
			if err != nil {
				return nil, err
			}
			v.SetFilter(f)
			e.voiceFilters = append(e.voiceFilters, f)
		}
		voices[i] = v
	}
	pool, err := NewPool(voices)
	if err != nil {
		return nil, err
	}
	pool.SetStealFade(int(float64(cfg.StealFade) * sr))
	e.pool = pool

	if cfg.FilterRouting == RouteMaster {
		e.master, err = dsp.NewBiquad(sr, cfg.FilterType, float64(cfg.FilterCutoff), float64(cfg.FilterResonance))
		if err != nil {
			return nil, err
		}
	}

	e.syncParams(true)
	e.gain = dsp.NewSmoother(e.snap.MasterGain, gainSmoothing, sr)
	return e, nil
}

func (e *Engine) Config() Config                 { return e.cfg }
func (e *Engine) SampleRate() float64            { return e.sampleRate }
func (e *Engine) Params() *Params                { return e.params }
func (e *Engine) Pool() *Pool                    { return e.pool }
func (e *Engine) Wavetables() *WavetableBank     { return e.bank }

// Queue is the lock-free inbox drained at the start of every RenderBlock.
// A single producer goroutine may push into it.
func (e *Engine) Queue() *EventQueue { return e.queue }

// ActiveVoices returns the number of sounding voices.
func (e *Engine) ActiveVoices() int { return e.pool.ActiveCount() }

// Snapshot returns the parameter values currently applied to the voices.
func (e *Engine) Snapshot() ParamSnapshot { return e.snap }

// HandleEvent applies ev immediately. Out-of-range values are clamped and
// unknown kinds are ignored.
func (e *Engine) HandleEvent(ev Event) {
	switch ev.Kind {
	case EventNoteOn:
		// Zero and NaN velocities are note-offs.
		if !(ev.Velocity > 0) {
			e.pool.NoteOff(ev.Note)
			return
		}
		e.pool.NoteOn(ev.Note, ev.Velocity)
	case EventNoteOff:
		e.pool.NoteOff(ev.Note)
	case EventPitchBend:
		e.bend = 0
		if !math.IsNaN(ev.Value) {
			e.bend = clampf(ev.Value, -1, 1)
		}
		e.applyBend()
	case EventParamChange:
		if ev.Normalized {
			e.params.SetNormalized(ev.Param, ev.Value)
		} else {
			e.params.Set(ev.Param, ev.Value)
		}
		e.syncParams(false)
	case EventSustain:
		e.pool.SetSustain(ev.Value >= 0.5)
	case EventAllNotesOff:
		e.pool.AllNotesOff()
	case EventAllSoundOff:
		e.pool.AllSoundOff()
		e.resetFilters()
	}
}

// NoteOn and NoteOff are shorthands for HandleEvent.
func (e *Engine) NoteOn(note int, velocity float32) { e.HandleEvent(NoteOn(note, velocity)) }
func (e *Engine) NoteOff(note int)                  { e.HandleEvent(NoteOff(note)) }

func (e *Engine) applyBend() {
	e.pool.SetPitchBend(semitonesToRatio(e.bend * e.snap.BendRange))
}

// syncParams pushes changed parameter values into the voices and filters.
func (e *Engine) syncParams(force bool) {
	serial := e.params.Serial()
	if !force && serial == e.serial {
		return
	}
	e.serial = serial
	prevRange := e.snap.BendRange
	s := e.params.Snapshot()
	e.snap = s

	table := e.bank.Table(s.Harmonics)
	for _, v := range e.pool.voices {
		v.osc.SetWaveform(s.Waveform)
		v.osc.SetWavetable(table)
		v.osc.SetFM(s.FM)
		v.env.SetADSR(s.Attack, s.Decay, s.Sustain, s.Release)
	}
	for _, f := range e.voiceFilters {
		f.Set(s.FilterKind, s.Cutoff, s.Resonance)
	}
	if e.master != nil {
		e.master.Set(s.FilterKind, s.Cutoff, s.Resonance)
	}
	e.gain.SetTarget(s.MasterGain)
	if force || s.BendRange != prevRange {
		e.applyBend()
	}
}

func (e *Engine) resetFilters() {
	for _, f := range e.voiceFilters {
		f.Reset()
	}
	if e.master != nil {
		e.master.Reset()
	}
}

func (e *Engine) drainQueue() {
	for {
		ev, ok := e.queue.Pop()
		if !ok {
			return
		}
		e.HandleEvent(ev)
	}
}

// RenderBlock drains the event queue, then renders frames mono samples into
// out. It returns the number of frames written, which is min(frames, len(out)).
// It does not allocate.
func (e *Engine) RenderBlock(out []float32, frames int) int {
	if frames > len(out) {
		frames = len(out)
	}
	if frames < 0 {
		frames = 0
	}
	e.drainQueue()
	e.syncParams(false)
	e.render(out[:frames])
	return frames
}

// Process renders len(out) frames, applying each event at its Offset. Events
// must be sorted by offset; offsets outside the block are clamped into it.
func (e *Engine) Process(out []float32, events []Event) int {
	n := len(out)
	e.drainQueue()
	e.syncParams(false)
	pos := 0
	for i := range events {
		off := events[i].Offset
		if off < pos {
			off = pos
		}
		if off > n {
			off = n
		}
		if off > pos {
			e.render(out[pos:off])
			pos = off
		}
		e.HandleEvent(events[i])
	}
	e.syncParams(false)
	if pos < n {
		e.render(out[pos:n])
	}
	return n
}

func (e *Engine) render(out []float32) {
	for i := range out {
		s := e.pool.Render() * float32(e.gain.Next())
		if e.master != nil {
			s = e.master.Process(s)
		}
		out[i] = s
	}
}

// RenderStereo renders min(len(left), len(right)) frames and duplicates the
// mono signal into both channels.
func (e *Engine) RenderStereo(left, right []float32) int {
	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	n = e.RenderBlock(left, n)
	copy(right[:n], left[:n])
	return n
}

// RenderInterleaved fills buf with len(buf)/channels frames, every channel
// carrying the same signal. It returns the number of frames.
func (e *Engine) RenderInterleaved(buf []float32, channels int) int {
	if channels < 1 {
		return 0
	}
	frames := e.RenderBlock(buf, len(buf)/channels)
	if channels == 1 {
		return frames
	}
	// Expand in place from the back so no sample is overwritten before it is read.
	for i := frames - 1; i >= 0; i-- {
		s := buf[i]
		base := i * channels
		for c := 0; c < channels; c++ {
			buf[base+c] = s
		}
	}
	return frames
}

// Reset silences every voice, clears filter state and drops queued events.
// Rendering resumes from the current parameter values with the pedal up and
// no pitch bend.
func (e *Engine) Reset() {
	for {
		if _, ok := e.queue.Pop(); !ok {
			break
		}
	}
	e.pool.AllSoundOff()
	e.pool.SetSustain(false)
	e.resetFilters()
	e.bend = 0
	e.syncParams(true)
	e.gain.Reset(e.snap.MasterGain)
}
