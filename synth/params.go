package synth

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"github.com/cwbudde/algo-synth/dsp"
)

// ParamID identifies an automatable parameter.
type ParamID int

const (
	ParamWaveform ParamID = iota
	ParamAttack
	ParamDecay
	ParamSustain
	ParamRelease
	ParamFilterType
	ParamFilterCutoff
	ParamFilterResonance
	ParamFMCarrierRatio
	ParamFMModulatorRatio
	ParamFMModIndex
	ParamWavetableHarmonics
	ParamMasterGain
	ParamPitchBendRange

	ParamCount
)

type mapping struct {
	toPlain func(norm float64) float64
	toNorm  func(plain float64) float64
}

type paramSpec struct {
	name     string
	label    string
	min, max float64
	mapping
	format func(plain float64) string
}

func linear(lo, hi float64) mapping {
	return mapping{
		toPlain: func(v float64) float64 { return lo + (hi-lo)*v },
		toNorm:  func(p float64) float64 { return (p - lo) / (hi - lo) },
	}
}

// exponential maps 0..1 onto lo..lo*ratio with equal steps per octave.
func exponential(lo, ratio float64) mapping {
	return mapping{
		toPlain: func(v float64) float64 { return lo * math.Pow(ratio, v) },
		toNorm:  func(p float64) float64 { return math.Log(p/lo) / math.Log(ratio) },
	}
}

func stepped(count int) mapping {
	return mapping{
		toPlain: func(v float64) float64 { return math.Min(math.Floor(v*float64(count)), float64(count-1)) },
		toNorm:  func(p float64) float64 { return (p + 0.5) / float64(count) },
	}
}

func rounded(lo, hi float64) mapping {
	m := linear(lo, hi)
	to := m.toPlain
	m.toPlain = func(v float64) float64 { return math.Round(to(v)) }
	return m
}

func seconds(p float64) string {
	if p < 0.1 {
		return fmt.Sprintf("%.0f ms", p*1000)
	}
	return fmt.Sprintf("%.2f s", p)
}

func percent(p float64) string { return fmt.Sprintf("%.0f%%", p*100) }

func hertz(p float64) string {
	if p >= 1000 {
		return fmt.Sprintf("%.1f kHz", p/1000)
	}
	return fmt.Sprintf("%.0f Hz", p)
}

func ratio(p float64) string { return fmt.Sprintf("%.2fx", p) }

func decibels(p float64) string {
	if p <= 0 {
		return "-inf dB"
	}
	return fmt.Sprintf("%.1f dB", dsp.LinearToDB(p))
}

var filterLabels = [dsp.FilterKindCount]string{"Low Pass", "High Pass", "Band Pass"}

var paramSpecs = [ParamCount]paramSpec{
	ParamWaveform: {"waveform", "Waveform", 0, WaveformCount - 1, stepped(WaveformCount),
		func(p float64) string { return waveformLabels[int(p)] }},
	ParamAttack:  {"attack", "Attack", 0, 5, linear(0, 5), seconds},
	ParamDecay:   {"decay", "Decay", 0, 5, linear(0, 5), seconds},
	ParamSustain: {"sustain", "Sustain", 0, 1, linear(0, 1), percent},
	ParamRelease: {"release", "Release", 0, 5, linear(0, 5), seconds},
	ParamFilterType: {"filter_type", "Filter Type", 0, dsp.FilterKindCount - 1, stepped(dsp.FilterKindCount),
		func(p float64) string { return filterLabels[int(p)] }},
	ParamFilterCutoff: {"filter_cutoff", "Cutoff", 20, 20000, exponential(20, 1000), hertz},
	ParamFilterResonance: {"filter_resonance", "Resonance", 0.5, 20, exponential(0.5, 40),
		func(p float64) string { return fmt.Sprintf("Q %.2f", p) }},
	ParamFMCarrierRatio:   {"fm_carrier_ratio", "FM Carrier", 0.5, 2, linear(0.5, 2), ratio},
	ParamFMModulatorRatio: {"fm_modulator_ratio", "FM Modulator", 0.5, 8, exponential(0.5, 16), ratio},
	ParamFMModIndex: {"fm_mod_index", "FM Index", 0, 10, linear(0, 10),
		func(p float64) string { return fmt.Sprintf("%.1f", p) }},
	ParamWavetableHarmonics: {"wavetable_harmonics", "Harmonics", 1, MaxWavetableHarmonics, rounded(1, MaxWavetableHarmonics),
		func(p float64) string { return fmt.Sprintf("%.0f", p) }},
	ParamMasterGain: {"master_gain", "Master Gain", 0, 1, linear(0, 1), decibels},
	ParamPitchBendRange: {"pitch_bend_range", "Bend Range", 0, 24, rounded(0, 24),
		func(p float64) string { return fmt.Sprintf("%.0f st", p) }},
}

func (id ParamID) valid() bool { return id >= 0 && id < ParamCount }

// Name is the snake_case identifier used in config files and scripts.
func (id ParamID) Name() string {
	if !id.valid() {
		return fmt.Sprintf("param(%d)", int(id))
	}
	return paramSpecs[id].name
}

func (id ParamID) String() string { return id.Name() }

// Label is the human readable parameter title.
func (id ParamID) Label() string {
	if !id.valid() {
		return id.Name()
	}
	return paramSpecs[id].label
}

// Range returns the plain-value bounds of id.
func (id ParamID) Range() (lo, hi float64) {
	if !id.valid() {
		return 0, 0
	}
	return paramSpecs[id].min, paramSpecs[id].max
}

// ParseParamID looks up a parameter by Name.
func ParseParamID(name string) (ParamID, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for id := ParamID(0); id < ParamCount; id++ {
		if paramSpecs[id].name == n {
			return id, nil
		}
	}
	return 0, fmt.Errorf("synth: unknown parameter %q", name)
}

// Param is a single lock-free parameter cell holding a float64.
type Param struct {
	bits atomic.Uint64
}

func (p *Param) Load() float64   { return math.Float64frombits(p.bits.Load()) }
func (p *Param) Store(v float64) { p.bits.Store(math.Float64bits(v)) }

// Params is the parameter set shared between control threads and the audio
// thread. Every cell is independently atomic; Serial changes on every write
// so the audio thread can skip unchanged blocks.
type Params struct {
	cells  [ParamCount]Param
	serial atomic.Uint64
}

// NewParams returns a set initialized from cfg.
func NewParams(cfg Config) *Params {
	p := &Params{}
	p.Load(cfg)
	return p
}

// Load copies the parameter values of cfg into the set.
func (p *Params) Load(cfg Config) {
	vals := cfg.paramValues()
	for id := ParamID(0); id < ParamCount; id++ {
		p.Set(id, vals[id])
	}
}

// paramValues lists the parameter values carried by cfg, indexed by ParamID.
func (c Config) paramValues() [ParamCount]float64 {
	var v [ParamCount]float64
	v[ParamWaveform] = float64(c.Waveform)
	v[ParamAttack] = float64(c.Attack)
	v[ParamDecay] = float64(c.Decay)
	v[ParamSustain] = float64(c.Sustain)
	v[ParamRelease] = float64(c.Release)
	v[ParamFilterType] = float64(c.FilterType)
	v[ParamFilterCutoff] = float64(c.FilterCutoff)
	v[ParamFilterResonance] = float64(c.FilterResonance)
	v[ParamFMCarrierRatio] = c.FM.CarrierRatio
	v[ParamFMModulatorRatio] = c.FM.ModulatorRatio
	v[ParamFMModIndex] = c.FM.Index
	v[ParamWavetableHarmonics] = float64(c.WavetableHarmonics)
	v[ParamMasterGain] = float64(c.MasterGain)
	v[ParamPitchBendRange] = float64(c.PitchBendRange)
	return v
}

// Get returns the plain value of id.
func (p *Params) Get(id ParamID) float64 {
	if !id.valid() {
		return 0
	}
	return p.cells[id].Load()
}

// Set stores a plain value, clamped to the parameter range. NaN and unknown
// ids are ignored.
func (p *Params) Set(id ParamID, plain float64) {
	if !id.valid() || math.IsNaN(plain) {
		return
	}
	s := &paramSpecs[id]
	p.cells[id].Store(clampf(plain, s.min, s.max))
	p.serial.Add(1)
}

// SetNormalized stores a host value in [0,1].
func (p *Params) SetNormalized(id ParamID, norm float64) {
	if !id.valid() || math.IsNaN(norm) {
		return
	}
	p.Set(id, paramSpecs[id].toPlain(clampf(norm, 0, 1)))
}

// Normalized returns the current value of id mapped to [0,1].
func (p *Params) Normalized(id ParamID) float64 {
	if !id.valid() {
		return 0
	}
	return clampf(paramSpecs[id].toNorm(p.Get(id)), 0, 1)
}

// Display formats the current value of id for a UI.
func (p *Params) Display(id ParamID) string {
	if !id.valid() {
		return ""
	}
	return paramSpecs[id].format(p.Get(id))
}

// Serial is incremented by every successful write.
func (p *Params) Serial() uint64 { return p.serial.Load() }

// ParamSnapshot is a typed copy of all parameters, taken once per block.
type ParamSnapshot struct {
	Waveform   Waveform
	Attack     float64
	Decay      float64
	Sustain    float64
	Release    float64
	FilterKind dsp.FilterKind
	Cutoff     float64
	Resonance  float64
	FM         FMParams
	Harmonics  int
	MasterGain float64
	BendRange  float64
}

// Snapshot reads every cell. It does not allocate.
func (p *Params) Snapshot() ParamSnapshot {
	return ParamSnapshot{
		Waveform:   Waveform(int(p.Get(ParamWaveform))),
		Attack:     p.Get(ParamAttack),
		Decay:      p.Get(ParamDecay),
		Sustain:    p.Get(ParamSustain),
		Release:    p.Get(ParamRelease),
		FilterKind: dsp.FilterKind(int(p.Get(ParamFilterType))),
		Cutoff:     p.Get(ParamFilterCutoff),
		Resonance:  p.Get(ParamFilterResonance),
		FM: FMParams{
			CarrierRatio:   p.Get(ParamFMCarrierRatio),
			ModulatorRatio: p.Get(ParamFMModulatorRatio),
			Index:          p.Get(ParamFMModIndex),
		},
		Harmonics:  int(math.Round(p.Get(ParamWavetableHarmonics))),
		MasterGain: p.Get(ParamMasterGain),
		BendRange:  p.Get(ParamPitchBendRange),
	}
}
