// Package config loads synth patches from JSON or YAML files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-synth/dsp"
	"github.com/cwbudde/algo-synth/midi"
	"github.com/cwbudde/algo-synth/synth"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for file extensions other than .json, .yaml
// and .yml.
var ErrUnknownFormat = errors.New("config: unknown file format")

// Format is a supported file encoding.
type Format int

const (
	JSON Format = iota
	YAML
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	}
	return JSON, fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
}

// File is the on-disk patch schema. Every field is optional; absent fields
// keep their default.
type File struct {
	SampleRate         *float64          `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
	VoiceCount         *int              `json:"voice_count,omitempty" yaml:"voice_count,omitempty"`
	Waveform           string            `json:"waveform,omitempty" yaml:"waveform,omitempty"`
	FilterType         string            `json:"filter_type,omitempty" yaml:"filter_type,omitempty"`
	Attack             *float32          `json:"attack,omitempty" yaml:"attack,omitempty"`
	Decay              *float32          `json:"decay,omitempty" yaml:"decay,omitempty"`
	Sustain            *float32          `json:"sustain,omitempty" yaml:"sustain,omitempty"`
	Release            *float32          `json:"release,omitempty" yaml:"release,omitempty"`
	FilterCutoff       *float32          `json:"filter_cutoff,omitempty" yaml:"filter_cutoff,omitempty"`
	FilterResonance    *float32          `json:"filter_resonance,omitempty" yaml:"filter_resonance,omitempty"`
	MasterGain         *float32          `json:"master_gain,omitempty" yaml:"master_gain,omitempty"`
	PitchBendRange     *float32          `json:"pitch_bend_range,omitempty" yaml:"pitch_bend_range,omitempty"`
	FM                 *FMSetting        `json:"fm,omitempty" yaml:"fm,omitempty"`
	WavetableSize      *int              `json:"wavetable_size,omitempty" yaml:"wavetable_size,omitempty"`
	WavetableHarmonics *int              `json:"wavetable_harmonics,omitempty" yaml:"wavetable_harmonics,omitempty"`
	FilterRouting      string            `json:"filter_routing,omitempty" yaml:"filter_routing,omitempty"`
	Retrigger          string            `json:"retrigger,omitempty" yaml:"retrigger,omitempty"`
	StealFade          *float32          `json:"steal_fade,omitempty" yaml:"steal_fade,omitempty"`
	FreeRunPhase       *bool             `json:"free_run_phase,omitempty" yaml:"free_run_phase,omitempty"`
	QueueCapacity      *int              `json:"queue_capacity,omitempty" yaml:"queue_capacity,omitempty"`
	MIDIChannel        *int              `json:"midi_channel,omitempty" yaml:"midi_channel,omitempty"`
	CCMap              map[string]string `json:"cc_map,omitempty" yaml:"cc_map,omitempty"`
	IRWavPath          string            `json:"ir_wav_path,omitempty" yaml:"ir_wav_path,omitempty"`
}

// FMSetting is a partial FM operator override.
type FMSetting struct {
	CarrierRatio   *float64 `json:"carrier_ratio,omitempty" yaml:"carrier_ratio,omitempty"`
	ModulatorRatio *float64 `json:"modulator_ratio,omitempty" yaml:"modulator_ratio,omitempty"`
	Index          *float64 `json:"index,omitempty" yaml:"index,omitempty"`
}

// Patch is a loaded configuration: the engine record plus the MIDI routing
// and the optional impulse response used by the tools.
type Patch struct {
	Synth       synth.Config
	MIDIChannel int
	CCMap       map[int]synth.ParamID
	IRWavPath   string
}

// Default returns the stock patch.
func Default() *Patch {
	return &Patch{Synth: synth.DefaultConfig(), MIDIChannel: midi.Omni}
}

// Load reads a patch file and applies it on top of Default.
func Load(path string) (*Patch, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Decode(b, format)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	p := Default()
	if err := ApplyFile(p, f); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if p.IRWavPath != "" && !filepath.IsAbs(p.IRWavPath) {
		base := filepath.Dir(path)
		p.IRWavPath = filepath.Clean(filepath.Join(base, p.IRWavPath))
	}
	return p, nil
}

// LoadOrDefault is Load for a non-empty path and Default otherwise.
func LoadOrDefault(path string) (*Patch, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Decode parses raw file contents.
func Decode(b []byte, format Format) (*File, error) {
	var f File
	switch format {
	case JSON:
		if err := json.Unmarshal(b, &f); err != nil {
			return nil, err
		}
	case YAML:
		if err := yaml.Unmarshal(b, &f); err != nil {
			return nil, err
		}
	default:
		return nil, ErrUnknownFormat
	}
	return &f, nil
}

// ApplyFile applies a parsed file onto dst and validates the result.
func ApplyFile(dst *Patch, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination patch")
	}
	if f == nil {
		return nil
	}
	c := &dst.Synth

	if f.SampleRate != nil {
		c.SampleRate = *f.SampleRate
	}
	if f.VoiceCount != nil {
		c.VoiceCount = *f.VoiceCount
	}
	if f.Waveform != "" {
		w, err := synth.ParseWaveform(f.Waveform)
		if err != nil {
			return err
		}
		c.Waveform = w
	}
	if f.FilterType != "" {
		k, err := dsp.ParseFilterKind(f.FilterType)
		if err != nil {
			return err
		}
		c.FilterType = k
	}
	setF32(&c.Attack, f.Attack)
	setF32(&c.Decay, f.Decay)
	setF32(&c.Sustain, f.Sustain)
	setF32(&c.Release, f.Release)
	setF32(&c.FilterCutoff, f.FilterCutoff)
	setF32(&c.FilterResonance, f.FilterResonance)
	setF32(&c.MasterGain, f.MasterGain)
	setF32(&c.PitchBendRange, f.PitchBendRange)
	setF32(&c.StealFade, f.StealFade)
	if f.FM != nil {
		if f.FM.CarrierRatio != nil {
			c.FM.CarrierRatio = *f.FM.CarrierRatio
		}
		if f.FM.ModulatorRatio != nil {
			c.FM.ModulatorRatio = *f.FM.ModulatorRatio
		}
		if f.FM.Index != nil {
			c.FM.Index = *f.FM.Index
		}
	}
	if f.WavetableSize != nil {
		c.WavetableSize = *f.WavetableSize
	}
	if f.WavetableHarmonics != nil {
		c.WavetableHarmonics = *f.WavetableHarmonics
	}
	if f.FilterRouting != "" {
		r, err := synth.ParseFilterRouting(strings.ToLower(strings.TrimSpace(f.FilterRouting)))
		if err != nil {
			return err
		}
		c.FilterRouting = r
	}
	if f.Retrigger != "" {
		switch strings.ToLower(strings.TrimSpace(f.Retrigger)) {
		case "zero":
			c.Retrigger = synth.RetriggerFromZero
		case "level":
			c.Retrigger = synth.RetriggerFromLevel
		default:
			return fmt.Errorf("retrigger must be \"zero\" or \"level\", got %q", f.Retrigger)
		}
	}
	if f.FreeRunPhase != nil {
		c.FreeRunPhase = *f.FreeRunPhase
	}
	if f.QueueCapacity != nil {
		c.QueueCapacity = *f.QueueCapacity
	}
	if f.MIDIChannel != nil {
		ch := *f.MIDIChannel
		if ch != midi.Omni && (ch < 0 || ch > 15) {
			return fmt.Errorf("midi_channel must be -1 or 0..15")
		}
		dst.MIDIChannel = ch
	}
	if f.IRWavPath != "" {
		dst.IRWavPath = strings.TrimSpace(f.IRWavPath)
	}
	if err := applyCCMap(dst, f.CCMap); err != nil {
		return err
	}
	return c.Validate()
}

func applyCCMap(dst *Patch, m map[string]string) error {
	if len(m) == 0 {
		return nil
	}
	if dst.CCMap == nil {
		dst.CCMap = make(map[int]synth.ParamID)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cc, err := strconv.Atoi(k)
		if err != nil || cc < 0 || cc > 127 {
			return fmt.Errorf("invalid cc_map key %q (expected 0..127)", k)
		}
		id, err := synth.ParseParamID(m[k])
		if err != nil {
			return fmt.Errorf("cc_map[%d]: %w", cc, err)
		}
		dst.CCMap[cc] = id
	}
	return nil
}

func setF32(dst *float32, v *float32) {
	if v != nil {
		*dst = *v
	}
}

// Router builds a MIDI router with the patch channel and controller map on
// top of the default mappings.
func (p *Patch) Router() (*midi.Router, error) {
	r := midi.NewRouter()
	if err := r.SetChannel(p.MIDIChannel); err != nil {
		return nil, err
	}
	for cc, id := range p.CCMap {
		r.MapCC(byte(cc), id)
	}
	return r, nil
}

// ToFile converts p into a fully populated File.
func ToFile(p *Patch) *File {
	c := p.Synth
	f := &File{
		SampleRate:         &c.SampleRate,
		VoiceCount:         &c.VoiceCount,
		Waveform:           c.Waveform.String(),
		FilterType:         c.FilterType.String(),
		Attack:             &c.Attack,
		Decay:              &c.Decay,
		Sustain:            &c.Sustain,
		Release:            &c.Release,
		FilterCutoff:       &c.FilterCutoff,
		FilterResonance:    &c.FilterResonance,
		MasterGain:         &c.MasterGain,
		PitchBendRange:     &c.PitchBendRange,
		FM:                 &FMSetting{CarrierRatio: &c.FM.CarrierRatio, ModulatorRatio: &c.FM.ModulatorRatio, Index: &c.FM.Index},
		WavetableSize:      &c.WavetableSize,
		WavetableHarmonics: &c.WavetableHarmonics,
		FilterRouting:      c.FilterRouting.String(),
		Retrigger:          "zero",
		StealFade:          &c.StealFade,
		FreeRunPhase:       &c.FreeRunPhase,
		QueueCapacity:      &c.QueueCapacity,
		IRWavPath:          p.IRWavPath,
	}
	if c.Retrigger == synth.RetriggerFromLevel {
		f.Retrigger = "level"
	}
	ch := p.MIDIChannel
	f.MIDIChannel = &ch
	if len(p.CCMap) > 0 {
		f.CCMap = make(map[string]string, len(p.CCMap))
		for cc, id := range p.CCMap {
			f.CCMap[strconv.Itoa(cc)] = id.Name()
		}
	}
	return f
}

// Save writes p to path in the format given by its extension.
func Save(path string, p *Patch) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	f := ToFile(p)
	var b []byte
	switch format {
	case YAML:
		b, err = yaml.Marshal(f)
	default:
		b, err = json.MarshalIndent(f, "", "  ")
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
