package config

import (
	"errors"
	"maps"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-synth/dsp"
	"github.com/cwbudde/algo-synth/midi"
	"github.com/cwbudde/algo-synth/synth"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func mustLoad(t *testing.T, path string) *Patch {
	t.Helper()
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%s) = %v", path, err)
	}
	return p
}

func TestLoadJSONAppliesOverrides(t *testing.T) {
	path := writeFile(t, "patch.json", `{
  "voice_count": 8,
  "waveform": "saw",
  "filter_type": "highpass",
  "attack": 0.05,
  "sustain": 0.4,
  "filter_cutoff": 1200,
  "fm": {"index": 5},
  "steal_fade": 0.005,
  "retrigger": "level",
  "ir_wav_path": "room.wav",
  "cc_map": {"20": "attack", "21": "release"}
}`)
	p := mustLoad(t, path)

	want := synth.DefaultConfig()
	want.VoiceCount = 8
	want.Waveform = synth.WaveSaw
	want.FilterType = dsp.HighPass
	want.Attack = 0.05
	want.Sustain = 0.4
	want.FilterCutoff = 1200
	want.FM.Index = 5
	want.StealFade = 0.005
	want.Retrigger = synth.RetriggerFromLevel
	// Everything else keeps its default.
	if p.Synth != want {
		t.Fatalf("Synth = %+v\nwant %+v", p.Synth, want)
	}

	if got, want := p.IRWavPath, filepath.Join(filepath.Dir(path), "room.wav"); got != want {
		t.Fatalf("IRWavPath = %q, want %q", got, want)
	}
	wantCC := map[int]synth.ParamID{20: synth.ParamAttack, 21: synth.ParamRelease}
	if !maps.Equal(p.CCMap, wantCC) {
		t.Fatalf("CCMap = %v, want %v", p.CCMap, wantCC)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "patch.yaml", `
sample_rate: 44100
waveform: fm
filter_routing: voice
midi_channel: 3
fm:
  carrier_ratio: 1.5
  modulator_ratio: 3
`)
	p := mustLoad(t, path)
	c := p.Synth
	if c.SampleRate != 44100 || c.Waveform != synth.WaveFM || c.FilterRouting != synth.RouteVoice {
		t.Fatalf("sample_rate=%v waveform=%v routing=%v", c.SampleRate, c.Waveform, c.FilterRouting)
	}
	wantFM := synth.FMParams{CarrierRatio: 1.5, ModulatorRatio: 3, Index: 3}
	if c.FM != wantFM {
		t.Fatalf("FM = %+v, want %+v", c.FM, wantFM)
	}

	r, err := p.Router()
	if err != nil {
		t.Fatalf("Router() = %v", err)
	}
	if r.Channel() != 3 {
		t.Fatalf("Channel() = %d, want 3", r.Channel())
	}
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad.json", `{"attack": -1}`},
		{"bad.json", `{"attack": 7}`},
		{"bad.json", `{"sustain": 2}`},
		{"bad.json", `{"voice_count": 0}`},
		{"bad.json", `{"waveform": "noise"}`},
		{"bad.json", `{"retrigger": "sometimes"}`},
		{"bad.json", `{"filter_cutoff": 10}`},
		{"bad.json", `{"master_gain": 2}`},
		{"bad.json", `{"fm": {"modulator_ratio": 12}}`},
		{"bad.json", `{"cc_map": {"x": "attack"}}`},
		{"bad.json", `{"cc_map": {"20": "detune"}}`},
		{"bad.json", `{"midi_channel": 16}`},
		{"bad.json", `{"attack": "slow"}`},
		{"bad.yaml", "attack: [1, 2]"},
		{"bad.yaml", "release: 8\n"},
	}
	for _, tt := range tests {
		path := writeFile(t, tt.name, tt.content)
		if _, err := Load(path); err == nil {
			t.Fatalf("Load(%s) accepted %s", tt.name, tt.content)
		}
	}

	if _, err := Load(writeFile(t, "patch.toml", "")); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("toml: err = %v, want %v", err, ErrUnknownFormat)
	}
	if _, err := Load(writeFile(t, "neg.json", `{"attack": -1}`)); !errors.Is(err, synth.ErrInvalidEnvelope) {
		t.Fatalf("negative attack: err = %v, want %v", err, synth.ErrInvalidEnvelope)
	}
	if _, err := Load(writeFile(t, "gain.json", `{"master_gain": 2}`)); !errors.Is(err, synth.ErrInvalidConfig) {
		t.Fatalf("loud gain: err = %v, want %v", err, synth.ErrInvalidConfig)
	}
}

func TestSaveAndLoadAgree(t *testing.T) {
	p := Default()
	p.Synth.Waveform = synth.WaveTable
	p.Synth.WavetableHarmonics = 7
	p.Synth.Release = 1.25
	p.Synth.Retrigger = synth.RetriggerFromLevel
	p.MIDIChannel = 9
	p.CCMap = map[int]synth.ParamID{30: synth.ParamDecay}

	for _, name := range []string{"out.json", "out.yml"} {
		path := filepath.Join(t.TempDir(), name)
		if err := Save(path, p); err != nil {
			t.Fatalf("Save(%s) = %v", name, err)
		}
		got := mustLoad(t, path)
		if got.Synth != p.Synth {
			t.Fatalf("%s: Synth = %+v\nwant %+v", name, got.Synth, p.Synth)
		}
		if got.MIDIChannel != p.MIDIChannel || !maps.Equal(got.CCMap, p.CCMap) {
			t.Fatalf("%s: channel=%d cc=%v, want %d %v", name, got.MIDIChannel, got.CCMap, p.MIDIChannel, p.CCMap)
		}
	}
}

func TestDefaultPatchIsOmni(t *testing.T) {
	p := Default()
	if p.MIDIChannel != midi.Omni {
		t.Fatalf("MIDIChannel = %d, want omni", p.MIDIChannel)
	}
	if err := p.Synth.Validate(); err != nil {
		t.Fatalf("default patch invalid: %v", err)
	}
}

func TestLoadOrDefault(t *testing.T) {
	p, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault(\"\") = %v", err)
	}
	if p.Synth != synth.DefaultConfig() {
		t.Fatalf("empty path did not yield the default patch")
	}

	path := writeFile(t, "patch.yaml", "voice_count: 4\n")
	if p, err = LoadOrDefault(path); err != nil {
		t.Fatalf("LoadOrDefault(%s) = %v", path, err)
	}
	if p.Synth.VoiceCount != 4 {
		t.Fatalf("VoiceCount = %d, want 4", p.Synth.VoiceCount)
	}
}
