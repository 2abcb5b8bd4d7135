package main

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-synth/dsp"
	"github.com/cwbudde/algo-synth/internal/fitcommon"
	"github.com/cwbudde/algo-synth/synth"
)

func TestParseOptimizeGroups(t *testing.T) {
	tests := []struct {
		raw     string
		want    []string
		wantErr bool
	}{
		{raw: "envelope", want: []string{"envelope"}},
		{raw: "envelope, filter,GAIN", want: []string{"envelope", "filter", "gain"}},
		{raw: "fm,wavetable,waveform", want: []string{"fm", "wavetable", "waveform"}},
		{raw: "", wantErr: true},
		{raw: " , ", wantErr: true},
		{raw: "envelope,body-ir", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseOptimizeGroups(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseOptimizeGroups(%q) expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseOptimizeGroups(%q) unexpected error: %v", tt.raw, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("parseOptimizeGroups(%q) = %v, want %v", tt.raw, got, tt.want)
		}
		for _, g := range tt.want {
			if !got[g] {
				t.Fatalf("parseOptimizeGroups(%q) missing %q", tt.raw, g)
			}
		}
	}
}

func TestEveryKnobNamesAParameter(t *testing.T) {
	for group, knobs := range knobGroups {
		for _, k := range knobs {
			id, err := synth.ParseParamID(k.Name)
			if err != nil {
				t.Fatalf("group %s knob %s: %v", group, k.Name, err)
			}
			lo, hi := id.Range()
			if k.Min < lo || k.Max > hi {
				t.Fatalf("knob %s range [%g,%g] exceeds parameter range [%g,%g]", k.Name, k.Min, k.Max, lo, hi)
			}
		}
	}
}

func TestInitCandidateOrderAndValues(t *testing.T) {
	cfg := synth.DefaultConfig()
	cfg.Attack = 0.25
	cfg.FilterCutoff = 5000
	groups := map[string]bool{"filter": true, "envelope": true}

	knobs, ids, cand := initCandidate(synth.NewParams(cfg), groups)
	if len(knobs) != 6 || len(ids) != 6 || len(cand.Vals) != 6 {
		t.Fatalf("got %d knobs, %d ids, %d vals, want 6 each", len(knobs), len(ids), len(cand.Vals))
	}
	if knobs[0].Name != "attack" || ids[0] != synth.ParamAttack {
		t.Fatalf("first knob = %s (%v), want attack", knobs[0].Name, ids[0])
	}
	if knobs[4].Name != "filter_cutoff" {
		t.Fatalf("knob 4 = %s, want filter_cutoff", knobs[4].Name)
	}
	if math.Abs(cand.Vals[0]-0.25) > 1e-6 {
		t.Fatalf("attack = %g, want 0.25", cand.Vals[0])
	}
	if math.Abs(cand.Vals[4]-5000) > 1e-3 {
		t.Fatalf("cutoff = %g, want 5000", cand.Vals[4])
	}
}

func TestInitCandidateClampsIntoKnobRange(t *testing.T) {
	cfg := synth.DefaultConfig()
	cfg.Attack = 0
	_, _, cand := initCandidate(synth.NewParams(cfg), map[string]bool{"envelope": true})
	if cand.Vals[0] != 0.0005 {
		t.Fatalf("attack = %g, want knob minimum 0.0005", cand.Vals[0])
	}
}

func TestApplyToConfig(t *testing.T) {
	cfg := synth.DefaultConfig()
	groups := map[string]bool{"envelope": true, "filter": true, "gain": true, "waveform": true}
	knobs, ids, _ := initCandidate(synth.NewParams(cfg), groups)

	vals := map[string]float64{
		"waveform": 2, "filter_type": 1,
		"attack": 0.02, "decay": 0.4, "sustain": 0.5, "release": 1.5,
		"filter_cutoff": 1200, "filter_resonance": 2, "master_gain": 0.25,
	}
	cand, ok := fitcommon.CandidateFromMap(vals, knobs, fitcommon.Candidate{})
	if !ok {
		t.Fatal("CandidateFromMap found no knobs")
	}
	applyToConfig(&cfg, ids, cand)

	if cfg.Waveform != synth.WaveSaw {
		t.Fatalf("waveform = %v, want saw", cfg.Waveform)
	}
	if cfg.FilterType != dsp.HighPass {
		t.Fatalf("filter type = %v, want high pass", cfg.FilterType)
	}
	if math.Abs(float64(cfg.Release)-1.5) > 1e-6 || math.Abs(float64(cfg.FilterCutoff)-1200) > 1e-3 {
		t.Fatalf("release=%g cutoff=%g", cfg.Release, cfg.FilterCutoff)
	}
	if math.Abs(float64(cfg.MasterGain)-0.25) > 1e-6 {
		t.Fatalf("master gain = %g, want 0.25", cfg.MasterGain)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("fitted config invalid: %v", err)
	}
}
