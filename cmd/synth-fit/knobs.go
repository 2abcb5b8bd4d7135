package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cwbudde/algo-synth/dsp"
	"github.com/cwbudde/algo-synth/internal/fitcommon"
	"github.com/cwbudde/algo-synth/synth"
)

// Knob names are parameter names, so a candidate applies directly to the
// engine's parameter cells.
var knobGroups = map[string][]fitcommon.Knob{
	"envelope": {
		{Name: "attack", Min: 0.0005, Max: 2, Log: true},
		{Name: "decay", Min: 0.005, Max: 5, Log: true},
		{Name: "sustain", Min: 0, Max: 1},
		{Name: "release", Min: 0.005, Max: 5, Log: true},
	},
	"filter": {
		{Name: "filter_cutoff", Min: 20, Max: 20000, Log: true},
		{Name: "filter_resonance", Min: 0.5, Max: 20, Log: true},
	},
	"gain": {
		{Name: "master_gain", Min: 0.01, Max: 1, Log: true},
	},
	"fm": {
		{Name: "fm_carrier_ratio", Min: 0.5, Max: 2},
		{Name: "fm_modulator_ratio", Min: 0.5, Max: 8, Log: true},
		{Name: "fm_mod_index", Min: 0, Max: 10},
	},
	"wavetable": {
		{Name: "wavetable_harmonics", Min: 1, Max: 32, IsInt: true},
	},
	"waveform": {
		{Name: "waveform", Min: 0, Max: float64(synth.WaveformCount - 1), IsInt: true},
		{Name: "filter_type", Min: 0, Max: float64(dsp.FilterKindCount - 1), IsInt: true},
	},
}

// groupOrder fixes the dimension order of the search space.
var groupOrder = []string{"waveform", "envelope", "filter", "gain", "fm", "wavetable"}

// parseOptimizeGroups parses a comma-separated list of knob groups.
func parseOptimizeGroups(raw string) (map[string]bool, error) {
	groups := make(map[string]bool)
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := knobGroups[s]; !ok {
			return nil, fmt.Errorf("unknown optimize group %q (valid: %s)", s, validGroups())
		}
		groups[s] = true
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("no optimize groups specified")
	}
	return groups, nil
}

func validGroups() string {
	names := make([]string, 0, len(knobGroups))
	for name := range knobGroups {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// knobTarget binds a knob to the parameter it drives.
type knobTarget struct {
	knob fitcommon.Knob
	id   synth.ParamID
}

// initCandidate returns the active knobs and a candidate holding the base
// parameter values, clamped into each knob's range.
func initCandidate(base *synth.Params, groups map[string]bool) ([]fitcommon.Knob, []synth.ParamID, fitcommon.Candidate) {
	var targets []knobTarget
	for _, g := range groupOrder {
		if !groups[g] {
			continue
		}
		for _, k := range knobGroups[g] {
			id, err := synth.ParseParamID(k.Name)
			if err != nil {
				panic(fmt.Sprintf("knob %q has no parameter: %v", k.Name, err))
			}
			targets = append(targets, knobTarget{knob: k, id: id})
		}
	}

	knobs := make([]fitcommon.Knob, len(targets))
	ids := make([]synth.ParamID, len(targets))
	vals := make([]float64, len(targets))
	for i, t := range targets {
		knobs[i] = t.knob
		ids[i] = t.id
		vals[i] = fitcommon.Clamp(base.Get(t.id), t.knob.Min, t.knob.Max)
	}
	return knobs, ids, fitcommon.Candidate{Vals: vals}
}

// applyCandidate writes the candidate into params.
func applyCandidate(params *synth.Params, ids []synth.ParamID, cand fitcommon.Candidate) {
	for i, id := range ids {
		if i < len(cand.Vals) {
			params.Set(id, cand.Vals[i])
		}
	}
}

// applyToConfig copies the candidate into a construction config so it can
// be saved as a patch.
func applyToConfig(cfg *synth.Config, ids []synth.ParamID, cand fitcommon.Candidate) {
	p := synth.NewParams(*cfg)
	applyCandidate(p, ids, cand)
	s := p.Snapshot()
	cfg.Waveform = s.Waveform
	cfg.Attack = float32(s.Attack)
	cfg.Decay = float32(s.Decay)
	cfg.Sustain = float32(s.Sustain)
	cfg.Release = float32(s.Release)
	cfg.FilterType = s.FilterKind
	cfg.FilterCutoff = float32(s.Cutoff)
	cfg.FilterResonance = float32(s.Resonance)
	cfg.FM = s.FM
	cfg.WavetableHarmonics = s.Harmonics
	cfg.MasterGain = float32(s.MasterGain)
	cfg.PitchBendRange = float32(s.BendRange)
}
