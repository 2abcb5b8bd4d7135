package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-synth/analysis"
	"github.com/cwbudde/algo-synth/config"
	"github.com/cwbudde/algo-synth/internal/fitcommon"
	"github.com/cwbudde/algo-synth/synth"
)

func TestReportPathFor(t *testing.T) {
	if got := reportPathFor("out/fit.json", ""); got != "out/fit.json.report.json" {
		t.Fatalf("reportPathFor() = %q", got)
	}
	if got := reportPathFor("out/fit.json", "r.json"); got != "r.json" {
		t.Fatalf("reportPathFor() = %q, want explicit path", got)
	}
}

func TestLoadCandidateFromReportBestKnobs(t *testing.T) {
	tmp := t.TempDir()
	reportPath := filepath.Join(tmp, "rep.json")
	if err := os.WriteFile(reportPath, []byte(`{"best_knobs":{"attack":0.1,"release":99}}`), 0o644); err != nil {
		t.Fatalf("write report: %v", err)
	}
	knobs := knobGroups["envelope"]
	fallback := fitcommon.Candidate{Vals: []float64{0.01, 0.1, 0.7, 0.3}}

	got, ok, err := loadCandidateFromReport(reportPath, knobs, fallback)
	if err != nil || !ok {
		t.Fatalf("loadCandidateFromReport() ok=%v err=%v", ok, err)
	}
	want := []float64{0.1, 0.1, 0.7, 5}
	for i := range want {
		if got.Vals[i] != want[i] {
			t.Fatalf("vals[%d] = %g, want %g", i, got.Vals[i], want[i])
		}
	}
}

func TestLoadCandidateFromReportMissingFile(t *testing.T) {
	fallback := fitcommon.Candidate{Vals: []float64{1}}
	got, ok, err := loadCandidateFromReport(filepath.Join(t.TempDir(), "none.json"), knobGroups["gain"], fallback)
	if err != nil || ok {
		t.Fatalf("missing report: ok=%v err=%v", ok, err)
	}
	if got.Vals[0] != 1 {
		t.Fatalf("fallback not returned: %v", got.Vals)
	}
}

func TestWriteOutputsRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	patch := config.Default()
	knobs, ids, _ := initCandidate(synth.NewParams(patch.Synth), map[string]bool{"gain": true})
	best := fitcommon.Candidate{Vals: []float64{0.125}}
	o := outputs{
		base:       patch,
		ids:        ids,
		knobs:      knobs,
		configPath: filepath.Join(tmp, "nested", "fit.json"),
		report:     runReport{Note: 69, Evaluations: 12},
	}
	m := analysis.Metrics{Score: 0.2, Similarity: 0.8}
	if err := writeOutputs(o, best, m, nil); err != nil {
		t.Fatalf("writeOutputs: %v", err)
	}

	loaded, err := config.Load(o.configPath)
	if err != nil {
		t.Fatalf("load fitted config: %v", err)
	}
	if loaded.Synth.MasterGain != 0.125 {
		t.Fatalf("master gain = %g, want 0.125", loaded.Synth.MasterGain)
	}
	if patch.Synth.MasterGain == 0.125 {
		t.Fatal("base patch was mutated")
	}

	b, err := os.ReadFile(o.configPath + ".report.json")
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var rep runReport
	if err := json.Unmarshal(b, &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.BestKnobs["master_gain"] != 0.125 || rep.Evaluations != 12 || rep.BestScore != 0.2 {
		t.Fatalf("unexpected report: %+v", rep)
	}
}
