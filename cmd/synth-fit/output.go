package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/cwbudde/algo-synth/analysis"
	"github.com/cwbudde/algo-synth/config"
	"github.com/cwbudde/algo-synth/internal/fitcommon"
	"github.com/cwbudde/algo-synth/synth"
)

type runReport struct {
	ReferencePath   string             `json:"reference_path"`
	ConfigPath      string             `json:"config_path,omitempty"`
	OutputConfig    string             `json:"output_config"`
	SampleRate      int                `json:"sample_rate"`
	Note            int                `json:"note"`
	Velocity        int                `json:"velocity"`
	ReleaseAfterSec float64            `json:"release_after_seconds"`
	DurationSec     float64            `json:"elapsed_seconds"`
	Evaluations     int                `json:"evaluations"`
	MayflyVariant   string             `json:"mayfly_variant"`
	BestScore       float64            `json:"best_score"`
	BestSimilarity  float64            `json:"best_similarity"`
	BestMetrics     analysis.Metrics   `json:"best_metrics"`
	BestKnobs       map[string]float64 `json:"best_knobs"`
	CheckpointCount int                `json:"checkpoint_count"`
	TopCandidates   []fitcommon.Ranked `json:"top_candidates,omitempty"`
}

// outputs names where a fit is persisted.
type outputs struct {
	base       *config.Patch
	ids        []synth.ParamID
	knobs      []fitcommon.Knob
	configPath string
	reportPath string
	report     runReport
}

func reportPathFor(outputConfig, reportPath string) string {
	if reportPath != "" {
		return reportPath
	}
	return outputConfig + ".report.json"
}

// writeOutputs saves the best candidate as a patch file next to its report.
func writeOutputs(o outputs, best fitcommon.Candidate, m analysis.Metrics, top []fitcommon.Ranked) error {
	patch := *o.base
	applyToConfig(&patch.Synth, o.ids, best)
	if err := config.Save(o.configPath, &patch); err != nil {
		return err
	}

	rep := o.report
	rep.OutputConfig = o.configPath
	rep.BestScore = m.Score
	rep.BestSimilarity = m.Similarity
	rep.BestMetrics = m
	rep.BestKnobs = best.Map(o.knobs)
	rep.TopCandidates = top
	return fitcommon.WriteJSON(reportPathFor(o.configPath, o.reportPath), rep)
}

// loadCandidateFromReport resumes from the best_knobs of an earlier run.
// A missing report is not an error.
func loadCandidateFromReport(path string, knobs []fitcommon.Knob, fallback fitcommon.Candidate) (fitcommon.Candidate, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fallback, false, nil
		}
		return fallback, false, err
	}
	var rep struct {
		BestKnobs map[string]float64 `json:"best_knobs"`
	}
	if err := json.Unmarshal(b, &rep); err != nil {
		return fallback, false, err
	}
	if len(rep.BestKnobs) == 0 {
		return fallback, false, nil
	}
	cand, ok := fitcommon.CandidateFromMap(rep.BestKnobs, knobs, fallback)
	if !ok {
		return fallback, false, nil
	}
	return cand, true, nil
}
