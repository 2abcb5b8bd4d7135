package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/cwbudde/algo-synth/config"
	"github.com/cwbudde/algo-synth/internal/audioio"
	"github.com/cwbudde/algo-synth/internal/fitcommon"
	"github.com/cwbudde/algo-synth/internal/logging"
	"github.com/cwbudde/algo-synth/internal/render"
	"github.com/cwbudde/algo-synth/synth"
)

func main() {
	referencePath := flag.String("reference", "reference/a4.wav", "Reference WAV path")
	configPath := flag.String("config", "", "Base patch file (JSON or YAML); defaults are used when empty")
	outputConfig := flag.String("output-config", "out/fitted.json", "Path to write the best fitted patch JSON")
	reportPath := flag.String("report", "", "Optional report JSON path (default: <output-config>.report.json)")
	optimize := flag.String("optimize", "envelope,filter,gain", "Comma-separated knob groups to optimize: "+validGroups())
	note := flag.Int("note", 69, "MIDI note to fit")
	velocity := flag.Int("velocity", 100, "MIDI velocity for rendering during fit")
	releaseAfter := flag.Float64("release-after", 1.0, "Seconds before NoteOff for each evaluation render")
	sampleRate := flag.Int("sample-rate", 48000, "Render/analysis sample rate")
	seed := flag.Int64("seed", 1, "Random seed")
	timeBudget := flag.Float64("time-budget", 60.0, "Optimization time budget in seconds")
	maxEvals := flag.Int("max-evals", 5000, "Maximum objective evaluations")
	reportEvery := flag.Int("report-every", 50, "Print progress every N evaluations")
	checkpointEvery := flag.Int("checkpoint-every", 1, "Write checkpoint every N best-score improvements")
	decayDBFS := flag.Float64("decay-dbfs", -90.0, "Auto-stop threshold in dBFS")
	decayHoldBlocks := flag.Int("decay-hold-blocks", 6, "Consecutive below-threshold blocks for stop")
	minDuration := flag.Float64("min-duration", 0.5, "Minimum render duration in seconds")
	maxDuration := flag.Float64("max-duration", 10.0, "Maximum render duration in seconds")
	renderBlockSize := flag.Int("render-block-size", render.DefaultBlockSize, "Audio render block size for candidate evaluation")
	voices := flag.Int("voices", 4, "Voice count of the evaluation engines")
	topK := flag.Int("top-k", 5, "How many top candidates to keep in report")
	resume := flag.Bool("resume", true, "Resume from previous best_knobs report when available")
	resumeReport := flag.String("resume-report", "", "Optional report JSON path to resume from (default: current report path)")
	workers := flag.String("workers", "1", "Parallel optimization workers running independent Mayfly rounds (number or 'auto')")
	writeWAV := flag.String("write-wav", "", "Optional path to write the best candidate's render")
	logLevel := flag.String("log-level", "info", "Log level: "+logging.Levels)

	mayflyVariant := flag.String("mayfly-variant", "desma", "Mayfly variant: ma|desma|olce|eobbma|gsasma|mpma|aoblmoa")
	mayflyPop := flag.Int("mayfly-pop", 10, "Male and female population size per Mayfly run")
	mayflyRoundEvals := flag.Int("mayfly-round-evals", 240, "Target eval budget per Mayfly round")
	flag.Parse()

	if _, err := logging.Init(*logLevel); err != nil {
		die("%v", err)
	}
	groups, err := parseOptimizeGroups(*optimize)
	if err != nil {
		die("invalid --optimize: %v", err)
	}
	if *outputConfig == "" {
		die("output-config must not be empty")
	}
	if *maxEvals < 1 {
		die("max-evals must be >= 1")
	}
	if *timeBudget <= 0 {
		die("time-budget must be > 0")
	}
	if *reportEvery < 1 {
		*reportEvery = 1
	}
	if *mayflyPop < 2 {
		*mayflyPop = 2
	}
	if *mayflyRoundEvals < *mayflyPop*2 {
		*mayflyRoundEvals = *mayflyPop * 2
	}
	*topK = max(*topK, 1)
	*voices = max(*voices, 1)
	parsedWorkers, err := fitcommon.ParseWorkers(*workers)
	if err != nil {
		die("invalid workers value: %v", err)
	}

	patch, err := config.LoadOrDefault(*configPath)
	if err != nil {
		die("failed to load config: %v", err)
	}
	base := patch.Synth
	base.SampleRate = float64(*sampleRate)
	base.VoiceCount = *voices

	refRaw, refSR, err := audioio.ReadMono(*referencePath)
	if err != nil {
		die("failed to read reference: %v", err)
	}
	ref, err := audioio.Resample(refRaw, refSR, *sampleRate)
	if err != nil {
		die("failed to resample reference: %v", err)
	}
	slog.Debug("reference loaded", "path", *referencePath, "rate", refSR, "frames", len(ref))

	knobs, ids, initCand := initCandidate(synth.NewParams(base), groups)
	reportFile := reportPathFor(*outputConfig, *reportPath)
	if *resume {
		resumePath := *resumeReport
		if resumePath == "" {
			resumePath = reportFile
		}
		if resumed, ok, err := loadCandidateFromReport(resumePath, knobs, initCand); err != nil {
			slog.Warn("resume skipped", "path", resumePath, "err", err)
		} else if ok {
			initCand = resumed
			fmt.Printf("Resumed candidate from %s\n", resumePath)
		}
	}

	opts := render.DefaultOptions()
	opts.Note = *note
	opts.Velocity = float32(*velocity) / 127
	opts.ReleaseAfter = max(*releaseAfter, 0.01)
	opts.DecayDBFS = *decayDBFS
	opts.HoldBlocks = *decayHoldBlocks
	opts.MinDuration = *minDuration
	opts.MaxDuration = *maxDuration
	opts.BlockSize = max(*renderBlockSize, 16)

	out := outputs{
		base:       patch,
		ids:        ids,
		knobs:      knobs,
		configPath: *outputConfig,
		reportPath: *reportPath,
		report: runReport{
			ReferencePath:   *referencePath,
			ConfigPath:      *configPath,
			SampleRate:      *sampleRate,
			Note:            *note,
			Velocity:        *velocity,
			ReleaseAfterSec: opts.ReleaseAfter,
			MayflyVariant:   strings.ToLower(*mayflyVariant),
		},
	}

	cfg := &optimizationConfig{
		reference:        ref,
		base:             base,
		knobs:            knobs,
		ids:              ids,
		initCandidate:    initCand,
		render:           opts,
		seed:             *seed,
		timeBudget:       *timeBudget,
		maxEvals:         *maxEvals,
		reportEvery:      *reportEvery,
		checkpointEvery:  *checkpointEvery,
		mayflyVariant:    *mayflyVariant,
		mayflyPop:        *mayflyPop,
		mayflyRoundEvals: *mayflyRoundEvals,
		workers:          parsedWorkers,
		topK:             *topK,
		checkpoint: func(snap checkpointSnapshot) error {
			o := out
			o.report.Evaluations = snap.evals
			o.report.DurationSec = snap.elapsed
			o.report.CheckpointCount = snap.number
			return writeOutputs(o, snap.best, snap.metrics, snap.top)
		},
	}

	result, err := runOptimization(cfg)
	if err != nil {
		die("optimization failed: %v", err)
	}

	out.report.Evaluations = result.evals
	out.report.DurationSec = result.elapsed
	out.report.CheckpointCount = result.checkpoints
	if err := writeOutputs(out, result.best, result.bestMetrics, result.top); err != nil {
		die("failed to write outputs: %v", err)
	}

	if *writeWAV != "" {
		ev, err := newEvaluator(cfg)
		if err != nil {
			die("failed to create engine: %v", err)
		}
		mono, err := ev.render(result.best)
		if err != nil {
			die("failed to render best candidate: %v", err)
		}
		if err := audioio.WriteStereo(*writeWAV, mono, mono, *sampleRate); err != nil {
			die("failed to write %s: %v", *writeWAV, err)
		}
	}

	fmt.Printf("Done evals=%d elapsed=%.1fs best_score=%.4f best_similarity=%.2f%% variant=%s\n", result.evals, result.elapsed, result.bestMetrics.Score, result.bestMetrics.Similarity*100.0, strings.ToLower(*mayflyVariant))
	for i, k := range knobs {
		fmt.Printf("  %-20s %g\n", k.Name, result.best.Vals[i])
	}
}

func die(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
