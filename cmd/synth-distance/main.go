package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/cwbudde/algo-synth/analysis"
	"github.com/cwbudde/algo-synth/config"
	"github.com/cwbudde/algo-synth/internal/audioio"
	"github.com/cwbudde/algo-synth/internal/logging"
	"github.com/cwbudde/algo-synth/internal/render"
	"github.com/cwbudde/algo-synth/synth"
)

func main() {
	referencePath := flag.String("reference", "reference/a4.wav", "Reference WAV path")
	candidatePath := flag.String("candidate", "", "Candidate WAV path; if empty, render candidate from the synth")
	configPath := flag.String("config", "", "Patch file (JSON or YAML) for the rendered candidate")
	note := flag.Int("note", 69, "MIDI note for rendered candidate")
	velocity := flag.Int("velocity", 100, "MIDI velocity (0-127) for rendered candidate")
	sampleRate := flag.Int("sample-rate", 48000, "Analysis sample rate in Hz")
	decayDBFS := flag.Float64("decay-dbfs", -90.0, "Auto-stop threshold in dBFS for rendered candidate")
	decayHoldBlocks := flag.Int("decay-hold-blocks", 6, "Consecutive below-threshold blocks required for stop")
	minDuration := flag.Float64("min-duration", 0.5, "Minimum rendered duration in seconds")
	maxDuration := flag.Float64("max-duration", 30.0, "Maximum rendered duration in seconds")
	releaseAfter := flag.Float64("release-after", 1.0, "Note hold time before NoteOff for rendered candidate")
	writeCandidate := flag.String("write-candidate", "", "Optional path to write rendered candidate WAV")
	jsonOut := flag.Bool("json", false, "Print metrics as JSON")
	logLevel := flag.String("log-level", "info", "Log level: "+logging.Levels)
	flag.Parse()

	if _, err := logging.Init(*logLevel); err != nil {
		die("%v", err)
	}

	ref, refSR, err := audioio.ReadMono(*referencePath)
	if err != nil {
		die("failed to read reference: %v", err)
	}
	ref, err = audioio.Resample(ref, refSR, *sampleRate)
	if err != nil {
		die("failed to resample reference: %v", err)
	}
	slog.Debug("reference loaded", "path", *referencePath, "rate", refSR, "frames", len(ref))

	var cand []float64
	if *candidatePath != "" {
		candRaw, candSR, err := audioio.ReadMono(*candidatePath)
		if err != nil {
			die("failed to read candidate: %v", err)
		}
		cand, err = audioio.Resample(candRaw, candSR, *sampleRate)
		if err != nil {
			die("failed to resample candidate: %v", err)
		}
	} else {
		patch, err := config.LoadOrDefault(*configPath)
		if err != nil {
			die("failed to load config: %v", err)
		}
		patch.Synth.SampleRate = float64(*sampleRate)
		e, err := synth.New(patch.Synth)
		if err != nil {
			die("failed to create engine: %v", err)
		}
		opts := render.DefaultOptions()
		opts.Note = *note
		opts.Velocity = float32(*velocity) / 127
		opts.DecayDBFS = *decayDBFS
		opts.HoldBlocks = *decayHoldBlocks
		opts.MinDuration = *minDuration
		opts.MaxDuration = *maxDuration
		opts.ReleaseAfter = *releaseAfter
		mono, err := render.Note(e, opts)
		if err != nil {
			die("failed to render candidate: %v", err)
		}
		cand = analysis.ToFloat64(mono)
		slog.Debug("candidate rendered", "note", *note, "frames", len(mono))
		if *writeCandidate != "" {
			if err := audioio.WriteStereo(*writeCandidate, mono, mono, *sampleRate); err != nil {
				die("failed to write candidate wav: %v", err)
			}
		}
	}

	metrics := analysis.Compare(ref, cand, *sampleRate)
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(metrics); err != nil {
			die("json encode failed: %v", err)
		}
		return
	}

	fmt.Printf("Reference frames: %d\n", metrics.ReferenceFrames)
	fmt.Printf("Candidate frames: %d\n", metrics.CandidateFrames)
	fmt.Printf("Aligned frames:   %d\n", metrics.AlignedFrames)
	fmt.Printf("Lag:              %d samples (%.3f ms)\n", metrics.LagSamples, 1000.0*float64(metrics.LagSamples)/float64(metrics.SampleRate))
	fmt.Printf("Peak frequency:   ref=%.2f Hz  cand=%.2f Hz  (%+.1f cents)\n", metrics.RefPeakHz, metrics.CandPeakHz, metrics.PitchCents)
	fmt.Printf("Centroid:         ref=%.1f Hz  cand=%.1f Hz\n", metrics.RefCentroidHz, metrics.CandCentroidHz)
	fmt.Println()
	fmt.Printf("Component        Raw          Norm   Weight  Contribution\n")
	fmt.Printf("─────────────────────────────────────────────────────────\n")
	for _, c := range metrics.Components() {
		marker := ""
		if c.Name == metrics.Dominant {
			marker = " ◄"
		}
		raw := fmt.Sprintf("%.3f %s", c.Raw, c.Unit)
		fmt.Printf("%-16s %-12s %5.1f%%  ×%.2f   → %.4f%s\n", c.Name, raw, c.Norm*100, c.Weight, c.Contribution(), marker)
	}
	fmt.Printf("─────────────────────────────────────────────────────────\n")
	fmt.Printf("Score:            %.4f  (0 best, 1 worst)\n", metrics.Score)
	fmt.Printf("Similarity:       %.2f%%\n", metrics.Similarity*100.0)
	fmt.Printf("Dominant factor:  %s\n", metrics.Dominant)
	fmt.Printf("\nAttack:       ref=%.3f s  cand=%.3f s\n", metrics.RefAttackSec, metrics.CandAttackSec)
	fmt.Printf("Decay slopes: ref=%.1f dB/s  cand=%.1f dB/s\n", metrics.RefDecayDBPerS, metrics.CandDecayDBPerS)
}

func die(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
