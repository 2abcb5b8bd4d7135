package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/cwbudde/algo-synth/analysis"
	"github.com/cwbudde/algo-synth/config"
	"github.com/cwbudde/algo-synth/internal/audioio"
	"github.com/cwbudde/algo-synth/internal/logging"
	"github.com/cwbudde/algo-synth/internal/render"
	"github.com/cwbudde/algo-synth/score"
	"github.com/cwbudde/algo-synth/synth"
)

func main() {
	configPath := flag.String("config", "", "Patch file (JSON or YAML); defaults are used when empty")
	scorePath := flag.String("score", "", "Lua score to render instead of a single note")
	scoreTail := flag.Float64("score-tail", 5.0, "Maximum seconds rendered after the last score event")
	note := flag.Int("note", 69, "MIDI note number (69 = A4 = 440 Hz)")
	velocity := flag.Int("velocity", 100, "MIDI velocity (0-127)")
	waveform := flag.String("waveform", "", "Waveform override: sine, square, saw, triangle, wavetable, fm")
	voices := flag.Int("voices", 0, "Voice count override")
	duration := flag.Float64("duration", 2.0, "Duration in seconds")
	decayDBFS := flag.Float64("decay-dbfs", math.Inf(1), "Auto-stop when block RMS falls below this dBFS (e.g. -90). Disabled by default")
	decayHoldBlocks := flag.Int("decay-hold-blocks", 6, "Consecutive below-threshold blocks required to stop in auto-decay mode")
	minDuration := flag.Float64("min-duration", 0.5, "Minimum render duration in seconds when using -decay-dbfs")
	maxDuration := flag.Float64("max-duration", 20.0, "Maximum render duration in seconds when using -decay-dbfs")
	releaseAfter := flag.Float64("release-after", 1.0, "Send NoteOff after this many seconds")
	sampleRateFlag := flag.Int("sample-rate", 48000, "Render sample rate in Hz (overrides the patch's sample_rate)")
	outRate := flag.Int("out-rate", 0, "Output WAV sample rate; resampled when it differs from -sample-rate")
	irPath := flag.String("ir", "", "Impulse response WAV (overrides the patch's ir_wav_path)")
	irMix := flag.Float64("ir-mix", 0.35, "Wet share of the impulse response in [0,1]")
	output := flag.String("output", "output.wav", "Output WAV file path")
	logLevel := flag.String("log-level", "info", "Log level: "+logging.Levels)
	flag.Parse()

	if _, err := logging.Init(*logLevel); err != nil {
		die("%v", err)
	}

	patch, err := config.LoadOrDefault(*configPath)
	if err != nil {
		die("failed to load config: %v", err)
	}
	cfg := patch.Synth
	sampleRate := resolveSampleRate(flag.CommandLine, &cfg, *sampleRateFlag)
	if *waveform != "" {
		w, err := synth.ParseWaveform(*waveform)
		if err != nil {
			die("%v", err)
		}
		cfg.Waveform = w
	}
	if *voices > 0 {
		cfg.VoiceCount = *voices
	}
	if *irPath != "" {
		patch.IRWavPath = *irPath
	}

	e, err := synth.New(cfg)
	if err != nil {
		die("failed to create engine: %v", err)
	}

	var mono []float32
	if *scorePath != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		s, err := score.LoadFile(ctx, *scorePath)
		cancel()
		if err != nil {
			die("failed to load score: %v", err)
		}
		fmt.Printf("Rendering score %s (%d events, %.2fs) at %d Hz...\n", *scorePath, len(s.Events), s.Duration(), sampleRate)
		mono = renderScore(score.NewPlayer(e, s), s.Duration()+math.Max(*scoreTail, 0), sampleRate)
	} else {
		opts := render.DefaultOptions()
		opts.Note = *note
		opts.Velocity = float32(*velocity) / 127
		opts.Duration = *duration
		opts.ReleaseAfter = *releaseAfter
		opts.DecayDBFS = *decayDBFS
		opts.HoldBlocks = *decayHoldBlocks
		opts.MinDuration = *minDuration
		opts.MaxDuration = *maxDuration
		fmt.Printf("Rendering note %d, velocity %d, %s at %d Hz...\n", *note, *velocity, cfg.Waveform, sampleRate)
		mono, err = render.Note(e, opts)
		if err != nil {
			die("render failed: %v", err)
		}
		if opts.AutoStop() {
			fmt.Printf("Auto-stop at %d frames (%.3fs), threshold %.1f dBFS\n", len(mono), float64(len(mono))/float64(sampleRate), *decayDBFS)
		}
	}

	left, right := mono, mono
	if patch.IRWavPath != "" {
		ir, err := audioio.LoadIR(patch.IRWavPath, sampleRate)
		if err != nil {
			die("failed to load IR %q: %v", patch.IRWavPath, err)
		}
		left, right, err = ir.Apply(mono, float32(*irMix))
		if err != nil {
			die("IR convolution failed: %v", err)
		}
		slog.Debug("applied impulse response", "path", patch.IRWavPath, "ir_frames", len(ir.Left), "mix", *irMix)
	}

	rate := sampleRate
	if *outRate > 0 && *outRate != rate {
		if left, err = audioio.Resample32(left, rate, *outRate); err != nil {
			die("resample failed: %v", err)
		}
		if right, err = audioio.Resample32(right, rate, *outRate); err != nil {
			die("resample failed: %v", err)
		}
		n := min(len(left), len(right))
		left, right = left[:n], right[:n]
		rate = *outRate
	}

	if err := audioio.WriteStereo(*output, left, right, rate); err != nil {
		die("failed to write %s: %v", *output, err)
	}
	peak := math.Max(analysis.Peak(left), analysis.Peak(right))
	fmt.Printf("Wrote %s: %d frames (%.3fs) at %d Hz, peak %.1f dBFS\n", *output, len(left), float64(len(left))/float64(rate), rate, analysis.DBFS(peak))
	if peak > 1 {
		slog.Warn("output clipped", "peak", peak)
	}
}

// renderScore plays the score until the engine is silent or maxSeconds is
// reached.
func renderScore(p *score.Player, maxSeconds float64, sampleRate int) []float32 {
	maxFrames := int(maxSeconds * float64(sampleRate))
	out := make([]float32, 0, maxFrames)
	block := make([]float32, render.DefaultBlockSize)
	for len(out) < maxFrames && !p.Done() {
		n := min(len(block), maxFrames-len(out))
		p.Render(block[:n])
		out = append(out, block[:n]...)
	}
	return out
}

// resolveSampleRate applies -sample-rate to cfg only when it was given on
// the command line, so a patch's sample_rate otherwise wins. It returns the
// rate the engine runs at.
func resolveSampleRate(fs *flag.FlagSet, cfg *synth.Config, flagRate int) int {
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "sample-rate" {
			cfg.SampleRate = float64(flagRate)
		}
	})
	return int(cfg.SampleRate)
}

func die(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
