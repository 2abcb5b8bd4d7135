package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-synth/config"
	"github.com/cwbudde/algo-synth/internal/audioio"
	"github.com/cwbudde/algo-synth/internal/audioout"
	"github.com/cwbudde/algo-synth/internal/keyboard"
	"github.com/cwbudde/algo-synth/internal/logging"
	"github.com/cwbudde/algo-synth/score"
	"github.com/cwbudde/algo-synth/synth"
)

// pollInterval is how often the main goroutine checks for completion.
const pollInterval = 20 * time.Millisecond

// watched records after every block whether its source has gone quiet, so
// the main goroutine can poll without touching audio-thread state.
type watched struct {
	src   audioout.Source
	quiet func() bool
	done  atomic.Bool
}

func (w *watched) RenderInterleaved(buf []float32, channels int) int {
	n := w.src.RenderInterleaved(buf, channels)
	w.done.Store(w.quiet())
	return n
}

func main() {
	configPath := flag.String("config", "", "Patch file (JSON or YAML); defaults are used when empty")
	scorePath := flag.String("score", "", "Lua score to play")
	keys := flag.Bool("keys", false, "Play from the computer keyboard (z..m and q..i rows, [ ] octave, space panic, Esc quit)")
	note := flag.Int("note", 69, "MIDI note for single-note playback")
	velocity := flag.Int("velocity", 100, "MIDI velocity (0-127)")
	duration := flag.Float64("duration", 1.0, "Hold time in seconds for single-note playback")
	sampleRateFlag := flag.Int("sample-rate", 48000, "Device sample rate in Hz (overrides the patch's sample_rate)")
	channels := flag.Int("channels", 2, "Output channel count")
	bufferMS := flag.Int("buffer-ms", 0, "Device buffer length in milliseconds (0 = driver default)")
	recordPath := flag.String("record", "", "Write everything played to this WAV file")
	recordMax := flag.Float64("record-max", 600, "Longest recording in seconds; later audio is not captured")
	logLevel := flag.String("log-level", "info", "Log level: "+logging.Levels)
	flag.Parse()

	logger, err := logging.Init(*logLevel)
	if err != nil {
		die("%v", err)
	}

	patch, err := config.LoadOrDefault(*configPath)
	if err != nil {
		die("failed to load config: %v", err)
	}
	cfg := patch.Synth
	sampleRate := resolveSampleRate(flag.CommandLine, &cfg, *sampleRateFlag)
	e, err := synth.New(cfg)
	if err != nil {
		die("failed to create engine: %v", err)
	}

	src := &watched{src: e, quiet: func() bool { return e.ActiveVoices() == 0 }}
	if *scorePath != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		s, err := score.LoadFile(ctx, *scorePath)
		cancel()
		if err != nil {
			die("failed to load score: %v", err)
		}
		p := score.NewPlayer(e, s)
		src = &watched{src: p, quiet: p.Done}
		logger.Info("playing score", "path", *scorePath, "events", len(s.Events), "seconds", s.Duration())
	}

	stream := audioout.NewStream(src, *channels)
	var rec *audioout.Recorder
	if *recordPath != "" {
		rec = audioout.NewRecorder(int(*recordMax * float64(sampleRate) * float64(stream.Channels())))
		stream.SetRecorder(rec)
	}
	player, err := audioout.NewPlayer(sampleRate, stream, time.Duration(*bufferMS)*time.Millisecond)
	if err != nil {
		die("failed to open audio device: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	player.Start()
	switch {
	case *keys:
		playKeys(ctx, e.Queue(), logger)
	case *scorePath != "":
		waitQuiet(ctx, src)
	default:
		q := e.Queue()
		q.Push(synth.NoteOn(*note, float32(*velocity)/127))
		logger.Info("playing note", "note", *note, "velocity", *velocity, "seconds", *duration)
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(*duration * float64(time.Second))):
		}
		q.Push(synth.NoteOff(*note))
		waitQuiet(ctx, src)
	}

	if err := player.Close(); err != nil {
		logger.Warn("closing audio player", "err", err)
	}
	if rec != nil {
		samples := rec.Samples()
		if err := audioio.WriteInterleaved(*recordPath, samples, stream.Channels(), sampleRate); err != nil {
			die("failed to write recording: %v", err)
		}
		fmt.Printf("Recorded %d frames to %s\n", len(samples)/stream.Channels(), *recordPath)
		if d := rec.Dropped(); d > 0 {
			logger.Warn("recording truncated", "dropped_frames", d/stream.Channels(), "record_max", *recordMax)
		}
	}
}

func playKeys(ctx context.Context, q *synth.EventQueue, logger *slog.Logger) {
	host := keyboard.NewHost(keyboard.New(q))
	if err := host.Start(); err != nil {
		die("%v", err)
	}
	fmt.Print("Keyboard active: z..m / q..i play, [ ] octave, space panic, Esc quits\r\n")
	select {
	case <-ctx.Done():
	case <-host.Quit():
	}
	host.Stop()
	q.Push(synth.AllNotesOff())
	logger.Debug("keyboard stopped")
	time.Sleep(200 * time.Millisecond)
}

func waitQuiet(ctx context.Context, w *watched) {
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if w.done.Load() {
				return
			}
		}
	}
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
