package main

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/mayfly"

	"github.com/cwbudde/algo-synth/analysis"
	"github.com/cwbudde/algo-synth/internal/fitcommon"
	"github.com/cwbudde/algo-synth/internal/render"
	"github.com/cwbudde/algo-synth/synth"
)

type optimizationConfig struct {
	reference        []float64
	base             synth.Config
	knobs            []fitcommon.Knob
	ids              []synth.ParamID
	initCandidate    fitcommon.Candidate
	render           render.Options
	seed             int64
	timeBudget       float64
	maxEvals         int
	reportEvery      int
	checkpointEvery  int
	mayflyVariant    string
	mayflyPop        int
	mayflyRoundEvals int
	workers          int
	topK             int

	// checkpoint persists an improved best. It is never called concurrently.
	checkpoint func(snap checkpointSnapshot) error
}

type checkpointSnapshot struct {
	best    fitcommon.Candidate
	metrics analysis.Metrics
	top     []fitcommon.Ranked
	evals   int
	elapsed float64
	number  int
}

type optimizationResult struct {
	best        fitcommon.Candidate
	bestMetrics analysis.Metrics
	top         []fitcommon.Ranked
	evals       int
	elapsed     float64
	checkpoints int
}

// search is the state shared by the workers of one optimization run.
type search struct {
	cfg      *optimizationConfig
	start    time.Time
	deadline time.Time

	evals    atomic.Int64
	rounds   atomic.Int64
	improves atomic.Int64

	mu          sync.Mutex
	best        fitcommon.Candidate
	bestMetrics analysis.Metrics
	top         []fitcommon.Ranked
	checkpoints int

	// persistMu serializes checkpoint writes; persisted is the last
	// improvement number written.
	persistMu sync.Mutex
	persisted int64
}

// evaluator owns one engine; each worker has its own.
type evaluator struct {
	cfg    *optimizationConfig
	engine *synth.Engine
}

func newEvaluator(cfg *optimizationConfig) (*evaluator, error) {
	e, err := synth.New(cfg.base)
	if err != nil {
		return nil, err
	}
	return &evaluator{cfg: cfg, engine: e}, nil
}

func (ev *evaluator) render(cand fitcommon.Candidate) ([]float32, error) {
	applyCandidate(ev.engine.Params(), ev.cfg.ids, cand)
	ev.engine.Reset()
	return render.Note(ev.engine, ev.cfg.render)
}

func (ev *evaluator) evaluate(cand fitcommon.Candidate) (analysis.Metrics, error) {
	mono, err := ev.render(cand)
	if err != nil {
		return analysis.Metrics{}, err
	}
	sr := int(ev.cfg.base.SampleRate)
	return analysis.Compare(ev.cfg.reference, analysis.ToFloat64(mono), sr), nil
}

func ranked(eval int, m analysis.Metrics, knobs []fitcommon.Knob, cand fitcommon.Candidate) fitcommon.Ranked {
	return fitcommon.Ranked{Eval: eval, Score: m.Score, Similarity: m.Similarity, Knobs: cand.Map(knobs)}
}

// runOptimization searches the knob space with repeated short mayfly rounds
// until the evaluation or time budget is spent. Each worker runs its own
// rounds against its own engine; all share the best-so-far state.
func runOptimization(cfg *optimizationConfig) (*optimizationResult, error) {
	first, err := newEvaluator(cfg)
	if err != nil {
		return nil, fmt.Errorf("engine setup failed: %w", err)
	}
	initial := cfg.initCandidate.Clone()
	m, err := first.evaluate(initial)
	if err != nil {
		return nil, fmt.Errorf("initial evaluation failed: %w", err)
	}
	fmt.Printf("Start score=%.4f similarity=%.2f%%\n", m.Score, m.Similarity*100.0)

	s := &search{
		cfg:         cfg,
		start:       time.Now(),
		best:        initial,
		bestMetrics: m,
		top:         fitcommon.InsertTop(nil, cfg.topK, ranked(1, m, cfg.knobs, initial)),
	}
	s.deadline = s.start.Add(time.Duration(cfg.timeBudget * float64(time.Second)))
	s.evals.Store(1)

	var wg sync.WaitGroup
	for w := 1; w <= fitcommon.ResolveWorkers(cfg.workers, 0); w++ {
		ev := first
		if w > 1 {
			if ev, err = newEvaluator(cfg); err != nil {
				slog.Error("worker setup failed", "worker", w, "err", err)
				continue
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.work(ev)
		}()
	}
	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	return &optimizationResult{
		best:        s.best.Clone(),
		bestMetrics: s.bestMetrics,
		top:         append([]fitcommon.Ranked(nil), s.top...),
		evals:       int(s.evals.Load()),
		elapsed:     time.Since(s.start).Seconds(),
		checkpoints: s.checkpoints,
	}, nil
}

func (s *search) expired() bool { return time.Now().After(s.deadline) }

// work runs mayfly rounds until a budget is exhausted.
func (s *search) work(ev *evaluator) {
	variant := strings.ToLower(s.cfg.mayflyVariant)
	for !s.expired() {
		remaining := s.cfg.maxEvals - int(s.evals.Load())
		if remaining <= 0 {
			return
		}
		round := s.rounds.Add(1)
		budget := min(s.cfg.mayflyRoundEvals, remaining)

		mc, err := newMayflyConfig(variant, s.cfg.mayflyPop, len(s.cfg.knobs), max(1, budget/(2*s.cfg.mayflyPop)))
		if err != nil {
			slog.Error("mayfly setup failed", "round", round, "err", err)
			return
		}
		mc.Rand = rand.New(rand.NewSource(s.cfg.seed + round*7919))
		mc.ObjectiveFunc = func(pos []float64) float64 { return s.objective(ev, pos) }
		if _, err := runMayfly(mc); err != nil {
			slog.Warn("mayfly round failed", "round", round, "err", err)
		}
	}
}

// objective scores one optimizer position. Positions outside the budget
// score worse than the current best so they never win a round.
func (s *search) objective(ev *evaluator, pos []float64) float64 {
	if s.expired() {
		return s.bestScore() + 1.0
	}
	evalNum, ok := s.reserve()
	if !ok {
		return s.bestScore() + 1.0
	}

	cand := fitcommon.FromNormalized(pos, s.cfg.knobs)
	m, err := ev.evaluate(cand)
	if err != nil {
		slog.Debug("evaluation failed", "eval", evalNum, "err", err)
		return s.bestScore() + 0.8
	}

	s.mu.Lock()
	s.top = fitcommon.InsertTop(s.top, s.cfg.topK, ranked(int(evalNum), m, s.cfg.knobs, cand))
	improved := m.Score < s.bestMetrics.Score
	var snap checkpointSnapshot
	if improved {
		s.best = cand.Clone()
		s.bestMetrics = m
		snap = checkpointSnapshot{best: s.best.Clone(), metrics: m, top: append([]fitcommon.Ranked(nil), s.top...)}
	}
	best := s.bestMetrics.Score
	s.mu.Unlock()

	if improved {
		n := s.improves.Add(1)
		fmt.Printf("Improved #%d eval=%d score=%.4f sim=%.2f%% dominant=%s\n", n, evalNum, m.Score, m.Similarity*100.0, m.Dominant)
		s.persist(n, snap)
	}
	if every := s.cfg.reportEvery; every > 0 && evalNum%int64(every) == 0 {
		fmt.Printf("Progress eval=%d/%d elapsed=%.1fs best=%.4f\n", evalNum, s.cfg.maxEvals, time.Since(s.start).Seconds(), best)
	}
	return m.Score
}

// persist writes a checkpoint for every checkpointEvery-th improvement.
// Improvements that arrive out of order are skipped.
func (s *search) persist(improve int64, snap checkpointSnapshot) {
	every := int64(s.cfg.checkpointEvery)
	if s.cfg.checkpoint == nil || every <= 0 || improve%every != 0 {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if improve <= s.persisted {
		return
	}
	s.persisted = improve

	s.mu.Lock()
	snap.number = s.checkpoints + 1
	s.mu.Unlock()
	snap.evals = int(s.evals.Load())
	snap.elapsed = time.Since(s.start).Seconds()
	if err := s.cfg.checkpoint(snap); err != nil {
		slog.Error("checkpoint write failed", "err", err)
		return
	}
	s.mu.Lock()
	s.checkpoints = max(s.checkpoints, snap.number)
	s.mu.Unlock()
}

func (s *search) reserve() (int64, bool) {
	return reserveEval(&s.evals, s.cfg.maxEvals)
}

func (s *search) bestScore() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bestMetrics.Score
}

func newMayflyConfig(variant string, pop int, dims int, iters int) (*mayfly.Config, error) {
	var cfg *mayfly.Config
	switch variant {
	case "ma":
		cfg = mayfly.NewDefaultConfig()
	case "desma":
		cfg = mayfly.NewDESMAConfig()
	case "olce":
		cfg = mayfly.NewOLCEConfig()
	case "eobbma":
		cfg = mayfly.NewEOBBMAConfig()
	case "gsasma":
		cfg = mayfly.NewGSASMAConfig()
	case "mpma":
		cfg = mayfly.NewMPMAConfig()
	case "aoblmoa":
		cfg = mayfly.NewAOBLMOAConfig()
	default:
		return nil, fmt.Errorf("unsupported variant %q", variant)
	}
	cfg.ProblemSize = dims
	cfg.LowerBound = 0.0
	cfg.UpperBound = 1.0
	cfg.MaxIterations = iters
	cfg.NPop = pop
	cfg.NPopF = pop
	cfg.NC = 2 * pop
	cfg.NM = max(1, int(math.Round(0.05*float64(pop))))
	return cfg, nil
}

func runMayfly(cfg *mayfly.Config) (_ *mayfly.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mayfly panic: %v", r)
		}
	}()
	return mayfly.Optimize(cfg)
}

// reserveEval claims the next evaluation number, failing once maxEvals
// numbers have been handed out.
func reserveEval(evals *atomic.Int64, maxEvals int) (int64, bool) {
	for {
		cur := evals.Load()
		if cur >= int64(maxEvals) {
			return 0, false
		}
		if evals.CompareAndSwap(cur, cur+1) {
			return cur + 1, true
		}
	}
}
