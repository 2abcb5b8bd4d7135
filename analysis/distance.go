package analysis

import (
	"math"
)

// Score weights of the normalized components. They sum to 1.
const (
	WeightTime       = 0.20
	WeightEnvelope   = 0.20
	WeightSpectral   = 0.25
	WeightBrightness = 0.15
	WeightAttack     = 0.10
	WeightDecay      = 0.10
)

// Full-scale values: a raw difference at or beyond these normalizes to 1.
const (
	timeScale       = 0.25 // RMSE at the common 0.1 RMS level
	envelopeScaleDB = 30
	spectralScaleDB = 30
	brightnessScale = 1.5 // octaves
	attackScaleSec  = 0.25
	decayScaleDB    = 40 // dB/s
)

const (
	envFrame = 256
	envHop   = 128
	// attackFrac is the share of the envelope peak that ends the attack.
	attackFrac = 0.9
)

// Metrics contains distance and similarity measurements between two audio signals.
type Metrics struct {
	SampleRate int `json:"sample_rate"`

	ReferenceFrames int `json:"reference_frames"`
	CandidateFrames int `json:"candidate_frames"`
	AlignedFrames   int `json:"aligned_frames"`
	LagSamples      int `json:"lag_samples"`

	TimeRMSE       float64 `json:"time_rmse"`
	EnvelopeRMSEDB float64 `json:"envelope_rmse_db"`
	SpectralRMSEDB float64 `json:"spectral_rmse_db"`

	RefCentroidHz  float64 `json:"ref_centroid_hz"`
	CandCentroidHz float64 `json:"cand_centroid_hz"`
	BrightnessOct  float64 `json:"brightness_octaves"`

	RefAttackSec  float64 `json:"ref_attack_seconds"`
	CandAttackSec float64 `json:"cand_attack_seconds"`
	AttackDiffSec float64 `json:"attack_diff_seconds"`

	RefDecayDBPerS  float64 `json:"ref_decay_db_per_s"`
	CandDecayDBPerS float64 `json:"cand_decay_db_per_s"`
	DecayDiffDBPerS float64 `json:"decay_diff_db_per_s"`

	RefPeakHz  float64 `json:"ref_peak_hz"`
	CandPeakHz float64 `json:"cand_peak_hz"`
	// PitchCents is the candidate's peak relative to the reference peak. It
	// is reported but not scored.
	PitchCents float64 `json:"pitch_cents"`

	TimeNorm       float64 `json:"time_norm"`
	EnvelopeNorm   float64 `json:"envelope_norm"`
	SpectralNorm   float64 `json:"spectral_norm"`
	BrightnessNorm float64 `json:"brightness_norm"`
	AttackNorm     float64 `json:"attack_norm"`
	DecayNorm      float64 `json:"decay_norm"`
	Dominant       string  `json:"dominant"`

	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

// Component is one weighted term of the score.
type Component struct {
	Name   string
	Raw    float64
	Unit   string
	Norm   float64
	Weight float64
}

// Contribution is the component's share of the score.
func (c Component) Contribution() float64 { return c.Norm * c.Weight }

// Components lists the scored terms of m in a fixed order.
func (m Metrics) Components() []Component {
	return []Component{
		{"time", m.TimeRMSE, "", m.TimeNorm, WeightTime},
		{"envelope", m.EnvelopeRMSEDB, "dB", m.EnvelopeNorm, WeightEnvelope},
		{"spectral", m.SpectralRMSEDB, "dB", m.SpectralNorm, WeightSpectral},
		{"brightness", m.BrightnessOct, "oct", m.BrightnessNorm, WeightBrightness},
		{"attack", m.AttackDiffSec, "s", m.AttackNorm, WeightAttack},
		{"decay", m.DecayDiffDBPerS, "dB/s", m.DecayNorm, WeightDecay},
	}
}

func unmatched(m Metrics) Metrics {
	m.Score = 1
	m.Similarity = 0
	return m
}

// Compare measures how far candidate is from reference. Both are aligned by
// cross-correlation and level-matched first, so only shape differences count.
// Score is in [0, 1] with 0 for identical sounds; degenerate input scores 1.
func Compare(reference []float64, candidate []float64, sampleRate int) Metrics {
	m := Metrics{
		SampleRate:      sampleRate,
		ReferenceFrames: len(reference),
		CandidateFrames: len(candidate),
	}
	if sampleRate <= 0 {
		return unmatched(m)
	}
	a, ok := align(reference, candidate, sampleRate)
	m.LagSamples = a.lag
	if !ok {
		return unmatched(m)
	}
	m.AlignedFrames = len(a.ref)

	m.TimeRMSE = rmse(a.ref, a.cand)

	refEnv := rmsEnvelope(a.ref, envFrame, envHop)
	candEnv := rmsEnvelope(a.cand, envFrame, envHop)
	m.EnvelopeRMSEDB = envelopeDistanceDB(refEnv, candEnv)

	if ms, mc, n := spectraOf(a.ref, a.cand); n > 0 {
		m.SpectralRMSEDB = logSpectralDistance(ms, mc)
		m.RefCentroidHz = centroid(ms, sampleRate, n)
		m.CandCentroidHz = centroid(mc, sampleRate, n)
		if m.RefCentroidHz > 0 && m.CandCentroidHz > 0 {
			m.BrightnessOct = math.Abs(math.Log2(m.CandCentroidHz / m.RefCentroidHz))
		}
	}

	// Correlation lines up the sustained parts, which would hide a slow
	// attack, so attack times are measured from each onset instead.
	m.RefAttackSec = AttackTime(a.refOnset, sampleRate, attackFrac)
	m.CandAttackSec = AttackTime(a.candOnset, sampleRate, attackFrac)
	if isFinite(m.RefAttackSec) && isFinite(m.CandAttackSec) {
		m.AttackDiffSec = math.Abs(m.RefAttackSec - m.CandAttackSec)
	}
	m.RefAttackSec, m.CandAttackSec = finiteOrZero(m.RefAttackSec), finiteOrZero(m.CandAttackSec)

	hopSec := float64(envHop) / float64(sampleRate)
	m.RefDecayDBPerS = decaySlopeDBPerS(refEnv, hopSec)
	m.CandDecayDBPerS = decaySlopeDBPerS(candEnv, hopSec)
	if isFinite(m.RefDecayDBPerS) && isFinite(m.CandDecayDBPerS) {
		m.DecayDiffDBPerS = math.Abs(m.RefDecayDBPerS - m.CandDecayDBPerS)
	}
	m.RefDecayDBPerS, m.CandDecayDBPerS = finiteOrZero(m.RefDecayDBPerS), finiteOrZero(m.CandDecayDBPerS)

	if hz, err := PeakFrequency(a.ref, sampleRate); err == nil {
		m.RefPeakHz = hz
	}
	if hz, err := PeakFrequency(a.cand, sampleRate); err == nil {
		m.CandPeakHz = hz
	}
	if m.RefPeakHz > 0 && m.CandPeakHz > 0 {
		m.PitchCents = 1200 * math.Log2(m.CandPeakHz/m.RefPeakHz)
	}

	m.TimeNorm = clamp01(m.TimeRMSE / timeScale)
	m.EnvelopeNorm = clamp01(m.EnvelopeRMSEDB / envelopeScaleDB)
	m.SpectralNorm = clamp01(m.SpectralRMSEDB / spectralScaleDB)
	m.BrightnessNorm = clamp01(m.BrightnessOct / brightnessScale)
	m.AttackNorm = clamp01(m.AttackDiffSec / attackScaleSec)
	m.DecayNorm = clamp01(m.DecayDiffDBPerS / decayScaleDB)

	var score, worst float64
	for _, c := range m.Components() {
		v := c.Contribution()
		score += v
		if m.Dominant == "" || v > worst {
			worst = v
			m.Dominant = c.Name
		}
	}
	m.Score = clamp01(score)
	m.Similarity = math.Exp(-4 * m.Score)
	return m
}

func envelopeDistanceDB(ref, cand []float64) float64 {
	n := min(len(ref), len(cand))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := linToDB(ref[i]) - linToDB(cand[i])
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}

// spectraOf returns the magnitude spectra of the common power-of-two prefix
// of a and b, at most 4096 samples. n is 0 when the signals are too short.
func spectraOf(a, b []float64) (ma, mb []float64, n int) {
	n = min(floorPow2(min(len(a), len(b))), 4096)
	if n < 512 {
		return nil, nil, 0
	}
	var err error
	if ma, err = Spectrum(a, n); err != nil {
		return nil, nil, 0
	}
	if mb, err = Spectrum(b, n); err != nil {
		return nil, nil, 0
	}
	return ma, mb, n
}

// logSpectralDistance is the RMS dB difference over the bins between DC and
// Nyquist, exclusive.
func logSpectralDistance(ma, mb []float64) float64 {
	bins := min(len(ma), len(mb)) - 1
	if bins < 2 {
		return 0
	}
	var sum float64
	for k := 1; k < bins; k++ {
		d := linToDB(ma[k]) - linToDB(mb[k])
		sum += d * d
	}
	return math.Sqrt(sum / float64(bins-1))
}

// centroid is the magnitude-weighted mean frequency of a spectrum computed
// over n samples, DC excluded. A silent spectrum has centroid 0.
func centroid(mag []float64, sampleRate, n int) float64 {
	var num, den float64
	for k := 1; k < len(mag); k++ {
		num += float64(k) * mag[k]
		den += mag[k]
	}
	if den <= 1e-12 {
		return 0
	}
	return num / den * float64(sampleRate) / float64(n)
}

func rmse(a []float64, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}

func rms1(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func rmsEnvelope(x []float64, frame int, hop int) []float64 {
	if frame <= 0 || hop <= 0 || len(x) < frame {
		return nil
	}
	out := make([]float64, 1+(len(x)-frame)/hop)
	for i := range out {
		out[i] = rms1(x[i*hop : i*hop+frame])
	}
	return out
}

func linToDB(x float64) float64 {
	return 20 * math.Log10(math.Max(x, 1e-12))
}

// decaySlopeDBPerS fits a line to the dB envelope from its peak down to 60 dB
// below it. It returns NaN when there are too few points to fit.
func decaySlopeDBPerS(env []float64, hopSec float64) float64 {
	if len(env) < 8 || hopSec <= 0 {
		return math.NaN()
	}
	db := make([]float64, len(env))
	peakIdx := 0
	for i, v := range env {
		db[i] = linToDB(v)
		if db[i] > db[peakIdx] {
			peakIdx = i
		}
	}
	start := peakIdx + 1
	if start >= len(db)-4 {
		return math.NaN()
	}
	end := len(db)
	for i := start; i < len(db); i++ {
		if db[i] < db[peakIdx]-60 {
			end = i
			break
		}
	}
	if end-start < 6 {
		return math.NaN()
	}

	// Least squares slope over (time, dB).
	var sx, sy, sxx, sxy float64
	n := float64(end - start)
	for i := start; i < end; i++ {
		x := float64(i-start) * hopSec
		sx += x
		sy += db[i]
		sxx += x * x
		sxy += x * db[i]
	}
	den := n*sxx - sx*sx
	if math.Abs(den) < 1e-12 {
		return math.NaN()
	}
	return (n*sxy - sx*sy) / den
}

func clamp01(x float64) float64 {
	return math.Min(1, math.Max(0, x))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// finiteOrZero keeps Metrics encodable as JSON.
func finiteOrZero(v float64) float64 {
	if isFinite(v) {
		return v
	}
	return 0
}
