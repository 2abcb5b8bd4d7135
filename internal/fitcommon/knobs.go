package fitcommon

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Knob is one optimized dimension. Log knobs are searched on a logarithmic
// scale, which suits frequencies and times spanning decades.
type Knob struct {
	Name  string
	Min   float64
	Max   float64
	IsInt bool
	Log   bool
}

// Candidate holds one plain value per knob.
type Candidate struct {
	Vals []float64
}

// Plain maps x in [0, 1] to the knob's range.
func (k Knob) Plain(x float64) float64 {
	x = Clamp(x, 0, 1)
	var v float64
	if k.Log && k.Min > 0 && k.Max > k.Min {
		v = k.Min * math.Pow(k.Max/k.Min, x)
	} else {
		v = k.Min + x*(k.Max-k.Min)
	}
	return k.fix(v)
}

// Normalized is the inverse of Plain.
func (k Knob) Normalized(v float64) float64 {
	v = Clamp(v, k.Min, k.Max)
	if k.Max <= k.Min {
		return 0
	}
	if k.Log && k.Min > 0 {
		return math.Log(v/k.Min) / math.Log(k.Max/k.Min)
	}
	return (v - k.Min) / (k.Max - k.Min)
}

func (k Knob) fix(v float64) float64 {
	v = Clamp(v, k.Min, k.Max)
	if k.IsInt {
		v = math.Round(v)
	}
	return v
}

// FromNormalized maps an optimizer position to a candidate. Missing
// coordinates read as 0.
func FromNormalized(pos []float64, knobs []Knob) Candidate {
	vals := make([]float64, len(knobs))
	for i, k := range knobs {
		x := 0.0
		if i < len(pos) {
			x = pos[i]
		}
		vals[i] = k.Plain(x)
	}
	return Candidate{Vals: vals}
}

// ToNormalized maps a candidate back into the unit cube.
func ToNormalized(c Candidate, knobs []Knob) []float64 {
	pos := make([]float64, len(knobs))
	for i, k := range knobs {
		if i < len(c.Vals) {
			pos[i] = k.Normalized(c.Vals[i])
		}
	}
	return pos
}

// Clone returns a deep copy of c.
func (c Candidate) Clone() Candidate {
	return Candidate{Vals: append([]float64(nil), c.Vals...)}
}

// Map names every value by its knob.
func (c Candidate) Map(knobs []Knob) map[string]float64 {
	m := make(map[string]float64, len(knobs))
	for i, k := range knobs {
		if i < len(c.Vals) {
			m[k.Name] = c.Vals[i]
		}
	}
	return m
}

// Key is a stable string form used to deduplicate candidates.
func (c Candidate) Key() string {
	var b strings.Builder
	for i, v := range c.Vals {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%.6g", v)
	}
	return b.String()
}

// CandidateFromMap overlays named values onto fallback. It reports whether
// any knob was found.
func CandidateFromMap(m map[string]float64, knobs []Knob, fallback Candidate) (Candidate, bool) {
	out := fallback.Clone()
	if len(out.Vals) < len(knobs) {
		out.Vals = append(out.Vals, make([]float64, len(knobs)-len(out.Vals))...)
	}
	updated := false
	for i, k := range knobs {
		if v, ok := m[k.Name]; ok {
			out.Vals[i] = k.fix(v)
			updated = true
		}
	}
	return out, updated
}

// Ranked is one scored candidate in a top-k list.
type Ranked struct {
	Eval       int                `json:"eval"`
	Score      float64            `json:"score"`
	Similarity float64            `json:"similarity"`
	Knobs      map[string]float64 `json:"knobs"`
}

// InsertTop adds entry to top, keeps it sorted by score (ties by eval
// order) and truncates it to k entries.
func InsertTop(top []Ranked, k int, entry Ranked) []Ranked {
	top = append(top, entry)
	sort.Slice(top, func(i, j int) bool {
		if top[i].Score == top[j].Score {
			return top[i].Eval < top[j].Eval
		}
		return top[i].Score < top[j].Score
	})
	if k > 0 && len(top) > k {
		top = top[:k]
	}
	return top
}
