// Package fitcommon holds the helpers shared by the fitting tools: worker
// flag parsing, knob definitions and their normalized search space.
package fitcommon

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ParseWorkers parses a -workers flag. "auto" yields 0.
func ParseWorkers(raw string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return 0, fmt.Errorf("empty value (use integer >= 1 or 'auto')")
	}
	if v == "auto" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%q (use integer >= 1 or 'auto')", raw)
	}
	if n < 1 {
		return 0, fmt.Errorf("%d (must be >= 1 or 'auto')", n)
	}
	return n, nil
}

// ResolveWorkers turns a parsed worker count into a concrete one, using the
// CPU count for "auto" and never exceeding limit when limit > 0.
func ResolveWorkers(n, limit int) int {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return max(n, 1)
}
