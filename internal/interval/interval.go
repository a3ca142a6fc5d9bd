// Package interval implements set algebra over half-open time ranges
// measured in elapsed video seconds.
package interval

import (
	"fmt"
	"math"
	"sort"
)

// Interval is the half-open range [Start, End) in seconds.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Len returns End - Start. It is negative for inverted intervals.
func (i Interval) Len() float64 {
	return i.End - i.Start
}

// Valid reports whether the interval covers a positive amount of time.
func (i Interval) Valid() bool {
	return i.End > i.Start
}

// Merge returns the canonical form of in: sorted by Start, with every
// overlapping or touching pair folded together, so that for adjacent
// outputs a and b, a.End < b.Start. The input slice is not modified.
func Merge(in []Interval) []Interval {
	if len(in) == 0 {
		return nil
	}

	sorted := make([]Interval, len(in))
	copy(sorted, in)
	if len(sorted) == 1 {
		return sorted
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := make([]Interval, 0, len(sorted))
	current := sorted[0]
	for _, next := range sorted[1:] {
		if next.Start <= current.End {
			current.End = math.Max(current.End, next.End)
			continue
		}
		out = append(out, current)
		current = next
	}
	return append(out, current)
}

// Add merges candidate into set. Degenerate candidates (End <= Start) are
// dropped and set is returned as is.
func Add(set []Interval, candidate Interval) []Interval {
	if !candidate.Valid() {
		return set
	}
	next := make([]Interval, 0, len(set)+1)
	next = append(next, set...)
	next = append(next, candidate)
	return Merge(next)
}

// Normalize folds every element of set through Add, discarding degenerate
// intervals. Use it on data that did not come from this package.
func Normalize(set []Interval) []Interval {
	var out []Interval
	for _, iv := range set {
		out = Add(out, iv)
	}
	return out
}

// TotalWatched sums the length of set after merging it, so overlapping
// input is never counted twice.
func TotalWatched(set []Interval) float64 {
	total := 0.0
	for _, iv := range Merge(set) {
		total += iv.Len()
	}
	return total
}

// Percentage returns the share of duration covered by set as a whole
// percentage in [0, 100]. An unknown duration (<= 0) yields 0.
func Percentage(set []Interval, duration float64) int {
	if duration <= 0 {
		return 0
	}
	ratio := math.Min(TotalWatched(set)/duration, 1)
	pct := int(math.Round(ratio * 100))
	if pct < 0 {
		return 0
	}
	return pct
}

// FormatElapsed renders seconds as M:SS. Negative input renders as 0:00.
func FormatElapsed(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	minutes := int(math.Floor(seconds / 60))
	rest := int(math.Floor(math.Mod(seconds, 60)))
	return fmt.Sprintf("%d:%02d", minutes, rest)
}
