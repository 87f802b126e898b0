// Package quality tracks per-file data quality for one logger: point
// counts, wrong-length files, minimum value resolution and overall data
// completeness.
package quality

import (
	"math"
	"sort"
	"time"
)

// BadFile records one file whose data read but failed screening.
type BadFile struct {
	Seq    int
	Name   string
	Reason string
}

// Screen accumulates quality diagnostics across a logger's files. One
// instance per logger; never shared.
type Screen struct {
	expected   int
	allowShort bool

	files      int
	nonMissing []int
	channels   []string
	minRes     []float64
	minTimeRes time.Duration
	bad        []BadFile
}

// NewScreen creates a screen for a logger expecting `expected` points per
// file (sampling frequency x logging duration). When allowShort is true,
// files with fewer points than expected are still admitted to processing
// while remaining flagged in the report; over-long files never are.
func NewScreen(expected int, allowShort bool) *Screen {
	return &Screen{expected: expected, allowShort: allowShort, minTimeRes: math.MaxInt64}
}

// Check screens one wrangled file. It returns true when the file should
// enter statistics/spectral accumulation. Rejected or short files are
// recorded as bad; processing of subsequent files always continues.
func (s *Screen) Check(seq int, name string, times []time.Time, names []string, data [][]float64) bool {
	rows := len(times)
	s.files++

	if s.channels == nil {
		s.channels = append([]string(nil), names...)
		s.nonMissing = make([]int, len(data))
		s.minRes = make([]float64, len(data))
		for i := range s.minRes {
			s.minRes[i] = math.Inf(1)
		}
	}
	for i, col := range data {
		if i >= len(s.nonMissing) {
			break
		}
		for _, v := range col {
			if !math.IsNaN(v) {
				s.nonMissing[i]++
			}
		}
	}

	if rows != s.expected {
		s.bad = append(s.bad, BadFile{Seq: seq, Name: name, Reason: "unexpected number of points"})
		if rows > s.expected {
			return false
		}
		return s.allowShort
	}

	s.updateResolution(times, data)
	return true
}

// updateResolution records the minimum non-zero difference between
// sorted-deduplicated values per column, the smallest-resolution diagnostic.
func (s *Screen) updateResolution(times []time.Time, data [][]float64) {
	for i := 1; i < len(times); i++ {
		if d := times[i].Sub(times[i-1]); d > 0 && d < s.minTimeRes {
			s.minTimeRes = d
		}
	}
	for ci, col := range data {
		if ci >= len(s.minRes) {
			break
		}
		vals := make([]float64, 0, len(col))
		for _, v := range col {
			if !math.IsNaN(v) {
				vals = append(vals, v)
			}
		}
		sort.Float64s(vals)
		for i := 1; i < len(vals); i++ {
			if d := vals[i] - vals[i-1]; d > 0 && d < s.minRes[ci] {
				s.minRes[ci] = d
			}
		}
	}
}

// Completeness returns the per-channel percentage of expected points
// actually present across all screened files.
func (s *Screen) Completeness() []float64 {
	out := make([]float64, len(s.nonMissing))
	total := float64(s.files * s.expected)
	if total == 0 {
		return out
	}
	for i, n := range s.nonMissing {
		out[i] = float64(n) / total * 100
	}
	return out
}

// Channels returns the channel names in screen order.
func (s *Screen) Channels() []string {
	return s.channels
}

// BadFiles returns the files flagged during screening.
func (s *Screen) BadFiles() []BadFile {
	return s.bad
}

// MinTimeResolution returns the smallest time step seen in good files, or 0
// when none was observed.
func (s *Screen) MinTimeResolution() time.Duration {
	if s.minTimeRes == math.MaxInt64 {
		return 0
	}
	return s.minTimeRes
}

// MinResolution returns the per-channel minimum non-zero value step seen in
// good files; +Inf entries mean no step was observed.
func (s *Screen) MinResolution() []float64 {
	return append([]float64(nil), s.minRes...)
}

// FilesScreened returns how many files were screened.
func (s *Screen) FilesScreened() int {
	return s.files
}
