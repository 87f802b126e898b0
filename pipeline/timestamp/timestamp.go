// Package timestamp resolves file timestamps embedded in logger filenames.
//
// Loggers encode the recording start time in the filename itself, e.g.
// "BOP_2018_0607_1620.csv". A token pattern maps stem positions to datetime
// components: runs of 'Y', 'm', 'D', 'H', 'M', 'S' and 'f' mark year, month,
// day, hour, minute, second and fractional-second digits; any other position
// is a literal placeholder 'x'. A pattern can be declared in configuration
// or auto-detected from one example filename.
package timestamp

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const tokenChars = "YmDHMSf"

// Pattern is a validated filename timestamp pattern.
type Pattern struct {
	tokens string
}

// ParsePattern validates a token pattern string.
func ParsePattern(s string) (Pattern, error) {
	for _, r := range s {
		if r != 'x' && !strings.ContainsRune(tokenChars, r) {
			return Pattern{}, fmt.Errorf("invalid pattern character %q in %q", r, s)
		}
	}
	return Pattern{tokens: s}, nil
}

// String returns the pattern's token string.
func (p Pattern) String() string {
	return p.tokens
}

// IsZero reports whether the pattern is empty (no timestamp embedded).
func (p Pattern) IsZero() bool {
	return p.tokens == ""
}

// HasTimestamp reports whether the pattern contains at least a year token,
// the minimum needed to resolve a timestamp at all.
func (p Pattern) HasTimestamp() bool {
	return strings.ContainsRune(p.tokens, 'Y')
}

// Resolve extracts the timestamp from a filename. The boolean is false when
// the filename does not match the pattern or the extracted digits do not
// form a valid datetime. Resolution failures are data, not program errors:
// callers collect them per file rather than aborting a batch.
func (p Pattern) Resolve(filename string) (time.Time, bool) {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if len(stem) < len(p.tokens) {
		return time.Time{}, false
	}

	var year, month, day, hour, minute, sec, frac strings.Builder
	for i := 0; i < len(p.tokens); i++ {
		c := stem[i]
		switch p.tokens[i] {
		case 'Y':
			year.WriteByte(c)
		case 'm':
			month.WriteByte(c)
		case 'D':
			day.WriteByte(c)
		case 'H':
			hour.WriteByte(c)
		case 'M':
			minute.WriteByte(c)
		case 'S':
			sec.WriteByte(c)
		case 'f':
			frac.WriteByte(c)
		}
	}

	y, ok := atoiComponent(year.String(), 0)
	if !ok || year.Len() == 0 {
		return time.Time{}, false
	}
	// Two-digit years follow the vendor convention of 2000-epoch files.
	if year.Len() == 2 {
		y += 2000
	}
	mo, ok := atoiComponent(month.String(), 1)
	if !ok || mo < 1 || mo > 12 {
		return time.Time{}, false
	}
	d, ok := atoiComponent(day.String(), 1)
	if !ok || d < 1 || d > 31 {
		return time.Time{}, false
	}
	h, ok := atoiComponent(hour.String(), 0)
	if !ok || h > 23 {
		return time.Time{}, false
	}
	mi, ok := atoiComponent(minute.String(), 0)
	if !ok || mi > 59 {
		return time.Time{}, false
	}
	s, ok := atoiComponent(sec.String(), 0)
	if !ok || s > 59 {
		return time.Time{}, false
	}
	ns := 0
	if frac.Len() > 0 {
		fv, err := strconv.Atoi(frac.String())
		if err != nil {
			return time.Time{}, false
		}
		ns = int(float64(fv) / math.Pow10(frac.Len()) * 1e9)
	}

	t := time.Date(y, time.Month(mo), d, h, mi, s, ns, time.UTC)
	// time.Date normalizes out-of-range days (e.g. Feb 31); treat any
	// normalization as a failed parse.
	if t.Day() != d || t.Month() != time.Month(mo) {
		return time.Time{}, false
	}
	return t, true
}

func atoiComponent(s string, def int) (int, bool) {
	if s == "" {
		return def, true
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// Detect derives a pattern from one example filename using the digit-group
// layouts of the known vendor naming conventions. Detection is best effort:
// an unrecognized layout yields a pattern of literal placeholders, which
// later fails timestamp resolution explicitly instead of silently guessing.
func Detect(example string) Pattern {
	stem := strings.TrimSuffix(filepath.Base(example), filepath.Ext(example))
	tokens := []byte(strings.Repeat("x", len(stem)))

	runs := digitRuns(stem)
	lens := make([]int, len(runs))
	for i, r := range runs {
		lens[i] = r.n
	}

	label := func(run digitRun, comps string) {
		copy(tokens[run.start:run.start+run.n], comps)
	}

	switch {
	case matchLens(lens, 14):
		label(runs[0], "YYYYmmDDHHMMSS")
	case matchLens(lens, 12):
		label(runs[0], "YYmmDDHHMMSS")
	case matchLens(lens, 8, 6):
		label(runs[0], "YYYYmmDD")
		label(runs[1], "HHMMSS")
	case matchLens(lens, 6, 6):
		label(runs[0], "YYmmDD")
		label(runs[1], "HHMMSS")
	case matchLens(lens, 4, 4, 4):
		label(runs[0], "YYYY")
		label(runs[1], "mmDD")
		label(runs[2], "HHMM")
	case matchLens(lens, 4, 2, 2, 2, 2, 2):
		// Fully segmented YYYY-mm-DD-HH-MM-SS style names.
		label(runs[0], "YYYY")
		label(runs[1], "mm")
		label(runs[2], "DD")
		label(runs[3], "HH")
		label(runs[4], "MM")
		label(runs[5], "SS")
	case matchLens(lens, 6):
		label(runs[0], "YYmmDD")
	}

	return Pattern{tokens: string(tokens)}
}

type digitRun struct {
	start, n int
}

func digitRuns(s string) []digitRun {
	var runs []digitRun
	i := 0
	for i < len(s) {
		if s[i] < '0' || s[i] > '9' {
			i++
			continue
		}
		j := i
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		runs = append(runs, digitRun{start: i, n: j - i})
		i = j
	}
	return runs
}

func matchLens(got []int, want ...int) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
