// Package wrangle normalizes a parsed file table into the processing-ready
// frame: requested columns selected (with missing ones padded), channels
// renamed, timestamps made absolute, non-numeric cells coerced to missing
// and optional unit conversion applied.
package wrangle

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cwsl/seascreen/pipeline/frame"
)

// Params carries the per-logger normalization settings.
type Params struct {
	// ColsToProcess holds 1-indexed spreadsheet column numbers, where
	// column 1 is the time column. This is the single conversion point
	// between user columns and internal indexes: user column c maps to
	// internal index c-1, and the time column (internal 0) is always kept.
	ColsToProcess []int

	ChannelNames []string // resolved channel names, one per processed column
	ChannelUnits []string

	// UnitConvFactors multiplies each channel column elementwise when its
	// length matches the processed channel count.
	UnitConvFactors []float64

	// TimeLayout parses text time columns. A layout embedded in the file
	// header takes precedence.
	TimeLayout string
}

// Wrangle normalizes one raw table. fileStart anchors formats whose time
// column is a seconds-since-start offset. Per-row data problems become
// missing values; only structural problems (no usable time column) error.
func Wrangle(raw *frame.RawTable, p Params, fileStart time.Time) (*frame.Frame, []string, error) {
	rows := raw.Rows()
	if rows == 0 {
		return nil, nil, fmt.Errorf("cannot determine time column: table has no rows")
	}

	cols := dropEmptyColumns(raw.Cols)

	times, err := resolveTimes(raw, p, fileStart)
	if err != nil {
		return nil, nil, err
	}

	var warnings []string
	nch := len(p.ColsToProcess)
	out := &frame.Frame{
		Times: times,
		Names: make([]string, nch),
		Units: make([]string, nch),
		Data:  make([][]float64, nch),
	}
	for i, c := range p.ColsToProcess {
		idx := c - 1 // user column -> internal index; internal 0 is time
		out.Names[i] = channelLabel(p.ChannelNames, i, idx)
		out.Units[i] = channelUnit(p.ChannelUnits, i)

		col := make([]float64, rows)
		if idx-1 < 0 || idx-1 >= len(cols) {
			// Requested column beyond the table's width: process what
			// exists, pad what's absent.
			warnings = append(warnings, fmt.Sprintf("column %d not present in file; padded with missing values", c))
			for r := range col {
				col[r] = frame.Missing()
			}
		} else {
			src := cols[idx-1]
			for r := range col {
				v, err := strconv.ParseFloat(strings.TrimSpace(src[r]), 64)
				if err != nil {
					col[r] = frame.Missing()
					continue
				}
				col[r] = v
			}
		}
		out.Data[i] = col
	}

	if len(p.UnitConvFactors) == nch {
		for i, factor := range p.UnitConvFactors {
			for r := range out.Data[i] {
				out.Data[i][r] *= factor
			}
		}
	}
	return out, warnings, nil
}

func resolveTimes(raw *frame.RawTable, p Params, fileStart time.Time) ([]time.Time, error) {
	switch raw.Kind {
	case frame.TimeAbsolute:
		return append([]time.Time(nil), raw.Times...), nil
	case frame.TimeSeconds:
		start := fileStart
		if raw.HasStartTime {
			start = raw.StartTime
		}
		times := make([]time.Time, len(raw.TimeSecs))
		for i, sec := range raw.TimeSecs {
			times[i] = start.Add(time.Duration(sec * float64(time.Second)))
		}
		return times, nil
	case frame.TimeText:
		layout := p.TimeLayout
		if raw.TimeLayout != "" {
			layout = raw.TimeLayout
		}
		if layout == "" {
			return nil, fmt.Errorf("cannot determine time column: no datetime format configured")
		}
		times := make([]time.Time, len(raw.TimeText))
		for i, s := range raw.TimeText {
			// Unparsable entries stay as the zero time (missing), the
			// row itself is kept.
			if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
				times[i] = t
			}
		}
		return times, nil
	}
	return nil, fmt.Errorf("cannot determine time column: unknown time kind")
}

// dropEmptyColumns removes channel columns whose every cell is blank,
// a cleanup needed by conventions that pad records with trailing delimiters.
func dropEmptyColumns(cols [][]string) [][]string {
	var out [][]string
	for _, col := range cols {
		empty := true
		for _, v := range col {
			if strings.TrimSpace(v) != "" {
				empty = false
				break
			}
		}
		if !empty {
			out = append(out, col)
		}
	}
	return out
}

func channelLabel(names []string, i, internalIdx int) string {
	if i < len(names) && names[i] != "" {
		return names[i]
	}
	return fmt.Sprintf("Column %d", internalIdx+1)
}

func channelUnit(units []string, i int) string {
	if i < len(units) && units[i] != "" {
		return units[i]
	}
	return "-"
}
