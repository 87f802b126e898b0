// Package stats computes per-sample channel statistics and accumulates them
// across a logger's samples in arrival (= chronological) order.
package stats

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/cwsl/seascreen/pipeline/frame"
)

// StatNames lists the per-channel statistics in column order.
var StatNames = []string{"min", "max", "mean", "std"}

// Accumulator collects one [min, max, mean, std] vector per channel per
// sample. One instance per logger per variant (unfiltered/filtered).
type Accumulator struct {
	names  []string
	units  []string
	starts []time.Time
	ends   []time.Time
	seqs   []int
	rows   [][]float64 // one row per sample, channel-major: ch0 min..std, ch1 min..std, ...
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// AddSample computes min/max/mean/std per channel over all rows of the
// sample (sample standard deviation, Bessel's correction) and appends them.
// When factors is non-empty and matches the channel count, each channel's
// four statistics are multiplied by its factor: this is the post-hoc unit
// conversion path used by callers that skip conversion during wrangling.
// There are no error conditions; missing-heavy samples propagate NaNs.
func (a *Accumulator) AddSample(fr *frame.Frame, start, end time.Time, fileSeq int, factors []float64) {
	if a.names == nil {
		a.names = append([]string(nil), fr.Names...)
		a.units = append([]string(nil), fr.Units...)
	}
	row := make([]float64, 0, len(fr.Data)*len(StatNames))
	for ci, col := range fr.Data {
		mn, mx := minMax(col)
		mean := stat.Mean(col, nil)
		std := stat.StdDev(col, nil)
		if len(factors) == len(fr.Data) {
			f := factors[ci]
			mn, mx, mean, std = mn*f, mx*f, mean*f, std*f
		}
		row = append(row, mn, mx, mean, std)
	}
	a.rows = append(a.rows, row)
	a.starts = append(a.starts, start)
	a.ends = append(a.ends, end)
	a.seqs = append(a.seqs, fileSeq)
}

func minMax(col []float64) (float64, float64) {
	if len(col) == 0 {
		return math.NaN(), math.NaN()
	}
	mn, mx := col[0], col[0]
	for _, v := range col {
		if math.IsNaN(v) {
			return math.NaN(), math.NaN()
		}
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	return mn, mx
}

// Count returns the number of accumulated samples.
func (a *Accumulator) Count() int {
	return len(a.rows)
}

// Table is the finalized, immutable statistics table for one logger and
// variant. Row order is sample arrival order; columns carry the 3-level
// identity (channel, statistic, unit).
type Table struct {
	Channels []string
	Units    []string
	Starts   []time.Time
	Ends     []time.Time
	FileSeqs []int
	Values   [][]float64 // [sample][channel*4 + stat]
}

// Finalize snapshots the accumulated statistics into an exportable table.
func (a *Accumulator) Finalize() *Table {
	t := &Table{
		Channels: append([]string(nil), a.names...),
		Units:    append([]string(nil), a.units...),
		Starts:   append([]time.Time(nil), a.starts...),
		Ends:     append([]time.Time(nil), a.ends...),
		FileSeqs: append([]int(nil), a.seqs...),
		Values:   make([][]float64, len(a.rows)),
	}
	for i, row := range a.rows {
		t.Values[i] = append([]float64(nil), row...)
	}
	return t
}
