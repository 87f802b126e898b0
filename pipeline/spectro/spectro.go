// Package spectro accumulates Welch power-spectral-density rows per channel
// per sample into 2-D time x frequency spectrograms.
package spectro

import (
	"fmt"
	"time"

	"github.com/cwsl/seascreen/pipeline/dsp"
	"github.com/cwsl/seascreen/pipeline/frame"
)

// Accumulator builds one spectrogram per channel for one logger and
// variant. The frequency axis is computed from the first successful sample
// and assumed constant thereafter; a later row of a different length is an
// error condition, not a silent reshape.
type Accumulator struct {
	windowName  string
	nperseg     int
	noverlapPct float64

	win      []float64
	freqs    []float64
	channels []string
	units    []string
	rows     [][][]float64 // [channel][sample][bin]
	starts   []time.Time
	seqs     []int
	hasTimes bool
	diags    []string
}

// NewAccumulator creates an accumulator with the logger's PSD parameters.
func NewAccumulator(windowName string, nperseg int, noverlapPct float64) *Accumulator {
	return &Accumulator{windowName: windowName, nperseg: nperseg, noverlapPct: noverlapPct}
}

// AddSample computes the Welch PSD of every channel and appends one row per
// channel. The sampling frequency comes from the sample's first two
// timestamps. A sample shorter than the segment length is invalid for that
// sample only: a zero-filled row of the expected bin count is substituted
// and a diagnostic recorded, so subsequent samples keep processing.
func (a *Accumulator) AddSample(fr *frame.Frame, start time.Time, fileSeq int) error {
	if a.channels == nil {
		a.channels = append([]string(nil), fr.Names...)
		a.units = append([]string(nil), fr.Units...)
		a.rows = make([][][]float64, len(fr.Data))
		a.hasTimes = !start.IsZero()
	}
	if a.win == nil {
		win, err := dsp.NewWindow(a.windowName, a.nperseg)
		if err != nil {
			return err
		}
		a.win = win
	}

	fs := dsp.SampleRate(fr)
	noverlap := dsp.OverlapPoints(a.nperseg, a.noverlapPct)
	nbins := a.nperseg/2 + 1

	for ci, col := range fr.Data {
		psd, err := dsp.Welch(col, fs, a.win, noverlap)
		if err != nil {
			// Degraded-sample fallback: keep the spectrogram rectangular
			// with a zero row rather than aborting the logger.
			psd = make([]float64, nbins)
			a.diags = append(a.diags, fmt.Sprintf(
				"sample starting %s has %d rows, fewer than nperseg %d; zero PSD row substituted (consider a shorter segment or window)",
				start.Format(time.RFC3339), fr.Len(), a.nperseg))
		}
		if a.freqs != nil && len(psd) != len(a.freqs) {
			return fmt.Errorf("PSD length %d does not match fixed frequency axis length %d", len(psd), len(a.freqs))
		}
		if a.freqs == nil && fs > 0 {
			a.freqs = dsp.FreqAxis(a.nperseg, fs)
		}
		a.rows[ci] = append(a.rows[ci], psd)
	}
	a.starts = append(a.starts, start)
	a.seqs = append(a.seqs, fileSeq)
	return nil
}

// Count returns the number of accumulated samples.
func (a *Accumulator) Count() int {
	return len(a.starts)
}

// Diagnostics returns the degraded-sample messages collected so far.
func (a *Accumulator) Diagnostics() []string {
	return a.diags
}

// ChannelTable is one channel's finalized spectrogram: rows = samples in
// arrival order, columns = frequency bins. Rows are indexed by sample start
// timestamp when available, else by file sequence number.
type ChannelTable struct {
	Channel  string
	Unit     string
	Freqs    []float64
	Starts   []time.Time
	FileSeqs []int
	HasTimes bool
	Rows     [][]float64
}

// Finalize snapshots the accumulated spectrograms, one table per channel.
func (a *Accumulator) Finalize() []*ChannelTable {
	tables := make([]*ChannelTable, len(a.channels))
	for ci, name := range a.channels {
		unit := ""
		if ci < len(a.units) {
			unit = a.units[ci]
		}
		t := &ChannelTable{
			Channel:  name,
			Unit:     unit,
			Freqs:    append([]float64(nil), a.freqs...),
			Starts:   append([]time.Time(nil), a.starts...),
			FileSeqs: append([]int(nil), a.seqs...),
			HasTimes: a.hasTimes,
			Rows:     make([][]float64, len(a.rows[ci])),
		}
		for i, row := range a.rows[ci] {
			t.Rows[i] = append([]float64(nil), row...)
		}
		tables[ci] = t
	}
	return tables
}
