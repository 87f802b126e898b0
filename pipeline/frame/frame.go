// Package frame defines the tabular types passed between pipeline stages:
// the raw parsed contents of one logger file and the normalized numeric
// frame that sampling and screening operate on.
package frame

import (
	"math"
	"time"
)

// TimeKind identifies how a raw table's first column encodes time.
type TimeKind int

const (
	// TimeText is a text column that needs parsing with a layout string
	TimeText TimeKind = iota
	// TimeSeconds is a numeric seconds-since-file-start offset column
	TimeSeconds
	// TimeAbsolute is an already-parsed absolute timestamp column
	TimeAbsolute
)

// RawTable holds the parsed contents of one logger file before
// normalization. The time column is kept in whichever representation the
// file format delivered; channel cells stay as raw strings so the wrangler
// can coerce non-numeric entries to missing.
type RawTable struct {
	Names []string // channel names from the file header (may be empty)
	Units []string // channel units from the file header (may be empty)

	Kind     TimeKind
	TimeText []string    // populated when Kind == TimeText
	TimeSecs []float64   // populated when Kind == TimeSeconds
	Times    []time.Time // populated when Kind == TimeAbsolute

	// Cols holds one slice per channel column (time column excluded),
	// each the same length as the time column.
	Cols [][]string

	// SampleInterval is the time step embedded in the file header, if the
	// format declares one (0 otherwise).
	SampleInterval float64

	// TimeLayout is the timestamp layout embedded in the file header, for
	// formats whose units row doubles as the time format declaration.
	TimeLayout string

	// StartTime is the absolute file start embedded in the file header,
	// for formats with a start-timestamp marker line.
	StartTime    time.Time
	HasStartTime bool
}

// Rows returns the number of data rows in the table.
func (t *RawTable) Rows() int {
	switch t.Kind {
	case TimeText:
		return len(t.TimeText)
	case TimeSeconds:
		return len(t.TimeSecs)
	default:
		return len(t.Times)
	}
}

// Frame is a normalized numeric table: absolute timestamps plus named
// channel columns. Missing values are NaN. Data is column-major; every
// column has len(Times) entries.
type Frame struct {
	Times []time.Time
	Names []string
	Units []string
	Data  [][]float64
}

// New returns an empty frame with the given channel names and units.
func New(names, units []string) *Frame {
	f := &Frame{
		Names: append([]string(nil), names...),
		Units: append([]string(nil), units...),
		Data:  make([][]float64, len(names)),
	}
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Times)
}

// Channels returns the number of channel columns.
func (f *Frame) Channels() int {
	return len(f.Data)
}

// AppendRows appends rows [0, n) of src to f. The two frames must have the
// same channel count; names and units are taken from src when f is empty.
func (f *Frame) AppendRows(src *Frame, n int) {
	if f.Channels() == 0 && f.Len() == 0 {
		f.Names = append([]string(nil), src.Names...)
		f.Units = append([]string(nil), src.Units...)
		f.Data = make([][]float64, len(src.Data))
	}
	f.Times = append(f.Times, src.Times[:n]...)
	for i := range f.Data {
		f.Data[i] = append(f.Data[i], src.Data[i][:n]...)
	}
}

// DropRows removes the first n rows in place.
func (f *Frame) DropRows(n int) {
	f.Times = f.Times[n:]
	for i := range f.Data {
		f.Data[i] = f.Data[i][n:]
	}
}

// Reset empties the frame while keeping its channel identity.
func (f *Frame) Reset() {
	f.Times = nil
	for i := range f.Data {
		f.Data[i] = nil
	}
}

// Clone returns a deep copy. Finalized samples are cloned before handoff so
// downstream consumers never alias the sampler's buffer.
func (f *Frame) Clone() *Frame {
	c := &Frame{
		Times: append([]time.Time(nil), f.Times...),
		Names: append([]string(nil), f.Names...),
		Units: append([]string(nil), f.Units...),
		Data:  make([][]float64, len(f.Data)),
	}
	for i, col := range f.Data {
		c.Data[i] = append([]float64(nil), col...)
	}
	return c
}

// Missing is the canonical missing-value marker.
func Missing() float64 {
	return math.NaN()
}
