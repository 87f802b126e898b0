// Package formats parses raw logger files into a uniform tabular shape.
//
// Each vendor file convention is one Reader implementation behind a registry
// keyed by format id, so components never branch on format strings. Every
// reader returns the same logical shape: a time column (text, seconds offset
// or absolute) plus named channel columns.
package formats

import (
	"fmt"
	"io"
	"sort"

	"github.com/cwsl/seascreen/pipeline/frame"
)

// Reader parses one raw file into a RawTable. Errors identify the file and
// are recorded per file by the caller, never fatal to a logger's batch.
type Reader interface {
	Read(r io.Reader, name string) (*frame.RawTable, error)
}

// Options carries the per-logger file convention parameters a reader may
// need. Row numbers are 1-indexed spreadsheet-style; 0 means absent.
type Options struct {
	Delimiter rune // field delimiter for delimited formats (default ',')
	NamesRow  int  // header row holding channel names
	UnitsRow  int  // header row holding channel units
	DataRow   int  // first data row (default: after the last header row)
}

type factory func(Options) Reader

var registry = map[string]factory{}

// Register adds a reader factory under a format id. Formats register
// themselves from init; legacy conventions (pulse-acc, 2hps2-acc) are
// adapter slots left unregistered.
func Register(id string, f factory) {
	registry[id] = f
}

// New returns a reader for the given format id.
func New(id string, opts Options) (Reader, error) {
	f, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("unknown file format %q (known: %v)", id, Known())
	}
	return f(opts), nil
}

// Known returns the registered format ids, sorted.
func Known() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
