package formats

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/cwsl/seascreen/pipeline/frame"
)

func init() {
	Register("general-csv", func(opts Options) Reader {
		return &generalCSV{opts: opts}
	})
}

// generalCSV reads generic delimited text files with user-declared header
// row numbers for channel names and units. The first column is kept as text
// and parsed to timestamps later by the wrangler.
type generalCSV struct {
	opts Options
}

func (g *generalCSV) Read(r io.Reader, name string) (*frame.RawTable, error) {
	cr := csv.NewReader(r)
	if g.opts.Delimiter != 0 {
		cr.Comma = g.opts.Delimiter
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("failed to read %s: file is empty", name)
	}

	dataRow := g.opts.DataRow
	if dataRow == 0 {
		dataRow = max(g.opts.NamesRow, g.opts.UnitsRow) + 1
	}
	if dataRow > len(records) {
		return nil, fmt.Errorf("failed to read %s: no data rows after %d header rows", name, dataRow-1)
	}

	t := &frame.RawTable{Kind: frame.TimeText}
	if g.opts.NamesRow > 0 && g.opts.NamesRow <= len(records) {
		t.Names = dropFirst(records[g.opts.NamesRow-1])
	}
	if g.opts.UnitsRow > 0 && g.opts.UnitsRow <= len(records) {
		t.Units = dropFirst(records[g.opts.UnitsRow-1])
	}

	width := 0
	for _, rec := range records[dataRow-1:] {
		if len(rec) > width {
			width = len(rec)
		}
	}
	if width < 1 {
		return nil, fmt.Errorf("failed to read %s: cannot determine time column", name)
	}
	t.Cols = make([][]string, width-1)
	for _, rec := range records[dataRow-1:] {
		if len(rec) == 0 {
			continue
		}
		t.TimeText = append(t.TimeText, rec[0])
		for c := 1; c < width; c++ {
			v := ""
			if c < len(rec) {
				v = rec[c]
			}
			t.Cols[c-1] = append(t.Cols[c-1], v)
		}
	}
	return t, nil
}

func dropFirst(rec []string) []string {
	if len(rec) <= 1 {
		return nil
	}
	return append([]string(nil), rec[1:]...)
}
