package formats

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cwsl/seascreen/pipeline/frame"
)

func init() {
	Register("fugro-csv", func(opts Options) Reader {
		return &fugroCSV{}
	})
}

// fugroCSV reads the Fugro accelerometer convention: three fixed header
// rows (a file-info row carrying the sample interval, a channel names row,
// a units row) followed by data. The units cell of the time column is the
// file's own timestamp format declaration, in C strftime notation.
type fugroCSV struct{}

func (f *fugroCSV) Read(r io.Reader, name string) (*frame.RawTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(records) < 4 {
		return nil, fmt.Errorf("failed to read %s: expected 3 header rows plus data, got %d rows", name, len(records))
	}

	t := &frame.RawTable{
		Kind:           frame.TimeText,
		SampleInterval: extractSampleInterval(records[0]),
		Names:          dropFirst(records[1]),
		Units:          dropFirst(records[2]),
	}
	if len(records[2]) > 0 {
		t.TimeLayout = strftimeToLayout(records[2][0])
	}

	width := len(records[1])
	if width < 1 {
		width = 1
	}
	t.Cols = make([][]string, width-1)
	for _, rec := range records[3:] {
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

// extractSampleInterval scans the file-info row for the first parseable
// float, which the convention places after a "Sample Interval:" label.
func extractSampleInterval(rec []string) float64 {
	for _, cell := range rec {
		cell = strings.TrimSpace(cell)
		if i := strings.LastIndex(cell, ":"); i >= 0 {
			cell = strings.TrimSpace(cell[i+1:])
		}
		cell = strings.TrimSuffix(cell, "s")
		if v, err := strconv.ParseFloat(cell, 64); err == nil && v > 0 {
			return v
		}
	}
	return 0
}

// strftimeToLayout translates the C strftime directives the vendor files
// use into a Go reference-time layout.
func strftimeToLayout(format string) string {
	replacer := strings.NewReplacer(
		"%Y", "2006",
		"%y", "06",
		"%m", "01",
		"%d", "02",
		"%H", "15",
		"%M", "04",
		"%S", "05",
		"%f", "999999",
	)
	return replacer.Replace(format)
}
