package formats

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cwsl/seascreen/pipeline/frame"
)

func init() {
	Register("acc-text", func(opts Options) Reader {
		return &accText{}
	})
}

// accText reads the accelerometer line-record convention: '%'-prefixed
// header lines carrying an absolute start-timestamp marker, the sample
// interval and channel metadata, followed by whitespace-separated records
// whose first column is a numeric seconds-since-start time step.
type accText struct{}

const accTextStartLayout = "2006-01-02 15:04:05"

func (a *accText) Read(r io.Reader, name string) (*frame.RawTable, error) {
	t := &frame.RawTable{Kind: frame.TimeSeconds}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "%") {
			a.parseHeaderLine(t, strings.TrimPrefix(line, "%"))
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("failed to read %s: malformed record on line %d", name, lineNo)
		}
		sec, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: bad time step %q on line %d", name, fields[0], lineNo)
		}
		if t.Cols == nil {
			t.Cols = make([][]string, len(fields)-1)
		}
		t.TimeSecs = append(t.TimeSecs, sec)
		for c := range t.Cols {
			v := ""
			if c+1 < len(fields) {
				v = fields[c+1]
			}
			t.Cols[c] = append(t.Cols[c], v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(t.TimeSecs) == 0 {
		return nil, fmt.Errorf("failed to read %s: no data records", name)
	}
	return t, nil
}

func (a *accText) parseHeaderLine(t *frame.RawTable, line string) {
	key, val, ok := strings.Cut(line, ":")
	if !ok {
		return
	}
	val = strings.TrimSpace(val)
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "start", "start time":
		// The marker carries the rest of the line including further colons.
		if ts, err := time.Parse(accTextStartLayout, val); err == nil {
			t.StartTime = ts
			t.HasStartTime = true
		}
	case "interval", "sample interval":
		if v, err := strconv.ParseFloat(strings.TrimSuffix(val, "s"), 64); err == nil {
			t.SampleInterval = v
		}
	case "channels":
		t.Names = strings.Fields(val)
	case "units":
		t.Units = strings.Fields(val)
	}
}
