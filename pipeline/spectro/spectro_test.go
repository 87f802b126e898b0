package spectro

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/cwsl/seascreen/pipeline/frame"
)

func sineFrame(n int, fs, freq float64) *frame.Frame {
	fr := &frame.Frame{
		Names: []string{"AccelX"},
		Units: []string{"m/s^2"},
		Data:  [][]float64{make([]float64, n)},
		Times: make([]time.Time, n),
	}
	base := time.Date(2018, 6, 7, 16, 20, 0, 0, time.UTC)
	dt := time.Duration(float64(time.Second) / fs)
	for i := 0; i < n; i++ {
		fr.Times[i] = base.Add(time.Duration(i) * dt)
		fr.Data[0][i] = math.Sin(2 * math.Pi * freq * float64(i) / fs)
	}
	return fr
}

func TestAddSample(t *testing.T) {
	a := NewAccumulator("hann", 64, 50)
	fr := sineFrame(256, 32, 4)
	if err := a.AddSample(fr, fr.Times[0], 1); err != nil {
		t.Fatalf("AddSample() error = %v", err)
	}
	if a.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", a.Count())
	}

	tables := a.Finalize()
	if len(tables) != 1 {
		t.Fatalf("len(tables) = %d, want 1", len(tables))
	}
	tab := tables[0]
	if tab.Channel != "AccelX" || tab.Unit != "m/s^2" {
		t.Errorf("identity = %q/%q, want AccelX/m/s^2", tab.Channel, tab.Unit)
	}
	if len(tab.Freqs) != 33 {
		t.Fatalf("len(Freqs) = %d, want 33", len(tab.Freqs))
	}
	if len(tab.Rows) != 1 || len(tab.Rows[0]) != 33 {
		t.Fatalf("spectrogram shape = %dx%d, want 1x33", len(tab.Rows), len(tab.Rows[0]))
	}

	peak := 0
	for i, p := range tab.Rows[0] {
		if p > tab.Rows[0][peak] {
			peak = i
		}
	}
	if math.Abs(tab.Freqs[peak]-4) > 1e-9 {
		t.Errorf("PSD peak at %v Hz, want 4", tab.Freqs[peak])
	}
	if !tab.HasTimes {
		t.Error("HasTimes = false, want true for timestamped samples")
	}
}

func TestAddSampleShortSampleDegrades(t *testing.T) {
	a := NewAccumulator("hann", 256, 50)

	// A 100-row sample cannot fit one 256-point segment: a zero row is
	// substituted and later samples still process.
	short := sineFrame(100, 32, 4)
	if err := a.AddSample(short, short.Times[0], 1); err != nil {
		t.Fatalf("AddSample(short) error = %v", err)
	}
	full := sineFrame(512, 32, 4)
	if err := a.AddSample(full, full.Times[0], 2); err != nil {
		t.Fatalf("AddSample(full) error = %v", err)
	}

	diags := a.Diagnostics()
	if len(diags) != 1 || !strings.Contains(diags[0], "zero PSD row") {
		t.Fatalf("Diagnostics() = %v, want one zero-row diagnostic", diags)
	}

	tab := a.Finalize()[0]
	if len(tab.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(tab.Rows))
	}
	for i, p := range tab.Rows[0] {
		if p != 0 {
			t.Fatalf("degraded row bin %d = %v, want 0", i, p)
		}
	}
	var sum float64
	for _, p := range tab.Rows[1] {
		sum += p
	}
	if sum == 0 {
		t.Error("full sample row is all zero, want real PSD content")
	}
}

func TestAddSampleBadWindow(t *testing.T) {
	a := NewAccumulator("kaiser", 64, 50)
	fr := sineFrame(128, 32, 4)
	if err := a.AddSample(fr, fr.Times[0], 1); err == nil {
		t.Error("AddSample() error = nil, want unknown window error")
	}
}
