package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwsl/seascreen/pipeline/timestamp"
)

// writeLoggerFile writes a general-csv fixture: names row, units row, then
// rows at 10 Hz of the constant value 5.0 on two channels.
func writeLoggerFile(t *testing.T, dir, name string, start time.Time, rows int) {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("Time,AccelX,AccelY\n")
	sb.WriteString("datetime,m/s^2,m/s^2\n")
	for i := 0; i < rows; i++ {
		ts := start.Add(time.Duration(i) * 100 * time.Millisecond)
		fmt.Fprintf(&sb, "%s,5.0,5.0\n", ts.Format("2006-01-02 15:04:05.000"))
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}
}

// fixtureConfig builds a single-logger run over dataDir: 10 Hz, 1 s files
// (10 expected points), stats windows of 1.2 s (12 rows), spectral windows of
// 1 s, a 2 Hz low-pass, short files rejected.
func fixtureConfig(t *testing.T, dataDir, outDir string) *Config {
	t.Helper()
	pattern, err := timestamp.ParsePattern("xxxxYYYYxmmDDxHHMM")
	if err != nil {
		t.Fatal(err)
	}
	allow := false
	high := 2.0
	return &Config{
		Campaign: CampaignConfig{
			ProjectNumber: "P-100",
			CampaignName:  "BOP monitoring",
			OutputPath:    outDir,
		},
		General: GeneralConfig{
			StatsCSV:        true,
			SpectCSV:        true,
			AllowShortFiles: &allow,
		},
		Loggers: []LoggerConfig{{
			ID:            "bop",
			Path:          dataDir,
			FileFormat:    "general-csv",
			Extension:     "csv",
			Delimiter:     ",",
			ChannelRow:    1,
			UnitsRow:      2,
			FileTimestamp: "xxxxYYYYxmmDDxHHMM",
			DatetimeFmt:   "2006-01-02 15:04:05.000",
			Frequency:     10,
			Duration:      1,
			ColsToProcess: []int{2, 3},
			HighCutoff:    &high,
			StatsInterval: 1.2,
			SpectInterval: 1,
			PSD:           PSDConfig{Nperseg: 8, Window: "hann", OverlapPct: 50},
			pattern:       pattern,
		}},
	}
}

func TestRunEndToEnd(t *testing.T) {
	dataDir, outDir := t.TempDir(), t.TempDir()

	// Three contiguous good files, one short file and one unparseable name.
	base := time.Date(2018, 6, 7, 16, 20, 0, 0, time.UTC)
	writeLoggerFile(t, dataDir, "BOP_2018_0607_1620.csv", base, 10)
	writeLoggerFile(t, dataDir, "BOP_2018_0607_1621.csv", base.Add(time.Second), 10)
	writeLoggerFile(t, dataDir, "BOP_2018_0607_1622.csv", base.Add(2*time.Second), 10)
	writeLoggerFile(t, dataDir, "BOP_2018_0607_1623.csv", base.Add(3*time.Second), 7)
	writeLoggerFile(t, dataDir, "junk.csv", base, 10)

	cfg := fixtureConfig(t, dataDir, outDir)
	orch := NewOrchestrator(cfg, nil, nil)
	summary, err := orch.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Cancelled {
		t.Fatal("Cancelled = true, want false")
	}
	if summary.TotalFiles != 4 {
		t.Errorf("TotalFiles = %d, want 4 (junk.csv excluded by name)", summary.TotalFiles)
	}
	if len(summary.Results) != 1 {
		t.Fatalf("len(Results) = %d, want 1", len(summary.Results))
	}
	r := summary.Results[0]

	if len(r.Channels) != 2 || r.Channels[0] != "AccelX" || r.Channels[1] != "AccelY" {
		t.Errorf("Channels = %v, want header-derived [AccelX AccelY]", r.Channels)
	}
	if r.Units[0] != "m/s^2" {
		t.Errorf("Units[0] = %q, want m/s^2", r.Units[0])
	}

	// 4 screened files x 10 expected points, 37 present: 92.5%.
	if len(r.Completeness) != 2 || math.Abs(r.Completeness[0]-92.5) > 1e-9 {
		t.Errorf("Completeness = %v, want [92.5 92.5]", r.Completeness)
	}
	if r.MinTimeResolution != 100*time.Millisecond {
		t.Errorf("MinTimeResolution = %v, want 100ms", r.MinTimeResolution)
	}

	// 30 good rows through a 12-row stats window: two full samples and one
	// 6-row end-of-stream sample.
	if r.StatsUnfilt == nil || len(r.StatsUnfilt.Values) != 3 {
		t.Fatalf("StatsUnfilt = %v, want 3 samples", r.StatsUnfilt)
	}
	mean := r.StatsUnfilt.Values[0][2]
	if math.Abs(mean-5.0) > 1e-9 {
		t.Errorf("sample 0 mean = %v, want 5.0", mean)
	}
	// The first sample spans the boundary between files 1 and 2, so it is
	// attributed to the file that completed it.
	if r.StatsUnfilt.FileSeqs[0] != 2 {
		t.Errorf("sample 0 FileSeq = %d, want 2", r.StatsUnfilt.FileSeqs[0])
	}

	// The low-pass keeps DC, so the filtered mean of a constant is unchanged.
	if r.StatsFilt == nil || len(r.StatsFilt.Values) != 3 {
		t.Fatalf("StatsFilt = %v, want 3 samples", r.StatsFilt)
	}
	if got := r.StatsFilt.Values[0][2]; math.Abs(got-5.0) > 1e-9 {
		t.Errorf("filtered sample 0 mean = %v, want 5.0", got)
	}

	// 30 rows through a 10-row spectral window: three samples per channel.
	if len(r.SpectUnfilt) != 2 {
		t.Fatalf("len(SpectUnfilt) = %d, want 2 channels", len(r.SpectUnfilt))
	}
	spec := r.SpectUnfilt[0]
	if len(spec.Rows) != 3 {
		t.Errorf("spectrogram rows = %d, want 3", len(spec.Rows))
	}
	if len(spec.Freqs) != 5 {
		t.Errorf("len(Freqs) = %d, want 5 for nperseg 8", len(spec.Freqs))
	}

	// Outputs on disk: stats CSV, per-channel spectrogram CSVs, report.
	statsPath := filepath.Join(outDir, "Statistics", "Statistics bop.csv")
	if _, err := os.Stat(statsPath); err != nil {
		t.Errorf("stats CSV missing: %v", err)
	}
	spectPath := filepath.Join(outDir, "Spectrograms", "Spectrogram bop AccelX.csv")
	if _, err := os.Stat(spectPath); err != nil {
		t.Errorf("spectrogram CSV missing: %v", err)
	}
	if summary.ReportPath == "" {
		t.Fatal("ReportPath empty")
	}
	if _, err := os.Stat(summary.ReportPath); err != nil {
		t.Errorf("screening report missing: %v", err)
	}
	if len(summary.Manifest) == 0 {
		t.Error("Manifest empty, want written outputs listed")
	}
}

func TestRunFilteredTrailingSampleAligned(t *testing.T) {
	dataDir, outDir := t.TempDir(), t.TempDir()
	base := time.Date(2018, 6, 7, 16, 20, 0, 0, time.UTC)
	writeLoggerFile(t, dataDir, "BOP_2018_0607_1620.csv", base, 10)
	writeLoggerFile(t, dataDir, "BOP_2018_0607_1621.csv", base.Add(time.Second), 10)
	writeLoggerFile(t, dataDir, "BOP_2018_0607_1622.csv", base.Add(2*time.Second), 10)

	// A 29-row stats window over 30 rows leaves a one-row trailing sample,
	// which is too short to filter.
	cfg := fixtureConfig(t, dataDir, outDir)
	cfg.Loggers[0].StatsInterval = 2.9
	cfg.Loggers[0].SpectInterval = 0

	orch := NewOrchestrator(cfg, nil, nil)
	summary, err := orch.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	r := summary.Results[0]

	if r.StatsUnfilt == nil || len(r.StatsUnfilt.Values) != 2 {
		t.Fatalf("StatsUnfilt = %v, want 2 samples", r.StatsUnfilt)
	}
	if r.StatsFilt == nil || len(r.StatsFilt.Values) != 2 {
		t.Fatalf("StatsFilt = %v, want 2 samples aligned with unfiltered", r.StatsFilt)
	}
	if got := r.StatsFilt.Values[0][2]; math.Abs(got-5.0) > 1e-9 {
		t.Errorf("filtered sample 0 mean = %v, want 5.0", got)
	}
	for c, v := range r.StatsFilt.Values[1] {
		if !math.IsNaN(v) {
			t.Errorf("filtered trailing sample column %d = %v, want NaN", c, v)
		}
	}
	if !r.StatsFilt.Starts[1].Equal(r.StatsUnfilt.Starts[1]) {
		t.Errorf("filtered trailing Start = %v, want %v", r.StatsFilt.Starts[1], r.StatsUnfilt.Starts[1])
	}

	// The consolidated export keeps the filtered columns.
	data, err := os.ReadFile(filepath.Join(outDir, "Statistics", "Statistics bop.csv"))
	if err != nil {
		t.Fatalf("stats CSV missing: %v", err)
	}
	if !strings.Contains(string(data), "min (filtered)") {
		t.Error("stats CSV lacks filtered columns, want them exported alongside unfiltered")
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	dataDir, outDir := t.TempDir(), t.TempDir()
	writeLoggerFile(t, dataDir, "BOP_2018_0607_1620.csv", time.Date(2018, 6, 7, 16, 20, 0, 0, time.UTC), 10)

	cfg := fixtureConfig(t, dataDir, outDir)
	orch := NewOrchestrator(cfg, nil, nil)
	orch.Cancel()

	summary, err := orch.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !summary.Cancelled {
		t.Error("Cancelled = false, want true")
	}
	if len(summary.Results) != 0 {
		t.Errorf("len(Results) = %d, want 0", len(summary.Results))
	}
}

func TestRunDiscoveryFailure(t *testing.T) {
	cfg := fixtureConfig(t, filepath.Join(t.TempDir(), "missing"), t.TempDir())
	orch := NewOrchestrator(cfg, nil, nil)
	if _, err := orch.Run(); err == nil {
		t.Error("Run() error = nil, want discovery failure for single-logger run")
	}
}

func TestResolveChannelsOverride(t *testing.T) {
	dataDir := t.TempDir()
	writeLoggerFile(t, dataDir, "BOP_2018_0607_1620.csv", time.Date(2018, 6, 7, 16, 20, 0, 0, time.UTC), 10)

	cfg := fixtureConfig(t, dataDir, t.TempDir())
	cfg.Loggers[0].ChannelNames = []string{"Surge", "Sway"}
	cfg.Loggers[0].ChannelUnits = []string{"m", "m"}

	orch := NewOrchestrator(cfg, nil, nil)
	summary, err := orch.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	r := summary.Results[0]
	if r.Channels[0] != "Surge" || r.Units[0] != "m" {
		t.Errorf("Channels/Units = %v/%v, want user overrides", r.Channels, r.Units)
	}
}
