package main

import (
	"encoding/csv"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/xuri/excelize/v2"

	"github.com/cwsl/seascreen/pipeline/spectro"
	"github.com/cwsl/seascreen/pipeline/stats"
)

const timeLayoutExport = "2006-01-02 15:04:05.000"

// Exporter serializes finalized statistics and spectrogram tables into the
// enabled output formats and keeps a manifest of everything written.
type Exporter struct {
	root     string
	general  GeneralConfig
	manifest []string
}

// NewExporter creates an exporter rooted at the campaign output path
func NewExporter(root string, general GeneralConfig) *Exporter {
	return &Exporter{root: root, general: general}
}

// Manifest returns the paths written so far, in write order
func (e *Exporter) Manifest() []string {
	return append([]string(nil), e.manifest...)
}

// statsExport is the consolidated statistics table: unfiltered and filtered
// columns paired adjacently per channel statistic, with the 3-level column
// identity (channel, statistic, unit) flattened into parallel slices.
type statsExport struct {
	Channels []string
	Stats    []string
	Units    []string
	Starts   []time.Time
	Ends     []time.Time
	FileSeqs []int
	HasTimes bool
	Values   [][]float64 // [row][column]
}

// combineStats pairs each channel's unfiltered and filtered statistic
// columns adjacently. filt may be nil.
func combineStats(unfilt, filt *stats.Table) *statsExport {
	out := &statsExport{
		Starts:   unfilt.Starts,
		Ends:     unfilt.Ends,
		FileSeqs: unfilt.FileSeqs,
		Values:   make([][]float64, len(unfilt.Values)),
	}
	if len(unfilt.Starts) > 0 && !unfilt.Starts[0].IsZero() {
		out.HasTimes = true
	}
	withFilt := filt != nil && len(filt.Values) == len(unfilt.Values)
	nstats := len(stats.StatNames)
	for ci, ch := range unfilt.Channels {
		unit := "-"
		if ci < len(unfilt.Units) {
			unit = unfilt.Units[ci]
		}
		for si, st := range stats.StatNames {
			col := ci*nstats + si
			out.Channels = append(out.Channels, ch)
			out.Stats = append(out.Stats, st)
			out.Units = append(out.Units, unit)
			for r := range unfilt.Values {
				out.Values[r] = append(out.Values[r], unfilt.Values[r][col])
			}
			if withFilt {
				out.Channels = append(out.Channels, ch)
				out.Stats = append(out.Stats, st+" (filtered)")
				out.Units = append(out.Units, unit)
				for r := range unfilt.Values {
					out.Values[r] = append(out.Values[r], filt.Values[r][col])
				}
			}
		}
	}
	return out
}

// ExportStats writes a logger's consolidated statistics in every enabled
// format. filt may be nil when filtering was not requested.
func (e *Exporter) ExportStats(loggerID string, unfilt, filt *stats.Table) error {
	if unfilt == nil || len(unfilt.Values) == 0 {
		return nil
	}
	table := combineStats(unfilt, filt)
	dir := filepath.Join(e.root, "Statistics")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	if e.general.StatsCSV {
		path := filepath.Join(dir, fmt.Sprintf("Statistics %s.csv", loggerID))
		if err := writeStatsCSV(path, table); err != nil {
			return err
		}
		e.manifest = append(e.manifest, path)
	}
	if e.general.StatsXLSX {
		path := filepath.Join(dir, fmt.Sprintf("Statistics %s.xlsx", loggerID))
		if err := writeStatsXLSX(path, table); err != nil {
			return err
		}
		e.manifest = append(e.manifest, path)
	}
	if e.general.StatsTable {
		path := filepath.Join(dir, fmt.Sprintf("Statistics %s.gob.zst", loggerID))
		if err := writeBinaryTable(path, map[string]*statsExport{loggerID: table}); err != nil {
			return err
		}
		e.manifest = append(e.manifest, path)
	}
	return nil
}

func writeStatsCSV(path string, t *statsExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)

	header := func(label string, cells []string) []string {
		return append([]string{label, ""}, cells...)
	}
	if err := w.Write(header("Channel", t.Channels)); err != nil {
		return err
	}
	if err := w.Write(header("Statistic", t.Stats)); err != nil {
		return err
	}
	if err := w.Write(append([]string{"Start", "End"}, t.Units...)); err != nil {
		return err
	}
	for r, row := range t.Values {
		rec := make([]string, 0, len(row)+2)
		rec = append(rec, sampleLabel(t, r), endLabel(t, r))
		for _, v := range row {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeStatsXLSX(path string, t *statsExport) error {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Statistics"
	f.SetSheetName("Sheet1", sheet)

	setRow := func(row int, first, second string, cells []string) {
		f.SetCellValue(sheet, cellName(1, row), first)
		f.SetCellValue(sheet, cellName(2, row), second)
		for i, c := range cells {
			f.SetCellValue(sheet, cellName(i+3, row), c)
		}
	}
	setRow(1, "Channel", "", t.Channels)
	setRow(2, "Statistic", "", t.Stats)
	setRow(3, "Start", "End", t.Units)
	for r, row := range t.Values {
		f.SetCellValue(sheet, cellName(1, r+4), sampleLabel(t, r))
		f.SetCellValue(sheet, cellName(2, r+4), endLabel(t, r))
		for c, v := range row {
			f.SetCellValue(sheet, cellName(c+3, r+4), v)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func sampleLabel(t *statsExport, r int) string {
	if t.HasTimes {
		return t.Starts[r].Format(timeLayoutExport)
	}
	return strconv.Itoa(t.FileSeqs[r])
}

func endLabel(t *statsExport, r int) string {
	if t.HasTimes {
		return t.Ends[r].Format(timeLayoutExport)
	}
	return strconv.Itoa(t.FileSeqs[r])
}

// ExportSpectrograms writes one table per channel in every enabled format.
// variant is "" for unfiltered output and "filtered" for the filtered pass.
func (e *Exporter) ExportSpectrograms(loggerID, variant string, tables []*spectro.ChannelTable) error {
	if len(tables) == 0 {
		return nil
	}
	dir := filepath.Join(e.root, "Spectrograms")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	suffix := ""
	if variant != "" {
		suffix = " " + variant
	}

	if e.general.SpectCSV {
		for _, t := range tables {
			path := filepath.Join(dir, fmt.Sprintf("Spectrogram %s %s%s.csv", loggerID, t.Channel, suffix))
			if err := writeSpectroCSV(path, t); err != nil {
				return err
			}
			e.manifest = append(e.manifest, path)
		}
	}
	if e.general.SpectXLSX {
		path := filepath.Join(dir, fmt.Sprintf("Spectrograms %s%s.xlsx", loggerID, suffix))
		if err := writeSpectroXLSX(path, tables); err != nil {
			return err
		}
		e.manifest = append(e.manifest, path)
	}
	if e.general.SpectTable {
		path := filepath.Join(dir, fmt.Sprintf("Spectrograms %s%s.gob.zst", loggerID, suffix))
		keyed := make(map[string]*spectro.ChannelTable, len(tables))
		for _, t := range tables {
			keyed[t.Channel] = t
		}
		if err := writeBinaryTable(path, keyed); err != nil {
			return err
		}
		e.manifest = append(e.manifest, path)
	}
	return nil
}

func writeSpectroCSV(path string, t *spectro.ChannelTable) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)

	header := make([]string, 0, len(t.Freqs)+1)
	header = append(header, "Start")
	for _, fr := range t.Freqs {
		header = append(header, strconv.FormatFloat(fr, 'g', -1, 64))
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for r, row := range t.Rows {
		rec := make([]string, 0, len(row)+1)
		rec = append(rec, spectroLabel(t, r))
		for _, v := range row {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeSpectroXLSX(path string, tables []*spectro.ChannelTable) error {
	f := excelize.NewFile()
	defer f.Close()
	for i, t := range tables {
		sheet := t.Channel
		if i == 0 {
			f.SetSheetName("Sheet1", sheet)
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}
		f.SetCellValue(sheet, cellName(1, 1), "Start")
		for c, fr := range t.Freqs {
			f.SetCellValue(sheet, cellName(c+2, 1), fr)
		}
		for r, row := range t.Rows {
			f.SetCellValue(sheet, cellName(1, r+2), spectroLabel(t, r))
			for c, v := range row {
				f.SetCellValue(sheet, cellName(c+2, r+2), v)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func spectroLabel(t *spectro.ChannelTable, r int) string {
	if t.HasTimes {
		return t.Starts[r].Format(timeLayoutExport)
	}
	return strconv.Itoa(t.FileSeqs[r])
}

// writeBinaryTable writes a gob-encoded, zstd-compressed keyed table: the
// fast binary format for downstream tooling.
func writeBinaryTable(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if err := gob.NewEncoder(zw).Encode(v); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return nil
}

// cellName converts 1-based column/row coordinates to an xlsx cell name
func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
