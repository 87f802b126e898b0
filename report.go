package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// ReportEntry is one (logger, file, error) triple in the screening report
type ReportEntry struct {
	LoggerID string
	File     string
	Error    string
}

// ScreeningReport aggregates the run-wide record of unparsable filenames and
// files that read but had bad data. It is written once at the end of a run.
type ScreeningReport struct {
	RunID        string
	Started      time.Time
	badFilenames []ReportEntry
	badFiles     []ReportEntry
}

// NewScreeningReport creates an empty report with a fresh run id
func NewScreeningReport() *ScreeningReport {
	return &ScreeningReport{
		RunID:   uuid.New().String(),
		Started: time.Now(),
	}
}

// AddBadFilename records a filename whose embedded timestamp could not be parsed
func (r *ScreeningReport) AddBadFilename(loggerID, file, reason string) {
	r.badFilenames = append(r.badFilenames, ReportEntry{LoggerID: loggerID, File: file, Error: reason})
}

// AddBadFile records a file that read but had bad data
func (r *ScreeningReport) AddBadFile(loggerID, file, reason string) {
	r.badFiles = append(r.badFiles, ReportEntry{LoggerID: loggerID, File: file, Error: reason})
}

// BadFilenames returns the recorded bad filenames
func (r *ScreeningReport) BadFilenames() []ReportEntry {
	return r.badFilenames
}

// BadFiles returns the recorded bad files
func (r *ScreeningReport) BadFiles() []ReportEntry {
	return r.badFiles
}

// Write writes the two-sheet report workbook into the output root and
// returns the written path.
func (r *ScreeningReport) Write(outputPath string) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	f.SetSheetName("Sheet1", summary)
	f.SetCellValue(summary, "A1", "Run ID")
	f.SetCellValue(summary, "B1", r.RunID)
	f.SetCellValue(summary, "A2", "Started")
	f.SetCellValue(summary, "B2", r.Started.Format(time.RFC3339))
	f.SetCellValue(summary, "A3", "Bad Filenames")
	f.SetCellValue(summary, "B3", len(r.badFilenames))
	f.SetCellValue(summary, "A4", "Bad Files")
	f.SetCellValue(summary, "B4", len(r.badFiles))

	if err := writeReportSheet(f, "Bad Filenames", r.badFilenames); err != nil {
		return "", err
	}
	if err := writeReportSheet(f, "Bad Files", r.badFiles); err != nil {
		return "", err
	}

	path := filepath.Join(outputPath, "Data Screening Report.xlsx")
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to write screening report: %w", err)
	}
	return path, nil
}

func writeReportSheet(f *excelize.File, name string, entries []ReportEntry) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	f.SetCellValue(name, "A1", "Logger ID")
	f.SetCellValue(name, "B1", "File")
	f.SetCellValue(name, "C1", "Error")

	// Stable order: by logger, then file
	sorted := append([]ReportEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].LoggerID != sorted[j].LoggerID {
			return sorted[i].LoggerID < sorted[j].LoggerID
		}
		return sorted[i].File < sorted[j].File
	})
	for i, e := range sorted {
		row := i + 2
		f.SetCellValue(name, fmt.Sprintf("A%d", row), e.LoggerID)
		f.SetCellValue(name, fmt.Sprintf("B%d", row), e.File)
		f.SetCellValue(name, fmt.Sprintf("C%d", row), e.Error)
	}
	return nil
}
