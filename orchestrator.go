package main

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/cwsl/seascreen/pipeline/dsp"
	"github.com/cwsl/seascreen/pipeline/fileset"
	"github.com/cwsl/seascreen/pipeline/formats"
	"github.com/cwsl/seascreen/pipeline/frame"
	"github.com/cwsl/seascreen/pipeline/quality"
	"github.com/cwsl/seascreen/pipeline/sampler"
	"github.com/cwsl/seascreen/pipeline/spectro"
	"github.com/cwsl/seascreen/pipeline/stats"
	"github.com/cwsl/seascreen/pipeline/timestamp"
	"github.com/cwsl/seascreen/pipeline/wrangle"
)

// LoggerResult is the finalized, immutable outcome of one logger's
// processing. Only snapshots leave the orchestrator; callers never see
// accumulator internals.
type LoggerResult struct {
	ID                string
	Channels          []string
	Units             []string
	Completeness      []float64
	MinTimeResolution time.Duration
	StatsUnfilt       *stats.Table
	StatsFilt         *stats.Table
	SpectUnfilt       []*spectro.ChannelTable
	SpectFilt         []*spectro.ChannelTable
	Warnings          []string
}

// RunSummary is returned by Orchestrator.Run.
type RunSummary struct {
	Results    []*LoggerResult
	Manifest   []string
	ReportPath string
	TotalFiles int
	Elapsed    time.Duration
	Cancelled  bool
}

// Orchestrator drives the per-logger, per-file screening loop. It owns one
// quality screen and one accumulator set per logger; nothing is shared
// across loggers, which run sequentially on a single worker goroutine.
type Orchestrator struct {
	cfg      *Config
	metrics  *Metrics
	report   *ScreeningReport
	exporter *Exporter
	progress ProgressFunc

	// sourceFor is replaceable so remote sources (or test fixtures) can
	// stand in for local directories.
	sourceFor func(*LoggerConfig) fileset.Source

	cancelled atomic.Bool
}

// NewOrchestrator creates an orchestrator for one run.
func NewOrchestrator(cfg *Config, metrics *Metrics, progress ProgressFunc) *Orchestrator {
	if progress == nil {
		progress = func(Progress) {}
	}
	return &Orchestrator{
		cfg:      cfg,
		metrics:  metrics,
		report:   NewScreeningReport(),
		exporter: NewExporter(cfg.Campaign.OutputPath, cfg.General),
		progress: progress,
		sourceFor: func(lc *LoggerConfig) fileset.Source {
			return fileset.LocalSource{Dir: lc.Path}
		},
	}
}

// Cancel requests cooperative cancellation. The worker checks the flag at
// file boundaries: the in-flight logger's unfinalized accumulation is
// discarded, completed loggers' results are preserved.
func (o *Orchestrator) Cancel() {
	o.cancelled.Store(true)
}

// discovery is the resolved file set for one logger, or the reason its
// discovery failed.
type discovery struct {
	lc      *LoggerConfig
	pattern timestamp.Pattern
	files   []fileset.ResolvedFile
	err     error
}

// Run executes the full screening batch and returns the summary. Unexpected
// panics are recovered at this boundary and reported as run errors with
// already-finalized results intact.
func (o *Orchestrator) Run() (summary *RunSummary, err error) {
	started := time.Now()
	summary = &RunSummary{}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected error during processing: %v", r)
		}
		summary.Elapsed = time.Since(started)
		o.metrics.Elapsed(summary.Elapsed)
	}()

	// Discover every logger up front so progress events can report run
	// totals. Discovery failures are fatal to that logger only; a
	// single-logger run aborts.
	discoveries := make([]discovery, len(o.cfg.Loggers))
	for i := range o.cfg.Loggers {
		discoveries[i] = o.discover(&o.cfg.Loggers[i])
		if discoveries[i].err != nil {
			if len(o.cfg.Loggers) == 1 {
				return summary, fmt.Errorf("logger %s: %w", o.cfg.Loggers[i].ID, discoveries[i].err)
			}
			log.Printf("Logger %s: discovery failed, skipping: %v", o.cfg.Loggers[i].ID, discoveries[i].err)
			continue
		}
		summary.TotalFiles += len(discoveries[i].files)
	}

	loggerIDs := make([]string, len(o.cfg.Loggers))
	for i := range o.cfg.Loggers {
		loggerIDs[i] = o.cfg.Loggers[i].ID
	}

	cumFiles := 0
	for i := range discoveries {
		if discoveries[i].err != nil {
			continue
		}
		if o.cancelled.Load() {
			summary.Cancelled = true
			break
		}
		result, done := o.runLogger(discoveries[i], loggerIDs, i, started, summary.TotalFiles, &cumFiles)
		if !done {
			summary.Cancelled = true
			break
		}
		summary.Results = append(summary.Results, result)
		o.metrics.LoggerFinalized()
	}

	o.warnIfNoSamples(summary.Results)

	if path, werr := o.report.Write(o.cfg.Campaign.OutputPath); werr != nil {
		log.Printf("Error writing screening report: %v", werr)
	} else {
		summary.ReportPath = path
	}
	summary.Manifest = o.exporter.Manifest()

	o.progress(Progress{
		LoggerIDs:       loggerIDs,
		CumulativeFiles: cumFiles,
		TotalFiles:      summary.TotalFiles,
		Elapsed:         time.Since(started),
		Done:            true,
	})
	return summary, nil
}

// discover lists, sorts and range-filters one logger's files.
func (o *Orchestrator) discover(lc *LoggerConfig) discovery {
	d := discovery{lc: lc}

	src := o.sourceFor(lc)
	names, err := fileset.ListFiles(src, lc.Extension)
	if err != nil {
		d.err = err
		return d
	}

	d.pattern = lc.pattern
	if lc.FileTimestamp == "auto" {
		d.pattern = timestamp.Detect(names[0])
		log.Printf("Logger %s: detected filename timestamp pattern %q from %s", lc.ID, d.pattern, names[0])
	}

	byFile := lc.ProcessStartFile != 0 || lc.ProcessEndFile != 0

	switch {
	case !byFile && d.pattern.HasTimestamp():
		resolved, bad := fileset.ResolveTimestamps(names, d.pattern)
		o.recordBadFilenames(lc.ID, bad)
		start, _ := parseRangeTime(lc.ProcessStart, lc.DatetimeFmt)
		end, _ := parseRangeTime(lc.ProcessEnd, lc.DatetimeFmt)
		d.files, d.err = fileset.SelectByTimestamp(resolved, start, end)
	default:
		// File-number mode slices the raw filename list by position;
		// timestamps, when a pattern exists, are still resolved for the
		// selected files so samples can be time-labelled.
		selected, err := fileset.SelectBySequence(fileset.SequenceOnly(names), lc.ProcessStartFile, lc.ProcessEndFile)
		if err != nil {
			d.err = err
			return d
		}
		if d.pattern.HasTimestamp() {
			kept := selected[:0]
			bad := make(map[string]string)
			for _, rf := range selected {
				if ts, ok := d.pattern.Resolve(rf.Name); ok {
					rf.Timestamp = ts
					rf.HasTime = true
					kept = append(kept, rf)
				} else {
					bad[rf.Name] = fmt.Sprintf("could not parse timestamp from filename using pattern %q", d.pattern)
				}
			}
			o.recordBadFilenames(lc.ID, bad)
			selected = kept
			if len(selected) == 0 {
				d.err = fileset.ErrEmptyRange
				return d
			}
		}
		d.files = selected
	}
	return d
}

func (o *Orchestrator) recordBadFilenames(loggerID string, bad map[string]string) {
	for name, reason := range bad {
		o.report.AddBadFilename(loggerID, name, reason)
		o.metrics.BadFilename(loggerID)
		log.Printf("Logger %s: bad filename %s: %s", loggerID, name, reason)
	}
}

// runLogger processes one logger end to end. The boolean is false when a
// cancellation request interrupted processing before finalization.
func (o *Orchestrator) runLogger(d discovery, loggerIDs []string, loggerIdx int, started time.Time, totalFiles int, cumFiles *int) (*LoggerResult, bool) {
	lc := d.lc
	src := o.sourceFor(lc)

	reader, err := formats.New(lc.FileFormat, formats.Options{
		Delimiter: delimiterRune(lc.Delimiter),
		NamesRow:  lc.ChannelRow,
		UnitsRow:  lc.UnitsRow,
	})
	if err != nil {
		// Validate() already checked the format id; treat as unexpected.
		panic(err)
	}

	names, units, warnings := o.resolveChannels(lc, src, reader, d.files[0].Name)
	params := wrangle.Params{
		ColsToProcess:   lc.ColsToProcess,
		ChannelNames:    names,
		ChannelUnits:    units,
		UnitConvFactors: lc.UnitConvFactors,
		TimeLayout:      lc.DatetimeFmt,
	}

	screen := quality.NewScreen(lc.ExpectedPoints(), *o.cfg.General.AllowShortFiles)
	filtering := lc.LowCutoff != nil || lc.HighCutoff != nil

	var (
		statsBuf, spectBuf     *sampler.Buffer
		statsUnfilt, statsFilt *stats.Accumulator
		spectUnfilt, spectFilt *spectro.Accumulator
	)
	if lc.StatsInterval > 0 {
		statsBuf = sampler.NewBuffer(sampler.TargetLength(lc.StatsInterval, lc.Frequency))
		statsUnfilt = stats.NewAccumulator()
		statsFilt = stats.NewAccumulator()
	}
	if lc.SpectInterval > 0 {
		spectBuf = sampler.NewBuffer(sampler.TargetLength(lc.SpectInterval, lc.Frequency))
		spectUnfilt = spectro.NewAccumulator(lc.PSD.Window, lc.PSD.Nperseg, lc.PSD.OverlapPct)
		spectFilt = spectro.NewAccumulator(lc.PSD.Window, lc.PSD.Nperseg, lc.PSD.OverlapPct)
	}

	onStatsSample := func(s *sampler.Sample) {
		statsUnfilt.AddSample(s.Frame, s.Start, s.End, s.FileSeq, nil)
		o.metrics.Sample(lc.ID, "stats", "unfiltered")
		if filtering {
			if ff := dsp.BandPass(s.Frame, lc.LowCutoff, lc.HighCutoff, true); ff != nil {
				statsFilt.AddSample(ff, s.Start, s.End, s.FileSeq, nil)
				o.metrics.Sample(lc.ID, "stats", "filtered")
			} else {
				// A one-row trailing sample cannot be filtered; a
				// missing-value row keeps the filtered table aligned with
				// the unfiltered one row for row.
				statsFilt.AddSample(missingFrame(s.Frame), s.Start, s.End, s.FileSeq, nil)
			}
		}
	}
	onSpectSample := func(s *sampler.Sample) {
		if err := spectUnfilt.AddSample(s.Frame, s.Start, s.FileSeq); err != nil {
			log.Printf("Logger %s: spectral accumulation error: %v", lc.ID, err)
			return
		}
		o.metrics.Sample(lc.ID, "spectral", "unfiltered")
		if filtering {
			if ff := dsp.BandPass(s.Frame, lc.LowCutoff, lc.HighCutoff, true); ff != nil {
				if err := spectFilt.AddSample(ff, s.Start, s.FileSeq); err != nil {
					log.Printf("Logger %s: filtered spectral accumulation error: %v", lc.ID, err)
					return
				}
				o.metrics.Sample(lc.ID, "spectral", "filtered")
			}
		}
	}

	badBefore := 0
	for fi, rf := range d.files {
		if o.cancelled.Load() {
			log.Printf("Logger %s: cancelled at file %d/%d, discarding unfinalized accumulation", lc.ID, fi+1, len(d.files))
			return nil, false
		}
		fileStart := time.Now()

		fr, err := o.readAndWrangle(src, reader, lc, params, rf)
		if err != nil {
			log.Printf("Logger %s: %v", lc.ID, err)
			o.report.AddBadFile(lc.ID, rf.Name, err.Error())
			o.metrics.BadFile(lc.ID)
		} else {
			ok := screen.Check(rf.Seq, rf.Name, fr.Times, fr.Names, fr.Data)
			if bad := screen.BadFiles(); len(bad) > badBefore {
				badBefore = len(bad)
				o.metrics.BadFile(lc.ID)
			}
			if ok {
				if statsBuf != nil {
					feedWindow(statsBuf, fr.Clone(), rf.Seq, onStatsSample)
				}
				if spectBuf != nil {
					feedWindow(spectBuf, fr, rf.Seq, onSpectSample)
				}
			}
		}

		*cumFiles++
		o.metrics.FileProcessed(lc.ID, time.Since(fileStart))
		o.progress(Progress{
			LoggerIDs:       loggerIDs,
			LoggerIndex:     loggerIdx,
			FileIndex:       fi,
			Filename:        rf.Name,
			FilesInLogger:   len(d.files),
			CumulativeFiles: *cumFiles,
			TotalFiles:      totalFiles,
			Elapsed:         time.Since(started),
		})
	}

	// End of stream: the leftover under-length buffers become final short
	// samples rather than being dropped.
	lastSeq := d.files[len(d.files)-1].Seq
	if statsBuf != nil {
		if s := statsBuf.Take(lastSeq); s != nil {
			onStatsSample(s)
		}
	}
	if spectBuf != nil {
		if s := spectBuf.Take(lastSeq); s != nil {
			onSpectSample(s)
		}
	}

	for _, bf := range screen.BadFiles() {
		o.report.AddBadFile(lc.ID, bf.Name, bf.Reason)
	}

	result := &LoggerResult{
		ID:                lc.ID,
		Channels:          names,
		Units:             units,
		Completeness:      screen.Completeness(),
		MinTimeResolution: screen.MinTimeResolution(),
		Warnings:          warnings,
	}
	for i, ch := range result.Channels {
		if i < len(result.Completeness) {
			o.metrics.Completeness(lc.ID, ch, result.Completeness[i])
		}
	}

	samples := 0
	if statsUnfilt != nil {
		samples += statsUnfilt.Count()
		result.StatsUnfilt = statsUnfilt.Finalize()
		if statsFilt.Count() > 0 {
			result.StatsFilt = statsFilt.Finalize()
		}
	}
	if spectUnfilt != nil {
		samples += spectUnfilt.Count()
		result.SpectUnfilt = spectUnfilt.Finalize()
		if spectFilt.Count() > 0 {
			result.SpectFilt = spectFilt.Finalize()
		}
		for _, diag := range spectUnfilt.Diagnostics() {
			log.Printf("Logger %s: %s", lc.ID, diag)
		}
	}

	// Export only when at least one valid sample was accumulated.
	if samples > 0 {
		if err := o.exportLogger(lc.ID, result); err != nil {
			log.Printf("Logger %s: export error: %v", lc.ID, err)
		}
	} else {
		log.Printf("Logger %s: no samples accumulated, nothing to export", lc.ID)
	}
	return result, true
}

// readAndWrangle opens, parses and normalizes one file. Any failure is a
// per-file error recorded by the caller.
func (o *Orchestrator) readAndWrangle(src fileset.Source, reader formats.Reader, lc *LoggerConfig, params wrangle.Params, rf fileset.ResolvedFile) (*frame.Frame, error) {
	rc, err := src.Open(rf.Name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	raw, err := reader.Read(rc, rf.Name)
	if err != nil {
		return nil, err
	}
	fr, warns, err := wrangle.Wrangle(raw, params, rf.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to wrangle %s: %w", rf.Name, err)
	}
	for _, w := range warns {
		log.Printf("Logger %s: %s: %s", lc.ID, rf.Name, w)
	}
	return fr, nil
}

// missingFrame returns a copy of src with every value replaced by the
// missing-value marker, keeping the channel identity and row count.
func missingFrame(src *frame.Frame) *frame.Frame {
	m := src.Clone()
	for _, col := range m.Data {
		for i := range col {
			col[i] = frame.Missing()
		}
	}
	return m
}

// feedWindow pulls every row of incoming through the window buffer,
// emitting a sample each time the buffer fills.
func feedWindow(buf *sampler.Buffer, incoming *frame.Frame, fileSeq int, emit func(*sampler.Sample)) {
	for incoming.Len() > 0 {
		buf.Consume(incoming)
		if buf.Full() {
			if s := buf.Take(fileSeq); s != nil {
				emit(s)
			}
		}
	}
}

// resolveChannels resolves channel names and units once per logger, before
// the file loop: user overrides verbatim, otherwise the first file's header
// with dummy fallbacks ("Column {n}", unit "-") and a non-fatal warning.
func (o *Orchestrator) resolveChannels(lc *LoggerConfig, src fileset.Source, reader formats.Reader, firstFile string) (names, units []string, warnings []string) {
	var headerNames, headerUnits []string
	needHeader := len(lc.ChannelNames) < len(lc.ColsToProcess) || len(lc.ChannelUnits) < len(lc.ColsToProcess)
	if needHeader {
		if rc, err := src.Open(firstFile); err == nil {
			if raw, err := reader.Read(rc, firstFile); err == nil {
				headerNames = raw.Names
				headerUnits = raw.Units
			}
			rc.Close()
		}
	}

	for i, c := range lc.ColsToProcess {
		hi := c - 2 // header slices exclude the time column
		switch {
		case i < len(lc.ChannelNames) && lc.ChannelNames[i] != "":
			names = append(names, lc.ChannelNames[i])
		case hi >= 0 && hi < len(headerNames) && headerNames[hi] != "":
			names = append(names, headerNames[hi])
		default:
			names = append(names, fmt.Sprintf("Column %d", c))
			w := fmt.Sprintf("column %d has no header name; using dummy name", c)
			warnings = append(warnings, w)
			log.Printf("Warning: logger %s: %s", lc.ID, w)
		}
		switch {
		case i < len(lc.ChannelUnits) && lc.ChannelUnits[i] != "":
			units = append(units, lc.ChannelUnits[i])
		case hi >= 0 && hi < len(headerUnits) && headerUnits[hi] != "":
			units = append(units, headerUnits[hi])
		default:
			units = append(units, "-")
		}
	}
	return names, units, warnings
}

// exportLogger writes one logger's finalized tables in the enabled formats.
func (o *Orchestrator) exportLogger(loggerID string, r *LoggerResult) error {
	if r.StatsUnfilt != nil && len(r.StatsUnfilt.Values) > 0 {
		if err := o.exporter.ExportStats(loggerID, r.StatsUnfilt, r.StatsFilt); err != nil {
			return err
		}
	}
	if len(r.SpectUnfilt) > 0 {
		if err := o.exporter.ExportSpectrograms(loggerID, "", r.SpectUnfilt); err != nil {
			return err
		}
	}
	if len(r.SpectFilt) > 0 {
		if err := o.exporter.ExportSpectrograms(loggerID, "filtered", r.SpectFilt); err != nil {
			return err
		}
	}
	return nil
}

// warnIfNoSamples emits the user-facing warning when screening was
// requested but zero samples ended up processed for any logger.
func (o *Orchestrator) warnIfNoSamples(results []*LoggerResult) {
	statsRequested, spectRequested := false, false
	statsSamples, spectSamples := 0, 0
	for i := range o.cfg.Loggers {
		if o.cfg.Loggers[i].StatsInterval > 0 {
			statsRequested = true
		}
		if o.cfg.Loggers[i].SpectInterval > 0 {
			spectRequested = true
		}
	}
	for _, r := range results {
		if r.StatsUnfilt != nil {
			statsSamples += len(r.StatsUnfilt.Values)
		}
		for _, t := range r.SpectUnfilt {
			spectSamples += len(t.Rows)
		}
	}
	if statsRequested && statsSamples == 0 {
		log.Printf("Warning: statistics screening was requested but no samples were processed for any logger")
	}
	if spectRequested && spectSamples == 0 {
		log.Printf("Warning: spectral screening was requested but no samples were processed for any logger")
	}
}

func delimiterRune(s string) rune {
	if s == "" {
		return ','
	}
	if s == "\\t" || s == "tab" {
		return '\t'
	}
	return []rune(s)[0]
}
