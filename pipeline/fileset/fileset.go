// Package fileset discovers a logger's raw files and narrows them to the
// requested processing range. File sources are abstracted behind a small
// interface so local directories and remote blob stores are interchangeable.
package fileset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/cwsl/seascreen/pipeline/timestamp"
)

// ErrNoFiles is returned when a source contains no files matching the
// logger's extension.
var ErrNoFiles = errors.New("no files found matching extension")

// ErrEmptyRange is returned when range selection leaves no files to process.
var ErrEmptyRange = errors.New("no files in requested processing range")

// Source lists and opens a logger's raw files. LocalSource covers on-disk
// campaigns; a blob-store client satisfying the same two methods plugs in
// without touching the pipeline.
type Source interface {
	List() ([]string, error)
	Open(name string) (io.ReadCloser, error)
}

// LocalSource reads files from a directory on disk.
type LocalSource struct {
	Dir string
}

// List returns the names of all regular files in the directory.
func (s LocalSource) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.Dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Open opens one file by name.
func (s LocalSource) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.Dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return f, nil
}

// ResolvedFile is one raw file with its position in the naturally sorted
// file list and its filename-embedded timestamp. Entries are immutable once
// created.
type ResolvedFile struct {
	Name      string
	Seq       int       // 1-based position among the logger's raw files
	Timestamp time.Time // zero when the filename carries no timestamp
	HasTime   bool
}

// ListFiles lists the source's files with the given extension, naturally
// sorted so that numeric parts order numerically ("f2" before "f10").
func ListFiles(src Source, ext string) ([]string, error) {
	all, err := src.List()
	if err != nil {
		return nil, err
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	var names []string
	for _, n := range all {
		if strings.ToLower(strings.TrimPrefix(filepath.Ext(n), ".")) == ext {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: *.%s", ErrNoFiles, ext)
	}
	collate.New(language.Und, collate.Numeric).SortStrings(names)
	return names, nil
}

// ResolveTimestamps applies the pattern to every filename. Files whose
// timestamp cannot be parsed are recorded in bad (filename -> reason) and
// excluded from the resolved list; they are report material, not batch
// failures.
func ResolveTimestamps(names []string, pattern timestamp.Pattern) (resolved []ResolvedFile, bad map[string]string) {
	bad = make(map[string]string)
	for i, name := range names {
		ts, ok := pattern.Resolve(name)
		if !ok {
			bad[name] = fmt.Sprintf("could not parse timestamp from filename using pattern %q", pattern)
			continue
		}
		resolved = append(resolved, ResolvedFile{Name: name, Seq: i + 1, Timestamp: ts, HasTime: true})
	}
	return resolved, bad
}

// SequenceOnly wraps filenames as ResolvedFiles without timestamps, for
// loggers whose processing range is declared by file number.
func SequenceOnly(names []string) []ResolvedFile {
	resolved := make([]ResolvedFile, len(names))
	for i, name := range names {
		resolved[i] = ResolvedFile{Name: name, Seq: i + 1}
	}
	return resolved
}

// SelectByTimestamp keeps files whose timestamp lies in [start, end]. A zero
// bound defaults to the minimum/maximum resolved timestamp.
func SelectByTimestamp(resolved []ResolvedFile, start, end time.Time) ([]ResolvedFile, error) {
	if len(resolved) == 0 {
		return nil, ErrEmptyRange
	}
	if start.IsZero() {
		start = resolved[0].Timestamp
		for _, f := range resolved {
			if f.Timestamp.Before(start) {
				start = f.Timestamp
			}
		}
	}
	if end.IsZero() {
		end = resolved[0].Timestamp
		for _, f := range resolved {
			if f.Timestamp.After(end) {
				end = f.Timestamp
			}
		}
	}
	var out []ResolvedFile
	for _, f := range resolved {
		if !f.Timestamp.Before(start) && !f.Timestamp.After(end) {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s to %s", ErrEmptyRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return out, nil
}

// SelectBySequence slices the raw file list by 1-indexed file number.
// Zero bounds default to the first and last file.
func SelectBySequence(resolved []ResolvedFile, start, end int) ([]ResolvedFile, error) {
	if len(resolved) == 0 {
		return nil, ErrEmptyRange
	}
	if start < 1 {
		start = 1
	}
	if end < 1 || end > len(resolved) {
		end = len(resolved)
	}
	if start > end {
		return nil, fmt.Errorf("%w: files %d to %d", ErrEmptyRange, start, end)
	}
	return resolved[start-1 : end], nil
}
