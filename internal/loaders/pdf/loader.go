// Package pdf provides the corpus loader for directories of PDF files.
package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/docchat-cli/internal/core/domain"
	"github.com/custodia-labs/docchat-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docchat-cli/internal/logger"
)

// Ensure Loader implements the interface.
var _ driven.CorpusLoader = (*Loader)(nil)

// ExtractFunc extracts per-page text from a single PDF file.
// The production implementation parses the file; tests substitute fakes.
type ExtractFunc func(ctx context.Context, path string) ([]domain.PageText, error)

// Loader scans a directory for PDF files and extracts their text.
type Loader struct {
	extract   ExtractFunc
	recursive bool
	strict    bool
}

// Option configures the loader.
type Option func(*Loader)

// WithRecursive enables recursive directory walking.
func WithRecursive(recursive bool) Option {
	return func(l *Loader) { l.recursive = recursive }
}

// WithStrict makes the first unparsable file fatal instead of skipped.
func WithStrict(strict bool) Option {
	return func(l *Loader) { l.strict = strict }
}

// WithExtractor overrides the PDF extraction function. Used in tests.
func WithExtractor(fn ExtractFunc) Option {
	return func(l *Loader) {
		if fn != nil {
			l.extract = fn
		}
	}
}

// New creates a PDF corpus loader.
func New(opts ...Option) *Loader {
	l := &Loader{extract: extractFile}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load extracts page text from every PDF under dir, in lexicographic
// file order with pages ascending. A missing directory fails with
// domain.ErrLoad. Unparsable files are skipped and reported unless
// strict mode is on.
func (l *Loader) Load(ctx context.Context, dir string) ([]domain.PageText, *driven.LoadReport, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: data directory %q: %w", domain.ErrLoad, dir, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %q is not a directory", domain.ErrLoad, dir)
	}

	paths, err := l.findPDFs(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: scanning %q: %w", domain.ErrLoad, dir, err)
	}

	report := &driven.LoadReport{}
	var pages []domain.PageText

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		filePages, err := l.extract(ctx, path)
		if err != nil {
			if l.strict {
				return nil, nil, fmt.Errorf("%w: parsing %q: %w", domain.ErrLoad, path, err)
			}
			logger.Warn("Skipping %s: %v", path, err)
			report.FilesSkipped++
			report.Skipped = append(report.Skipped, path)
			continue
		}

		logger.Debug("Loaded %d pages from %s", len(filePages), path)
		report.FilesLoaded++
		report.Documents = append(report.Documents, domain.Document{
			Path:  path,
			Title: Title(path),
			Pages: len(filePages),
		})
		pages = append(pages, filePages...)
	}

	return pages, report, nil
}

// findPDFs returns the PDF paths under dir, sorted lexicographically.
func (l *Loader) findPDFs(dir string) ([]string, error) {
	var paths []string

	if l.recursive {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isPDF(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() && isPDF(entry.Name()) {
				paths = append(paths, filepath.Join(dir, entry.Name()))
			}
		}
	}

	sort.Strings(paths)
	return paths, nil
}

// isPDF matches the .pdf extension case-insensitively.
func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// Title derives a human-readable document title from a file path.
func Title(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return name
}
