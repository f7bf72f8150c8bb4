package driven

import (
	"context"

	"github.com/custodia-labs/docchat-cli/internal/core/domain"
)

// CorpusLoader reads source files and extracts per-page text.
//
// Implementations scan a directory for PDFs and extract text page by
// page. A file that cannot be parsed is skipped and reported via the
// LoadReport unless strict mode is enabled, in which case the load
// fails with an error wrapping domain.ErrLoad.
type CorpusLoader interface {
	// Load extracts page text from every PDF under dir.
	// File order is stable (lexicographic walk), pages ascending.
	// A missing directory fails with an error wrapping domain.ErrLoad.
	Load(ctx context.Context, dir string) ([]domain.PageText, *LoadReport, error)
}

// LoadReport summarises a corpus load.
type LoadReport struct {
	// Documents describes each file read successfully, in load order.
	// The loader fills Path, Title and Pages; the ingestion pipeline
	// stamps ID and IngestedAt.
	Documents []domain.Document

	// FilesLoaded is the number of files read successfully.
	FilesLoaded int

	// FilesSkipped is the number of unparsable files skipped.
	FilesSkipped int

	// Skipped lists the paths that were skipped, for logging.
	Skipped []string
}
