package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Document represents a source PDF that was read during ingestion.
// It is not retained after chunking; only its chunks are persisted.
type Document struct {
	// ID is the unique identifier for this ingestion of the document.
	ID string

	// Path is the location of the source file.
	Path string

	// Title is the human-readable title derived from the file name.
	Title string

	// Pages is the number of pages extracted.
	Pages int

	// IngestedAt is when the document was read.
	IngestedAt time.Time
}

// PageText is the raw text extracted from a single page of a source file.
// The corpus loader produces these in file order, pages ascending.
type PageText struct {
	// Path is the source file location.
	Path string

	// Page is the 1-based page number.
	Page int

	// Text is the raw extracted text.
	Text string
}

// Chunk represents a retrievable unit of document text.
// Chunks are created during ingestion and never mutated.
type Chunk struct {
	// ID is the stable identifier, derived from source path, page and
	// position so that re-ingesting the same corpus yields the same IDs.
	ID string

	// DocumentPath is the source file the chunk came from.
	DocumentPath string

	// Page is the 1-based page number the chunk starts on.
	Page int

	// Position is the ordinal position within the page.
	Position int

	// Content is the chunk text.
	Content string
}

// ChunkID derives the stable identifier for a chunk at the given
// source path, page and position. Deterministic by construction:
// the same corpus always produces the same IDs, which makes
// re-ingestion idempotent under the index's upsert policy.
func ChunkID(path string, page, position int) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s\x00%d\x00%d", path, page, position))
	return hex.EncodeToString(h[:16])
}

// IndexEntry is a chunk together with its embedding, as stored in the
// vector index. One entry exists per chunk ID.
type IndexEntry struct {
	// Chunk is the text unit this entry indexes.
	Chunk Chunk

	// Embedding is the vector representation. Its dimension must match
	// the index's configured dimension.
	Embedding []float32
}

// QueryMatch is a retrieved index entry with its similarity score.
type QueryMatch struct {
	// Entry is the matched index entry.
	Entry IndexEntry

	// Similarity is the cosine similarity to the query vector (-1 to 1).
	Similarity float64
}

// IngestReport summarises a completed ingestion run.
type IngestReport struct {
	// RunID uniquely identifies this ingestion run.
	RunID string

	// Documents lists the source files that were read.
	Documents []Document

	// FilesLoaded is the number of PDFs successfully read.
	FilesLoaded int

	// FilesSkipped is the number of files that failed to parse and
	// were skipped (non-strict mode only).
	FilesSkipped int

	// Pages is the total number of pages extracted.
	Pages int

	// Chunks is the number of chunks embedded and persisted.
	Chunks int

	// Duration is the wall-clock time of the run.
	Duration time.Duration
}
