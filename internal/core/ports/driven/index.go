package driven

import (
	"context"

	"github.com/custodia-labs/docchat-cli/internal/core/domain"
)

// VectorIndex stores (embedding, chunk) entries and answers
// nearest-neighbour queries.
//
// Similarity metric: cosine, fixed for the life of an index. Ties are
// broken by insertion order (earlier entries first). Duplicate chunk
// IDs are overwritten deterministically (upsert); an index never grows
// from re-adding the same chunk ID.
type VectorIndex interface {
	// Add upserts entries into the index. Entries whose embedding
	// dimension does not match the index fail with an error wrapping
	// domain.ErrInvalidInput.
	Add(ctx context.Context, entries []domain.IndexEntry) error

	// Query returns up to k entries nearest to the query vector,
	// nearest first. k larger than the index returns all entries.
	Query(ctx context.Context, vector []float32, k int) ([]domain.QueryMatch, error)

	// Count returns the number of entries in the index.
	Count(ctx context.Context) (int, error)

	// Dimensions returns the embedding dimension the index accepts.
	Dimensions() int

	// ModelName returns the embedding model the index was built with.
	ModelName() string

	// Close releases resources.
	Close() error
}

// IndexBuilder is a VectorIndex under construction at a staging
// location. Persist is the single commit point of ingestion: nothing
// reaches the final index path until Commit, and a failed or aborted
// build leaves any previous on-disk index untouched.
type IndexBuilder interface {
	VectorIndex

	// Commit durably persists the staged index and atomically replaces
	// the index at the final path. The builder is closed afterwards.
	Commit() error

	// Abort discards the staged index. Safe to call after Commit.
	Abort() error
}
