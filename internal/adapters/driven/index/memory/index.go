// Package memory provides an in-memory vector index with the same
// ordering and upsert semantics as the persisted sqlite index. Used
// in tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/docchat-cli/internal/core/domain"
	"github.com/custodia-labs/docchat-cli/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index is an in-memory vector index using cosine similarity.
// Duplicate chunk IDs are overwritten in place, so insertion order
// (and with it the equal-similarity tie-break) is stable across
// re-ingestion.
type Index struct {
	mu         sync.RWMutex
	dimensions int
	model      string
	entries    []domain.IndexEntry
	byID       map[string]int
}

// New creates an empty index for vectors of the given dimension,
// produced by the given embedding model.
func New(dimensions int, model string) *Index {
	return &Index{
		dimensions: dimensions,
		model:      model,
		byID:       make(map[string]int),
	}
}

// Add upserts entries. A dimension mismatch fails with domain.ErrInvalidInput.
func (idx *Index) Add(_ context.Context, entries []domain.IndexEntry) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, entry := range entries {
		if len(entry.Embedding) != idx.dimensions {
			return fmt.Errorf("%w: embedding dimension %d, index dimension %d",
				domain.ErrInvalidInput, len(entry.Embedding), idx.dimensions)
		}

		if pos, ok := idx.byID[entry.Chunk.ID]; ok {
			idx.entries[pos] = entry
			continue
		}
		idx.byID[entry.Chunk.ID] = len(idx.entries)
		idx.entries = append(idx.entries, entry)
	}

	return nil
}

// Query returns up to k entries nearest to vector by cosine
// similarity, nearest first, ties broken by insertion order.
func (idx *Index) Query(_ context.Context, vector []float32, k int) ([]domain.QueryMatch, error) {
	if len(vector) != idx.dimensions {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d",
			domain.ErrInvalidInput, len(vector), idx.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := make([]domain.QueryMatch, len(idx.entries))
	for i, entry := range idx.entries {
		matches[i] = domain.QueryMatch{
			Entry:      entry,
			Similarity: cosine(vector, entry.Embedding),
		}
	}

	// Stable sort keeps insertion order for equal similarities.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// Count returns the number of entries.
func (idx *Index) Count(_ context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries), nil
}

// Dimensions returns the embedding dimension the index accepts.
func (idx *Index) Dimensions() int { return idx.dimensions }

// ModelName returns the embedding model the index was built with.
func (idx *Index) ModelName() string { return idx.model }

// Close releases resources.
func (idx *Index) Close() error { return nil }

// cosine computes the cosine similarity of two equal-length vectors.
// A zero vector yields similarity 0.
func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
