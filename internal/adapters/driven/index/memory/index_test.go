package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat-cli/internal/core/domain"
)

func entry(id string, embedding []float32) domain.IndexEntry {
	return domain.IndexEntry{
		Chunk:     domain.Chunk{ID: id, DocumentPath: "a.pdf", Page: 1, Content: "chunk " + id},
		Embedding: embedding,
	}
}

func TestAdd_DimensionMismatch(t *testing.T) {
	idx := New(3, "test-model")

	err := idx.Add(context.Background(), []domain.IndexEntry{entry("c1", []float32{1, 0})})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAdd_UpsertDoesNotGrow(t *testing.T) {
	idx := New(2, "test-model")
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{entry("c1", []float32{1, 0})}))
	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{entry("c1", []float32{0, 1})}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The second add overwrote the embedding.
	matches, err := idx.Query(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-6)
}

func TestQuery_NearestFirst(t *testing.T) {
	idx := New(2, "test-model")
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{
		entry("east", []float32{1, 0}),
		entry("north", []float32{0, 1}),
		entry("northeast", []float32{1, 1}),
	}))

	matches, err := idx.Query(ctx, []float32{1, 0.1}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "east", matches[0].Entry.Chunk.ID)
	assert.Equal(t, "northeast", matches[1].Entry.Chunk.ID)
	assert.Equal(t, "north", matches[2].Entry.Chunk.ID)
	assert.GreaterOrEqual(t, matches[0].Similarity, matches[1].Similarity)
	assert.GreaterOrEqual(t, matches[1].Similarity, matches[2].Similarity)
}

func TestQuery_KBounds(t *testing.T) {
	idx := New(2, "test-model")
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{
		entry("c1", []float32{1, 0}),
		entry("c2", []float32{0, 1}),
		entry("c3", []float32{1, 1}),
		entry("c4", []float32{-1, 0}),
		entry("c5", []float32{0, -1}),
	}))

	matches, err := idx.Query(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Len(t, matches, 3)

	// k larger than the index returns everything, still nearest first.
	matches, err = idx.Query(ctx, []float32{1, 0}, 100)
	require.NoError(t, err)
	assert.Len(t, matches, 5)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Similarity, matches[i].Similarity)
	}
}

func TestQuery_TieBreakInsertionOrder(t *testing.T) {
	idx := New(2, "test-model")
	ctx := context.Background()

	// Identical vectors: equal similarity to any query.
	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{
		entry("first", []float32{1, 1}),
		entry("second", []float32{1, 1}),
		entry("third", []float32{1, 1}),
	}))

	matches, err := idx.Query(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "first", matches[0].Entry.Chunk.ID)
	assert.Equal(t, "second", matches[1].Entry.Chunk.ID)
	assert.Equal(t, "third", matches[2].Entry.Chunk.ID)
}

func TestQuery_DimensionMismatch(t *testing.T) {
	idx := New(3, "test-model")

	_, err := idx.Query(context.Background(), []float32{1, 0}, 1)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQuery_ZeroVector(t *testing.T) {
	idx := New(2, "test-model")
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{entry("c1", []float32{1, 0})}))

	matches, err := idx.Query(ctx, []float32{0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 0.0, matches[0].Similarity)
}
