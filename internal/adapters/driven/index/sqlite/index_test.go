package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat-cli/internal/core/domain"
)

func entry(id string, embedding []float32, content string) domain.IndexEntry {
	return domain.IndexEntry{
		Chunk: domain.Chunk{
			ID:           id,
			DocumentPath: "docs/guide.pdf",
			Page:         1,
			Position:     0,
			Content:      content,
		},
		Embedding: embedding,
	}
}

func buildIndex(t *testing.T, path string, entries ...domain.IndexEntry) {
	t.Helper()

	builder, err := NewBuilder(path, 3, "test-embed")
	require.NoError(t, err)
	defer builder.Abort()

	for _, e := range entries {
		require.NoError(t, builder.Add(context.Background(), []domain.IndexEntry{e}))
	}
	require.NoError(t, builder.Commit())
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.db"))

	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	require.NoError(t, os.WriteFile(path, []byte("not a database"), 0o600))

	_, err := Open(path)

	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestBuilder_CommitThenOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	buildIndex(t, path,
		entry("c1", []float32{1, 0, 0}, "first"),
		entry("c2", []float32{0, 1, 0}, "second"),
	)

	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, 3, idx.Dimensions())
	assert.Equal(t, "test-embed", idx.ModelName())

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// No staging file should survive a commit.
	_, err = os.Stat(path + ".staging")
	assert.True(t, os.IsNotExist(err))
}

func TestBuilder_ReopenedIndexQueriesIdentically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	entries := []domain.IndexEntry{
		entry("near", []float32{1, 0, 0}, "near"),
		entry("tied-a", []float32{0.5, 0.5, 0}, "tied first in"),
		entry("tied-b", []float32{0.5, 0.5, 0}, "tied second in"),
		entry("mid", []float32{0.2, 0.9, 0}, "mid"),
		entry("far", []float32{0, 1, 0}, "far"),
	}

	builder, err := NewBuilder(path, 3, "test-embed")
	require.NoError(t, err)
	defer builder.Abort()
	require.NoError(t, builder.Add(context.Background(), entries))

	query := []float32{1, 0, 0}
	staged, err := builder.Query(context.Background(), query, 5)
	require.NoError(t, err)
	require.Len(t, staged, 5)

	require.NoError(t, builder.Commit())

	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	loaded, err := idx.Query(context.Background(), query, 5)
	require.NoError(t, err)

	// Persisting and reloading changes nothing: same entries, same
	// order, same scores.
	require.Len(t, loaded, len(staged))
	for i := range staged {
		assert.Equal(t, staged[i].Entry.Chunk.ID, loaded[i].Entry.Chunk.ID)
		assert.Equal(t, staged[i].Entry.Chunk.Content, loaded[i].Entry.Chunk.Content)
		assert.Equal(t, staged[i].Entry.Embedding, loaded[i].Entry.Embedding)
		assert.InDelta(t, staged[i].Similarity, loaded[i].Similarity, 1e-12)
	}
}

func TestBuilder_AbortLeavesPreviousIndexIntact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	buildIndex(t, path, entry("c1", []float32{1, 0, 0}, "original"))

	builder, err := NewBuilder(path, 3, "test-embed")
	require.NoError(t, err)
	require.NoError(t, builder.Add(context.Background(), []domain.IndexEntry{entry("c2", []float32{0, 1, 0}, "discarded")}))
	require.NoError(t, builder.Abort())

	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBuilder_InvalidArguments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	_, err := NewBuilder(path, 0, "test-embed")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewBuilder(path, 3, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAdd_DimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	builder, err := NewBuilder(path, 3, "test-embed")
	require.NoError(t, err)
	defer builder.Abort()

	err = builder.Add(context.Background(), []domain.IndexEntry{entry("c1", []float32{1, 0}, "short")})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAdd_DuplicateChunkOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	buildIndex(t, path,
		entry("c1", []float32{1, 0, 0}, "old content"),
		entry("c2", []float32{0, 1, 0}, "second"),
		entry("c1", []float32{0, 0, 1}, "new content"),
	)

	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	matches, err := idx.Query(context.Background(), []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "c1", matches[0].Entry.Chunk.ID)
	assert.Equal(t, "new content", matches[0].Entry.Chunk.Content)
}

func TestQuery_OrdersBySimilarity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	buildIndex(t, path,
		entry("far", []float32{0, 1, 0}, "far"),
		entry("near", []float32{1, 0, 0}, "near"),
		entry("close", []float32{0.9, 0.1, 0}, "close"),
	)

	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	matches, err := idx.Query(context.Background(), []float32{1, 0, 0}, 2)
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, "near", matches[0].Entry.Chunk.ID)
	assert.Equal(t, "close", matches[1].Entry.Chunk.ID)
	assert.Greater(t, matches[0].Similarity, matches[1].Similarity)
}

func TestQuery_TieBreakFollowsInsertionOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	buildIndex(t, path,
		entry("a", []float32{1, 0, 0}, "first in"),
		entry("b", []float32{1, 0, 0}, "second in"),
		entry("c", []float32{1, 0, 0}, "third in"),
	)

	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	matches, err := idx.Query(context.Background(), []float32{1, 0, 0}, 3)
	require.NoError(t, err)

	require.Len(t, matches, 3)
	assert.Equal(t, "a", matches[0].Entry.Chunk.ID)
	assert.Equal(t, "b", matches[1].Entry.Chunk.ID)
	assert.Equal(t, "c", matches[2].Entry.Chunk.ID)
}

func TestQuery_KBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	buildIndex(t, path,
		entry("c1", []float32{1, 0, 0}, "one"),
		entry("c2", []float32{0, 1, 0}, "two"),
	)

	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	matches, err := idx.Query(context.Background(), []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	matches, err = idx.Query(context.Background(), []float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestQuery_DimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	buildIndex(t, path, entry("c1", []float32{1, 0, 0}, "one"))

	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	_, err = idx.Query(context.Background(), []float32{1, 0}, 1)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCommit_ReplacesExistingIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	buildIndex(t, path, entry("old", []float32{1, 0, 0}, "old corpus"))
	buildIndex(t, path,
		entry("new1", []float32{0, 1, 0}, "new corpus"),
		entry("new2", []float32{0, 0, 1}, "new corpus"),
	)

	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	matches, err := idx.Query(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	for _, m := range matches {
		assert.NotEqual(t, "old", m.Entry.Chunk.ID)
	}
}
