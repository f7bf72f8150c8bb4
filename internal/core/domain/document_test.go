package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestChunkID_Deterministic tests that the same inputs always yield the same ID
func TestChunkID_Deterministic(t *testing.T) {
	a := ChunkID("data/report.pdf", 3, 1)
	b := ChunkID("data/report.pdf", 3, 1)

	assert.Equal(t, a, b)
	assert.Len(t, a, 32) // 16 bytes hex-encoded
}

// TestChunkID_Distinct tests that distinct coordinates yield distinct IDs
func TestChunkID_Distinct(t *testing.T) {
	base := ChunkID("data/report.pdf", 3, 1)

	assert.NotEqual(t, base, ChunkID("data/report.pdf", 3, 2))
	assert.NotEqual(t, base, ChunkID("data/report.pdf", 4, 1))
	assert.NotEqual(t, base, ChunkID("data/other.pdf", 3, 1))
}

// TestChunkID_NoSeparatorCollision tests that path/page boundaries cannot collide
func TestChunkID_NoSeparatorCollision(t *testing.T) {
	// "report.pdf1" page 1 must not collide with "report.pdf" page 11
	assert.NotEqual(t, ChunkID("report.pdf1", 1, 0), ChunkID("report.pdf", 11, 0))
}

// TestQueryMatch_Fields tests QueryMatch structure fields
func TestQueryMatch_Fields(t *testing.T) {
	m := QueryMatch{
		Entry: IndexEntry{
			Chunk: Chunk{
				ID:           ChunkID("a.pdf", 1, 0),
				DocumentPath: "a.pdf",
				Page:         1,
				Position:     0,
				Content:      "hello",
			},
			Embedding: []float32{0.1, 0.2},
		},
		Similarity: 0.87,
	}

	assert.Equal(t, "a.pdf", m.Entry.Chunk.DocumentPath)
	assert.Equal(t, "hello", m.Entry.Chunk.Content)
	assert.InDelta(t, 0.87, m.Similarity, 1e-9)
	assert.Len(t, m.Entry.Embedding, 2)
}
