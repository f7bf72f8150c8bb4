package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/custodia-labs/docchat-cli/internal/core/domain"
	"github.com/custodia-labs/docchat-cli/internal/core/ports/driven"
)

// metric is the only similarity metric the index supports. It is
// stamped into every index file and checked on open so files built
// with a future metric are rejected instead of misread.
const metric = "cosine"

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS entries (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	chunk_id      TEXT NOT NULL UNIQUE,
	document_path TEXT NOT NULL,
	page          INTEGER NOT NULL,
	position      INTEGER NOT NULL,
	content       TEXT NOT NULL,
	embedding     BLOB NOT NULL
);
`

// Index is a vector index persisted in a single SQLite file.
type Index struct {
	db         *sql.DB
	path       string
	dimensions int
	model      string
}

var _ driven.VectorIndex = (*Index)(nil)

// Open opens an existing index file and verifies its metadata. A
// missing, unreadable or malformed file is reported as ErrStorage.
func Open(path string) (*Index, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: index %q: %w", domain.ErrStorage, path, err)
	}

	db, err := openDB(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening index %q: %w", domain.ErrStorage, path, err)
	}

	idx := &Index{db: db, path: path}
	if err := idx.loadMeta(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: index %q: %w", domain.ErrStorage, path, err)
	}

	return idx, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func (idx *Index) loadMeta() error {
	rows, err := idx.db.Query("SELECT key, value FROM meta")
	if err != nil {
		return fmt.Errorf("reading index metadata: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("scanning index metadata: %w", err)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading index metadata: %w", err)
	}

	if meta["metric"] != metric {
		return fmt.Errorf("unsupported similarity metric %q", meta["metric"])
	}
	if meta["model"] == "" {
		return fmt.Errorf("missing embedding model metadata")
	}
	var dims int
	if _, err := fmt.Sscanf(meta["dimensions"], "%d", &dims); err != nil || dims <= 0 {
		return fmt.Errorf("invalid embedding dimensions %q", meta["dimensions"])
	}

	idx.model = meta["model"]
	idx.dimensions = dims
	return nil
}

// Add upserts entries into the index. An overwritten entry keeps its
// original insertion order.
func (idx *Index) Add(ctx context.Context, entries []domain.IndexEntry) error {
	for _, entry := range entries {
		if len(entry.Embedding) != idx.dimensions {
			return fmt.Errorf("%w: embedding has %d dimensions, index expects %d",
				domain.ErrInvalidInput, len(entry.Embedding), idx.dimensions)
		}
	}

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", domain.ErrStorage, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (chunk_id, document_path, page, position, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			document_path = excluded.document_path,
			page          = excluded.page,
			position      = excluded.position,
			content       = excluded.content,
			embedding     = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("%w: prepare statement: %w", domain.ErrStorage, err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		if _, err := stmt.ExecContext(ctx,
			entry.Chunk.ID, entry.Chunk.DocumentPath, entry.Chunk.Page,
			entry.Chunk.Position, entry.Chunk.Content, float32SliceToBytes(entry.Embedding)); err != nil {
			return fmt.Errorf("%w: saving entry: %w", domain.ErrStorage, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit entries: %w", domain.ErrStorage, err)
	}
	return nil
}

// Query returns the k entries most similar to the given embedding,
// most similar first. Entries with equal similarity keep their
// insertion order.
func (idx *Index) Query(ctx context.Context, embedding []float32, k int) ([]domain.QueryMatch, error) {
	if len(embedding) != idx.dimensions {
		return nil, fmt.Errorf("%w: query embedding has %d dimensions, index expects %d",
			domain.ErrInvalidInput, len(embedding), idx.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}

	rows, err := idx.db.QueryContext(ctx, `
		SELECT chunk_id, document_path, page, position, content, embedding
		FROM entries ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying entries: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	var matches []domain.QueryMatch
	for rows.Next() {
		var entry domain.IndexEntry
		var blob []byte
		if err := rows.Scan(&entry.Chunk.ID, &entry.Chunk.DocumentPath, &entry.Chunk.Page,
			&entry.Chunk.Position, &entry.Chunk.Content, &blob); err != nil {
			return nil, fmt.Errorf("%w: scanning entry: %w", domain.ErrStorage, err)
		}
		entry.Embedding = bytesToFloat32Slice(blob)
		matches = append(matches, domain.QueryMatch{
			Entry:      entry,
			Similarity: cosine(embedding, entry.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading entries: %w", domain.ErrStorage, err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// Count returns the number of entries in the index.
func (idx *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := idx.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting entries: %w", domain.ErrStorage, err)
	}
	return n, nil
}

// Dimensions returns the embedding dimension the index was built with.
func (idx *Index) Dimensions() int { return idx.dimensions }

// ModelName returns the embedding model the index was built with.
func (idx *Index) ModelName() string { return idx.model }

// Close closes the underlying database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Builder builds a new index file at a staging path next to the final
// path. Commit atomically replaces the final file; until then the
// previous index, if any, stays intact.
type Builder struct {
	Index
	finalPath string
	done      bool
}

var _ driven.IndexBuilder = (*Builder)(nil)

// NewBuilder creates an empty staged index for the given model.
func NewBuilder(path string, dimensions int, model string) (*Builder, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: embedding dimensions must be positive, got %d",
			domain.ErrInvalidInput, dimensions)
	}
	if model == "" {
		return nil, fmt.Errorf("%w: embedding model must not be empty", domain.ErrInvalidInput)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating index directory: %w", domain.ErrStorage, err)
	}

	staging := path + ".staging"
	if err := os.Remove(staging); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: removing stale staging index: %w", domain.ErrStorage, err)
	}

	db, err := openDB(staging)
	if err != nil {
		return nil, fmt.Errorf("%w: creating staging index: %w", domain.ErrStorage, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		os.Remove(staging)
		return nil, fmt.Errorf("%w: creating index schema: %w", domain.ErrStorage, err)
	}

	_, err = db.Exec(`
		INSERT INTO meta (key, value) VALUES
			('metric', ?), ('model', ?), ('dimensions', ?)`,
		metric, model, fmt.Sprintf("%d", dimensions))
	if err != nil {
		db.Close()
		os.Remove(staging)
		return nil, fmt.Errorf("%w: writing index metadata: %w", domain.ErrStorage, err)
	}

	return &Builder{
		Index: Index{
			db:         db,
			path:       staging,
			dimensions: dimensions,
			model:      model,
		},
		finalPath: path,
	}, nil
}

// Commit closes the staged index and renames it over the final path.
// The rename is the single point at which the new index becomes
// visible.
func (b *Builder) Commit() error {
	if b.done {
		return fmt.Errorf("%w: index build already finished", domain.ErrStorage)
	}
	b.done = true

	if err := b.db.Close(); err != nil {
		os.Remove(b.path)
		return fmt.Errorf("%w: closing staging index: %w", domain.ErrStorage, err)
	}
	// WAL sidecars must not outlive the staging file.
	os.Remove(b.path + "-wal")
	os.Remove(b.path + "-shm")

	if err := os.Rename(b.path, b.finalPath); err != nil {
		os.Remove(b.path)
		return fmt.Errorf("%w: replacing index: %w", domain.ErrStorage, err)
	}
	return nil
}

// Abort discards the staged index. Calling Abort after Commit is a
// no-op, so it is safe to defer.
func (b *Builder) Abort() error {
	if b.done {
		return nil
	}
	b.done = true

	b.db.Close()
	os.Remove(b.path + "-wal")
	os.Remove(b.path + "-shm")
	if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: removing staging index: %w", domain.ErrStorage, err)
	}
	return nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// cosine computes cosine similarity between two equal-length vectors.
// Zero vectors yield a similarity of zero.
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
