// Package sqlite provides the persisted vector index.
//
// The index is a single SQLite database file. Entries keep their
// insertion order through an AUTOINCREMENT sequence column, which also
// drives the equal-similarity tie-break at query time. Embeddings are
// stored as little-endian float32 blobs. The embedding model, its
// dimension and the similarity metric are stamped into a meta table
// when the index is built and verified when it is opened, so an index
// can never silently be queried with vectors from a different model.
//
// Ingestion writes through a Builder at a staging path; Commit
// atomically renames the staged file over the final index path.
// A failed build therefore never disturbs the previous index.
package sqlite
