// Package domain defines the core business entities for Docchat.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A source PDF that was ingested
//   - PageText: Raw text extracted from one page of a source file
//   - Chunk: A bounded span of document text, the unit of retrieval
//   - IndexEntry: A chunk together with its embedding, as persisted
//   - QueryMatch: A retrieved entry with its similarity score
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
