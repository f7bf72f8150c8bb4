// Package chunker provides a deterministic overlapping text splitter.
package chunker

import (
	"strings"
	"unicode"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Splitter splits text into overlapping chunks of bounded size.
// Chunk boundaries prefer paragraph breaks, then sentence ends, then
// whitespace, falling back to a hard cut. Sizes are in runes so a
// multi-byte character is never split.
type Splitter struct {
	chunkSize int
	overlap   int
}

// Piece is one chunk of the input together with its rune offset.
// Consecutive pieces overlap by up to the configured overlap and
// cover the input without gaps.
type Piece struct {
	// Text is the chunk content.
	Text string

	// Start is the rune offset of the chunk within the input.
	Start int
}

// Option configures the splitter.
type Option func(*Splitter)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// New creates a splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Overlap must stay below chunk size
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}

	return s
}

// ChunkSize returns the configured chunk size.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// Split divides text into overlapping pieces. The result is
// deterministic: the same input and configuration always produce the
// same pieces. Whitespace-only input produces no pieces.
func (s *Splitter) Split(text string) []Piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	total := len(runes)

	estimated := total/(s.chunkSize-s.overlap) + 1
	pieces := make([]Piece, 0, estimated)

	start := 0
	for start < total {
		end := start + s.chunkSize
		if end >= total {
			end = total
		} else {
			end = s.breakpoint(runes, start, end)
		}

		pieces = append(pieces, Piece{
			Text:  string(runes[start:end]),
			Start: start,
		})

		if end >= total {
			break
		}

		next := end - s.overlap
		if next <= start {
			// Guarantee forward progress even for degenerate configs.
			next = start + 1
		}
		start = next
	}

	return pieces
}

// breakpoint searches the window [start, end) for a natural cut: the
// last paragraph break, then the last sentence end, then the last
// whitespace. A chunk shrinks to at most half its size in the search;
// when nothing suitable exists, end is returned unchanged (hard cut).
func (s *Splitter) breakpoint(runes []rune, start, end int) int {
	limit := start + s.chunkSize/2
	if limit >= end {
		limit = start + 1
	}

	// Paragraph break: cut just after "\n\n".
	for i := end - 1; i > limit; i-- {
		if runes[i-1] == '\n' && runes[i] == '\n' {
			return i + 1
		}
	}

	// Sentence end: terminator followed by whitespace.
	for i := end - 1; i > limit; i-- {
		if isSentenceEnd(runes[i-1]) && unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}

	// Any whitespace.
	for i := end - 1; i > limit; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}

	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
