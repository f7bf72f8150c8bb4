package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input, including
	// an embedding whose dimension does not match the index.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLoad indicates the corpus could not be read: the data
	// directory is missing, or a file failed to parse in strict mode.
	ErrLoad = errors.New("corpus load failed")

	// ErrEmbedding indicates the embedding service failed after the
	// retry budget was exhausted.
	ErrEmbedding = errors.New("embedding service failed")

	// ErrGeneration indicates the LLM failed to produce an answer
	// after the retry budget was exhausted.
	ErrGeneration = errors.New("answer generation failed")

	// ErrStorage indicates the persisted index is missing or corrupt,
	// or a write to it failed.
	ErrStorage = errors.New("index storage failed")

	// ErrRateLimited indicates the remote API rejected a request with
	// a rate-limit response. Callers treat this as retryable.
	ErrRateLimited = errors.New("rate limited")

	// ErrEmbeddingUnavailable indicates no embedding provider is
	// configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates no LLM provider is configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")
)
