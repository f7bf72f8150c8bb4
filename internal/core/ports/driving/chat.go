package driving

import (
	"context"

	"github.com/custodia-labs/docchat-cli/internal/core/domain"
)

// Answer is the result of one question over the corpus.
type Answer struct {
	// Text is the generated answer.
	Text string

	// Sources are the retrieved chunks the answer was grounded on,
	// nearest first.
	Sources []domain.QueryMatch
}

// Answerer runs the query pipeline for one conversation turn:
// embed the question, retrieve the top-k nearest chunks, assemble the
// prompt and generate an answer.
type Answerer interface {
	// Ask answers a question over the indexed corpus.
	Ask(ctx context.Context, question string) (*Answer, error)

	// Reset clears the rolling conversation history.
	Reset()
}
