package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/docchat-cli/internal/core/domain"
	"github.com/custodia-labs/docchat-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docchat-cli/internal/core/ports/driving"
	"github.com/custodia-labs/docchat-cli/internal/logger"
	"github.com/custodia-labs/docchat-cli/internal/resilience"
)

// Ensure ChatService implements the interface.
var _ driving.Answerer = (*ChatService)(nil)

// systemPrompt instructs the model to stay grounded in the retrieved
// excerpts.
const systemPrompt = `You are a helpful assistant answering questions about the user's documents.
Answer using ONLY the document excerpts below. If the excerpts do not
contain the answer, say so; do not invent information. Cite the source
file and page when it helps.

Document excerpts:
%s`

// ChatConfig holds configuration for the query pipeline.
type ChatConfig struct {
	// Retrieval holds top-k, history and context budget settings.
	// Zero values fall back to the domain defaults.
	Retrieval domain.RetrievalSettings

	// Retry configures transient-failure retries for embedding and
	// generation calls.
	Retry resilience.RetryOpts
}

// ChatService answers questions over the indexed corpus. It keeps a
// rolling conversation history so follow-up questions carry context.
type ChatService struct {
	embedder driven.EmbeddingService
	index    driven.VectorIndex
	llm      driven.LLMService
	cfg      ChatConfig

	mu      sync.Mutex
	history []driven.ChatMessage
}

// NewChatService creates a new chat service.
func NewChatService(
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	llm driven.LLMService,
	cfg ChatConfig,
) *ChatService {
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = domain.DefaultTopK
	}
	if cfg.Retrieval.ContextBudget <= 0 {
		cfg.Retrieval.ContextBudget = domain.DefaultContextBudget
	}
	if cfg.Retrieval.HistoryTurns < 0 {
		cfg.Retrieval.HistoryTurns = 0
	}

	return &ChatService{
		embedder: embedder,
		index:    index,
		llm:      llm,
		cfg:      cfg,
	}
}

// Ask answers a question over the indexed corpus.
func (s *ChatService) Ask(ctx context.Context, question string) (*driving.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}

	logger.Section("Query")
	logger.Debug("Question: %q", question)

	var queryVec []float32
	err := resilience.Retry(ctx, s.cfg.Retry, func(ctx context.Context) error {
		var embedErr error
		queryVec, embedErr = s.embedder.Embed(ctx, question)
		return embedErr
	})
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	matches, err := s.index.Query(ctx, queryVec, s.cfg.Retrieval.TopK)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	logger.Debug("Retrieved %d chunks", len(matches))

	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: the index has no entries, run 'docchat ingest' first", domain.ErrNotFound)
	}

	matches = s.fitBudget(matches)
	messages := s.assembleMessages(question, matches)

	var answer string
	err = resilience.Retry(ctx, s.cfg.Retry, func(ctx context.Context) error {
		var genErr error
		answer, genErr = s.llm.Chat(ctx, messages, driven.ChatOptions{})
		return genErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}

	s.remember(question, answer)

	return &driving.Answer{
		Text:    answer,
		Sources: matches,
	}, nil
}

// Reset clears the rolling conversation history.
func (s *ChatService) Reset() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}

// fitBudget drops the lowest-ranked chunks until the retrieved context
// fits the configured character budget. The nearest chunk is always
// kept, even if it alone exceeds the budget.
func (s *ChatService) fitBudget(matches []domain.QueryMatch) []domain.QueryMatch {
	total := 0
	for i, match := range matches {
		total += len(match.Entry.Chunk.Content)
		if total > s.cfg.Retrieval.ContextBudget && i > 0 {
			logger.Debug("Context budget reached, keeping %d of %d chunks", i, len(matches))
			return matches[:i]
		}
	}
	return matches
}

// assembleMessages builds the chat transcript: a system message with
// the retrieved excerpts, the capped rolling history, and the question.
func (s *ChatService) assembleMessages(question string, matches []domain.QueryMatch) []driven.ChatMessage {
	var context strings.Builder
	for i, match := range matches {
		chunk := match.Entry.Chunk
		fmt.Fprintf(&context, "[%d] %s, page %d:\n%s\n\n", i+1, chunk.DocumentPath, chunk.Page, chunk.Content)
	}

	messages := []driven.ChatMessage{
		{Role: "system", Content: fmt.Sprintf(systemPrompt, context.String())},
	}

	s.mu.Lock()
	messages = append(messages, s.history...)
	s.mu.Unlock()

	return append(messages, driven.ChatMessage{Role: "user", Content: question})
}

// remember appends the turn to the history, capped at the configured
// number of turns (a turn is one question and one answer).
func (s *ChatService) remember(question, answer string) {
	if s.cfg.Retrieval.HistoryTurns == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history,
		driven.ChatMessage{Role: "user", Content: question},
		driven.ChatMessage{Role: "assistant", Content: answer},
	)

	maxMessages := s.cfg.Retrieval.HistoryTurns * 2
	if len(s.history) > maxMessages {
		s.history = s.history[len(s.history)-maxMessages:]
	}
}
