package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memoryindex "github.com/custodia-labs/docchat-cli/internal/adapters/driven/index/memory"
	"github.com/custodia-labs/docchat-cli/internal/core/domain"
	"github.com/custodia-labs/docchat-cli/internal/core/ports/driven"
)

// ==================== Mocks ====================

type mockIndex struct {
	matches []domain.QueryMatch
	err     error
	gotK    int
	gotVec  []float32
}

func (m *mockIndex) Add(_ context.Context, _ []domain.IndexEntry) error { return nil }

func (m *mockIndex) Query(_ context.Context, vector []float32, k int) ([]domain.QueryMatch, error) {
	m.gotVec = vector
	m.gotK = k
	if m.err != nil {
		return nil, m.err
	}
	if k > len(m.matches) {
		k = len(m.matches)
	}
	return m.matches[:k], nil
}

func (m *mockIndex) Count(_ context.Context) (int, error) { return len(m.matches), nil }
func (m *mockIndex) Dimensions() int                      { return 3 }
func (m *mockIndex) ModelName() string                    { return "mock-embed" }
func (m *mockIndex) Close() error                         { return nil }

type mockLLM struct {
	answer   string
	err      error
	failures int
	calls    int
	gotMsgs  []driven.ChatMessage
}

func (m *mockLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	return m.Chat(context.Background(), []driven.ChatMessage{{Role: "user", Content: prompt}}, driven.ChatOptions{})
}

func (m *mockLLM) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	m.calls++
	m.gotMsgs = messages
	if m.failures > 0 {
		m.failures--
		return "", domain.ErrRateLimited
	}
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

func (m *mockLLM) ModelName() string            { return "mock-llm" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

// ==================== Helpers ====================

func match(id, content string, similarity float64) domain.QueryMatch {
	return domain.QueryMatch{
		Entry: domain.IndexEntry{
			Chunk: domain.Chunk{
				ID:           id,
				DocumentPath: "docs/guide.pdf",
				Page:         3,
				Content:      content,
			},
			Embedding: []float32{1, 0, 0},
		},
		Similarity: similarity,
	}
}

func newChatService(index *mockIndex, llm *mockLLM, retrieval domain.RetrievalSettings) *ChatService {
	return NewChatService(&mockEmbedder{dims: 3}, index, llm, ChatConfig{
		Retrieval: retrieval,
		Retry:     fastRetry(),
	})
}

// ==================== Tests ====================

func TestAsk_EmptyQuestion(t *testing.T) {
	svc := newChatService(&mockIndex{}, &mockLLM{}, domain.RetrievalSettings{})

	_, err := svc.Ask(context.Background(), "   \t ")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAsk_AnswersWithSources(t *testing.T) {
	index := &mockIndex{matches: []domain.QueryMatch{
		match("c1", "The grace period is 30 days.", 0.92),
		match("c2", "Late payments incur a fee.", 0.81),
	}}
	llm := &mockLLM{answer: "The grace period is 30 days."}
	svc := newChatService(index, llm, domain.RetrievalSettings{TopK: 2})

	answer, err := svc.Ask(context.Background(), "How long is the grace period?")
	require.NoError(t, err)

	assert.Equal(t, "The grace period is 30 days.", answer.Text)
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "c1", answer.Sources[0].Entry.Chunk.ID)
	assert.Equal(t, 2, index.gotK)

	// The system message carries the retrieved excerpts and their source.
	require.NotEmpty(t, llm.gotMsgs)
	system := llm.gotMsgs[0]
	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, "The grace period is 30 days.")
	assert.Contains(t, system.Content, "docs/guide.pdf, page 3")

	// The question is the final message.
	last := llm.gotMsgs[len(llm.gotMsgs)-1]
	assert.Equal(t, "user", last.Role)
	assert.Equal(t, "How long is the grace period?", last.Content)
}

func TestAsk_CancelledContextStopsRetrying(t *testing.T) {
	index := &mockIndex{matches: []domain.QueryMatch{match("c1", "content", 0.9)}}
	svc := newChatService(index, &mockLLM{answer: "x"}, domain.RetrievalSettings{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Ask(ctx, "a question")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAsk_RetrievesNearestFromRealIndex(t *testing.T) {
	// End to end through a real index: the mock embedder maps any
	// question to a vector along the first axis, so entries are ranked
	// by how closely their stored vectors align with it.
	index := memoryindex.New(3, "mock-embed")
	entries := []domain.IndexEntry{
		{
			Chunk:     domain.Chunk{ID: "far", DocumentPath: "a.pdf", Page: 1, Content: "Unrelated appendix."},
			Embedding: []float32{0, 1, 0},
		},
		{
			Chunk:     domain.Chunk{ID: "near", DocumentPath: "a.pdf", Page: 2, Content: "Refunds are issued within 14 days."},
			Embedding: []float32{1, 0, 0},
		},
		{
			Chunk:     domain.Chunk{ID: "middle", DocumentPath: "b.pdf", Page: 1, Content: "Refund requests need a receipt."},
			Embedding: []float32{0.6, 0.8, 0},
		},
	}
	require.NoError(t, index.Add(context.Background(), entries))

	llm := &mockLLM{answer: "Within 14 days."}
	svc := NewChatService(&mockEmbedder{dims: 3}, index, llm, ChatConfig{
		Retrieval: domain.RetrievalSettings{TopK: 2},
		Retry:     fastRetry(),
	})

	answer, err := svc.Ask(context.Background(), "How fast are refunds?")
	require.NoError(t, err)

	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "near", answer.Sources[0].Entry.Chunk.ID)
	assert.Equal(t, "middle", answer.Sources[1].Entry.Chunk.ID)
	assert.Greater(t, answer.Sources[0].Similarity, answer.Sources[1].Similarity)
}

func TestAsk_EmptyIndex(t *testing.T) {
	svc := newChatService(&mockIndex{}, &mockLLM{}, domain.RetrievalSettings{})

	_, err := svc.Ask(context.Background(), "anything")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAsk_DefaultTopK(t *testing.T) {
	index := &mockIndex{matches: []domain.QueryMatch{match("c1", "text", 0.9)}}
	svc := newChatService(index, &mockLLM{answer: "ok"}, domain.RetrievalSettings{})

	_, err := svc.Ask(context.Background(), "question")
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultTopK, index.gotK)
}

func TestAsk_ContextBudgetDropsFarthestChunks(t *testing.T) {
	index := &mockIndex{matches: []domain.QueryMatch{
		match("near", strings.Repeat("a", 80), 0.9),
		match("mid", strings.Repeat("b", 80), 0.8),
		match("far", strings.Repeat("c", 80), 0.7),
	}}
	llm := &mockLLM{answer: "ok"}
	svc := newChatService(index, llm, domain.RetrievalSettings{
		TopK:          3,
		ContextBudget: 170,
	})

	answer, err := svc.Ask(context.Background(), "question")
	require.NoError(t, err)

	// Third chunk exceeds the budget and is dropped; ranking is kept.
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "near", answer.Sources[0].Entry.Chunk.ID)
	assert.Equal(t, "mid", answer.Sources[1].Entry.Chunk.ID)
	assert.NotContains(t, llm.gotMsgs[0].Content, strings.Repeat("c", 80))
}

func TestAsk_NearestChunkAlwaysKept(t *testing.T) {
	index := &mockIndex{matches: []domain.QueryMatch{
		match("huge", strings.Repeat("x", 500), 0.9),
	}}
	svc := newChatService(index, &mockLLM{answer: "ok"}, domain.RetrievalSettings{
		TopK:          1,
		ContextBudget: 100,
	})

	answer, err := svc.Ask(context.Background(), "question")
	require.NoError(t, err)

	require.Len(t, answer.Sources, 1)
}

func TestAsk_HistoryCarriesAcrossTurns(t *testing.T) {
	index := &mockIndex{matches: []domain.QueryMatch{match("c1", "text", 0.9)}}
	llm := &mockLLM{answer: "first answer"}
	svc := newChatService(index, llm, domain.RetrievalSettings{HistoryTurns: 4})

	_, err := svc.Ask(context.Background(), "first question")
	require.NoError(t, err)

	llm.answer = "second answer"
	_, err = svc.Ask(context.Background(), "second question")
	require.NoError(t, err)

	// system + 2 history messages + current question
	require.Len(t, llm.gotMsgs, 4)
	assert.Equal(t, "first question", llm.gotMsgs[1].Content)
	assert.Equal(t, "first answer", llm.gotMsgs[2].Content)
	assert.Equal(t, "second question", llm.gotMsgs[3].Content)
}

func TestAsk_HistoryIsCapped(t *testing.T) {
	index := &mockIndex{matches: []domain.QueryMatch{match("c1", "text", 0.9)}}
	llm := &mockLLM{answer: "answer"}
	svc := newChatService(index, llm, domain.RetrievalSettings{HistoryTurns: 2})

	for i := 0; i < 5; i++ {
		_, err := svc.Ask(context.Background(), fmt.Sprintf("question %d", i))
		require.NoError(t, err)
	}

	// system + 2 turns of history + current question
	require.Len(t, llm.gotMsgs, 6)
	assert.Equal(t, "question 2", llm.gotMsgs[1].Content)
	assert.Equal(t, "question 3", llm.gotMsgs[3].Content)
	assert.Equal(t, "question 4", llm.gotMsgs[5].Content)
}

func TestAsk_HistoryDisabled(t *testing.T) {
	index := &mockIndex{matches: []domain.QueryMatch{match("c1", "text", 0.9)}}
	llm := &mockLLM{answer: "answer"}
	svc := newChatService(index, llm, domain.RetrievalSettings{HistoryTurns: 0})

	_, err := svc.Ask(context.Background(), "first")
	require.NoError(t, err)
	_, err = svc.Ask(context.Background(), "second")
	require.NoError(t, err)

	// system + current question only
	assert.Len(t, llm.gotMsgs, 2)
}

func TestReset_ClearsHistory(t *testing.T) {
	index := &mockIndex{matches: []domain.QueryMatch{match("c1", "text", 0.9)}}
	llm := &mockLLM{answer: "answer"}
	svc := newChatService(index, llm, domain.RetrievalSettings{HistoryTurns: 4})

	_, err := svc.Ask(context.Background(), "before reset")
	require.NoError(t, err)

	svc.Reset()

	_, err = svc.Ask(context.Background(), "after reset")
	require.NoError(t, err)

	assert.Len(t, llm.gotMsgs, 2)
}

func TestAsk_RetriesRateLimitedGeneration(t *testing.T) {
	index := &mockIndex{matches: []domain.QueryMatch{match("c1", "text", 0.9)}}
	llm := &mockLLM{answer: "eventually", failures: 2}
	svc := newChatService(index, llm, domain.RetrievalSettings{})

	answer, err := svc.Ask(context.Background(), "question")
	require.NoError(t, err)

	assert.Equal(t, "eventually", answer.Text)
	assert.Equal(t, 3, llm.calls)
}

func TestAsk_GenerationFailure(t *testing.T) {
	index := &mockIndex{matches: []domain.QueryMatch{match("c1", "text", 0.9)}}
	llm := &mockLLM{err: domain.ErrGeneration}
	svc := newChatService(index, llm, domain.RetrievalSettings{})

	_, err := svc.Ask(context.Background(), "question")

	assert.ErrorIs(t, err, domain.ErrGeneration)
}
