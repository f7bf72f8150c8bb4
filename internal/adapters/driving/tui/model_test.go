package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat-cli/internal/core/domain"
	"github.com/custodia-labs/docchat-cli/internal/core/ports/driving"
)

type stubAnswerer struct {
	answer *driving.Answer
	err    error
	asked  []string
	resets int
}

func (s *stubAnswerer) Ask(_ context.Context, question string) (*driving.Answer, error) {
	s.asked = append(s.asked, question)
	if s.err != nil {
		return nil, s.err
	}
	return s.answer, nil
}

func (s *stubAnswerer) Reset() { s.resets++ }

func sizedModel(answerer driving.Answerer) Model {
	m := NewModel(context.Background(), answerer)
	resized, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return resized.(Model)
}

func TestModel_SubmitDispatchesQuestion(t *testing.T) {
	stub := &stubAnswerer{answer: &driving.Answer{Text: "42"}}
	m := sizedModel(stub)
	m.input.SetValue("what is the answer?")

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)

	require.NotNil(t, cmd)
	assert.True(t, m.waiting)
	assert.Empty(t, m.input.Value())

	msg := cmd()
	answer, ok := msg.(answerMsg)
	require.True(t, ok)
	assert.Equal(t, "what is the answer?", answer.question)
	assert.Equal(t, "42", answer.answer.Text)
	assert.Equal(t, []string{"what is the answer?"}, stub.asked)
}

func TestModel_EmptyQuestionIsIgnored(t *testing.T) {
	stub := &stubAnswerer{}
	m := sizedModel(stub)
	m.input.SetValue("   ")

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.False(t, updated.(Model).waiting)
	assert.Empty(t, stub.asked)
}

func TestModel_IgnoresEnterWhileWaiting(t *testing.T) {
	stub := &stubAnswerer{answer: &driving.Answer{Text: "ok"}}
	m := sizedModel(stub)
	m.waiting = true
	m.input.SetValue("another question")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Empty(t, stub.asked)
}

func TestModel_AnswerAppendsToTranscript(t *testing.T) {
	m := sizedModel(&stubAnswerer{})
	m.waiting = true

	answer := &driving.Answer{
		Text: "Chunking splits pages into overlapping windows.",
		Sources: []domain.QueryMatch{
			{
				Entry: domain.IndexEntry{Chunk: domain.Chunk{
					DocumentPath: "docs/guide.pdf",
					Page:         3,
				}},
				Similarity: 0.91,
			},
		},
	}
	updated, _ := m.Update(answerMsg{question: "how does chunking work?", answer: answer})
	m = updated.(Model)

	assert.False(t, m.waiting)
	require.Len(t, m.turns, 1)
	assert.Contains(t, m.turns[0], "how does chunking work?")
	assert.Contains(t, m.turns[0], "overlapping windows")
	assert.Contains(t, m.turns[0], "docs/guide.pdf, page 3")
}

func TestModel_AskErrorIsShownInline(t *testing.T) {
	m := sizedModel(&stubAnswerer{})
	m.waiting = true

	updated, _ := m.Update(answerMsg{question: "q", err: errors.New("model overloaded")})
	m = updated.(Model)

	assert.False(t, m.waiting)
	require.Len(t, m.turns, 1)
	assert.Contains(t, m.turns[0], "model overloaded")
}

func TestModel_CtrlRResetsHistory(t *testing.T) {
	stub := &stubAnswerer{}
	m := sizedModel(stub)
	m.turns = []string{"You: q\nold answer"}

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	m = updated.(Model)

	assert.Equal(t, 1, stub.resets)
	assert.Empty(t, m.turns)
}

func TestModel_CtrlCQuits(t *testing.T) {
	m := sizedModel(&stubAnswerer{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
