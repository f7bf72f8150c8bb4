package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docchat-cli/internal/core/ports/driving"
)

var (
	transcriptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	questionStyle = lipgloss.NewStyle().Bold(true)

	sourceStyle = lipgloss.NewStyle().Faint(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	statusStyle = lipgloss.NewStyle().Faint(true)
)

// answerMsg carries the result of one asynchronous Ask.
type answerMsg struct {
	question string
	answer   *driving.Answer
	err      error
}

// Model is the bubbletea model for the chat session.
type Model struct {
	ctx      context.Context
	answerer driving.Answerer

	input      textinput.Model
	transcript viewport.Model

	turns   []string
	waiting bool
	ready   bool
	status  string
}

// NewModel builds the chat model. The context bounds every Ask issued
// from the UI.
func NewModel(ctx context.Context, answerer driving.Answerer) Model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "Ask a question about your documents"
	input.Focus()

	return Model{
		ctx:      ctx,
		answerer: answerer,
		input:    input,
		status:   "enter to ask, ctrl+r to reset history, ctrl+c to quit",
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.resize(msg), nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlR:
			m.answerer.Reset()
			m.turns = nil
			m.status = "History cleared."
			m.refreshTranscript()
			return m, nil
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyUp:
			m.transcript.LineUp(1)
			return m, nil
		case tea.KeyDown:
			m.transcript.LineDown(1)
			return m, nil
		}

	case answerMsg:
		m.waiting = false
		m.status = "enter to ask, ctrl+r to reset history, ctrl+c to quit"
		if msg.err != nil {
			m.turns = append(m.turns, renderError(msg.question, msg.err))
		} else {
			m.turns = append(m.turns, renderTurn(msg.question, msg.answer))
		}
		m.refreshTranscript()
		m.transcript.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		transcriptStyle.Render(m.transcript.View()),
		inputStyle.Render(m.input.View()),
		statusStyle.Render(m.status),
	)
}

func (m Model) resize(msg tea.WindowSizeMsg) Model {
	frameW, frameH := transcriptStyle.GetFrameSize()
	_, inputH := inputStyle.GetFrameSize()

	width := msg.Width - frameW
	height := msg.Height - frameH - inputH - 2 // input line and status line

	if !m.ready {
		m.transcript = viewport.New(width, height)
		m.ready = true
	} else {
		m.transcript.Width = width
		m.transcript.Height = height
	}
	m.input.Width = width - len(m.input.Prompt)
	m.refreshTranscript()
	return m
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	question := strings.TrimSpace(m.input.Value())
	if question == "" || m.waiting {
		return m, nil
	}
	m.input.Reset()
	m.waiting = true
	m.status = "thinking..."
	return m, ask(m.ctx, m.answerer, question)
}

func (m *Model) refreshTranscript() {
	m.transcript.SetContent(strings.Join(m.turns, "\n\n"))
}

// ask runs one pipeline turn off the UI goroutine.
func ask(ctx context.Context, answerer driving.Answerer, question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := answerer.Ask(ctx, question)
		return answerMsg{question: question, answer: answer, err: err}
	}
}

func renderTurn(question string, answer *driving.Answer) string {
	var b strings.Builder
	b.WriteString(questionStyle.Render("You: " + question))
	b.WriteString("\n")
	b.WriteString(answer.Text)
	if len(answer.Sources) > 0 {
		b.WriteString("\n")
		var sources strings.Builder
		sources.WriteString("Sources:")
		for i, src := range answer.Sources {
			sources.WriteString(fmt.Sprintf("\n  [%d] %s, page %d (%.2f)",
				i+1, src.Entry.Chunk.DocumentPath, src.Entry.Chunk.Page, src.Similarity))
		}
		b.WriteString(sourceStyle.Render(sources.String()))
	}
	return b.String()
}

func renderError(question string, err error) string {
	return questionStyle.Render("You: "+question) + "\n" +
		errorStyle.Render("Error: "+err.Error())
}
