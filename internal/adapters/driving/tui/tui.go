package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/docchat-cli/internal/core/ports/driving"
)

// Run starts the full-screen chat session and blocks until the user
// quits or ctx is cancelled.
func Run(ctx context.Context, answerer driving.Answerer) error {
	program := tea.NewProgram(
		NewModel(ctx, answerer),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("chat interface: %w", err)
	}
	return nil
}
