package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"taskboard/internal/grouping"
	"taskboard/internal/reorder"
)

// Run shows the interactive board until the user quits or ctx is done.
func Run(ctx context.Context, board *reorder.Orchestrator, src grouping.GroupSource, opts Options) error {
	applyColorProfile(opts.NoColor)
	applyThemePreference()

	m, cancel := New(ctx, board, src, opts)
	defer cancel()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err == tea.ErrProgramKilled && ctx.Err() != nil {
		return nil
	}
	return err
}
