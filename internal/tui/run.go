package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rotisserie/eris"
)

// Run drives rev in a full-screen program until the reviewer quits or ctx
// is cancelled.
func Run(ctx context.Context, rev Reviewer, events *Events) error {
	p := tea.NewProgram(New(ctx, rev, events), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return eris.Wrap(err, "tui: run review")
	}
	return nil
}
