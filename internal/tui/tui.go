package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/3leaps/bucketnav/pkg/session"
)

// Run opens the browser full screen and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, sess *session.Session, opts Options) error {
	p := tea.NewProgram(New(ctx, sess, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run browser: %w", err)
	}
	return nil
}
