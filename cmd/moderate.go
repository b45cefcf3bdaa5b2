package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/zylofm/internal/shared"
	"github.com/desertthunder/zylofm/internal/tasks"
	"github.com/desertthunder/zylofm/internal/ui"
)

// Moderate launches the review console acting as the admin named by --as.
//
// Logs go to a file since the console owns the terminal.
func (r *Runner) Moderate(ctx context.Context, cmd *cli.Command) error {
	store, err := r.migratedStore()
	if err != nil {
		return err
	}
	admin, err := r.reviewer(store, cmd.String("as"))
	if err != nil {
		return err
	}
	if admin == nil {
		return fmt.Errorf("%w: --as is required", shared.ErrMissingArgument)
	}

	logger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, tasks.NewModerator(store, logger), admin.ID, logger)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("moderation console failed: %w", err)
	}
	return nil
}
