package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/subnurb/mediaplace/internal/shared"
	"github.com/subnurb/mediaplace/internal/ui"
	"github.com/urfave/cli/v3"
)

// Review launches the interactive terminal UI for reviewing a job's matches.
func (r *Runner) Review(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering.
	// The engine inherits the file logger, so this must happen first.
	logPath := "./tmp/mediaplace-review.log"
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	r.SetLogger(shared.NewLogger(logFile))

	engine, closer, err := r.openEngine()
	if err != nil {
		return err
	}
	defer closer()

	model := ui.NewModel(ctx, engine, cmd.String("job"))
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

func reviewCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "review",
		Usage:  "Interactively review a job's matches before pushing",
		Flags:  []cli.Flag{jobFlag()},
		Action: r.Review,
	}
}
