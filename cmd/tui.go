package main

import (
	"context"
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/shared"
	"github.com/desertthunder/cratedig/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive roll screen.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.loadLibrary()
	if err != nil {
		return err
	}

	mode, err := models.ParseDiceMode(r.config.Roll.DefaultMode)
	if err != nil {
		mode = models.ModeRandom
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	logPath, err := shared.ResolveDataPath(cmd.String("log-file"), filepath.Join("logs", "tui.log"))
	if err != nil {
		return err
	}
	fileLogger, closer, err := shared.NewFileLogger(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer closer.Close()
	shared.SetLogLevel(fileLogger, r.logger.GetLevel())
	r.SetLogger(fileLogger)

	assembler, err := r.playlistAssembler(ctx)
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, ui.Options{
		Engine:    r.rollEngine(ctx),
		Assembler: assembler,
		Library:   lib,
		Mode:      mode,
		Size:      r.config.Roll.DefaultSize,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	assembler.Wait()
	return nil
}
