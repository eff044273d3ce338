package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/cratedig/internal/formatter"
	"github.com/desertthunder/cratedig/internal/library"
	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/services"
	"github.com/desertthunder/cratedig/internal/shared"
	"github.com/desertthunder/cratedig/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Roll samples seeds from the library, fetches recommendations, and prints the preview.
//
// With --create the preview becomes a playlist and is recorded in history.
func (r *Runner) Roll(ctx context.Context, cmd *cli.Command) error {
	modeFlag := cmd.String("mode")
	if modeFlag == "" {
		modeFlag = r.config.Roll.DefaultMode
	}
	mode, err := models.ParseDiceMode(modeFlag)
	if err != nil {
		return err
	}

	size := cmd.Int("size")
	if size == 0 {
		size = r.config.Roll.DefaultSize
	}
	if !models.ValidOutputSize(size) {
		return fmt.Errorf("%w: %d", shared.ErrInvalidOutputSize, size)
	}

	lib, err := r.loadLibrary()
	if err != nil {
		return err
	}
	genres := cmd.StringSlice("genre")
	pool := library.FilterByGenres(lib.Songs, genres)
	if len(pool) == 0 {
		return fmt.Errorf("%w: no songs match genres %s", shared.ErrEmptyLibrary, strings.Join(genres, ", "))
	}

	asJSON := cmd.Bool("json")
	title := cmd.String("title")
	if title == "" {
		title = tasks.DefaultTitle(time.Now())
	}

	r.logger.Info("rolling", "mode", mode, "size", size, "pool", len(pool))

	progressCh, stop := r.progress(asJSON)
	result, err := r.rollEngine(ctx).Roll(ctx, progressCh, models.RollRequest{
		Mode:       mode,
		OutputSize: size,
		Library:    pool,
	})
	stop()
	if err != nil {
		return err
	}

	if path := cmd.String("export"); path != "" {
		format := exportFormat(path, cmd.String("format"))
		files, err := formatter.WriteRollExport(title, result, format, path)
		if err != nil {
			return err
		}
		r.logger.Info("roll exported", "format", format, "files", len(files))
		if !asJSON {
			for _, f := range files {
				r.writePlain("✓ Exported %s\n", f)
			}
		}
	}

	if !cmd.Bool("create") {
		if asJSON {
			return r.writeJSON(result, true)
		}
		return r.printRoll(title, result)
	}

	if !asJSON {
		r.printRoll(title, result)
	}
	return r.createPlaylist(ctx, title, result, asJSON)
}

func (r *Runner) createPlaylist(ctx context.Context, title string, result *models.RollResult, asJSON bool) error {
	assembler, err := r.playlistAssembler(ctx)
	if err != nil {
		return err
	}

	progressCh, stop := r.progress(asJSON)
	created, err := assembler.Assemble(ctx, progressCh, tasks.AssembleRequest{Title: title, Roll: result})
	stop()
	if err != nil {
		return err
	}

	recordErr := <-created.Recorded
	if asJSON {
		out := struct {
			Playlist *services.CreatedPlaylist `json:"playlist"`
			Roll     *models.RollResult        `json:"roll"`
			Warning  string                    `json:"warning,omitempty"`
		}{Playlist: created.Playlist, Roll: result}
		if recordErr != nil {
			out.Warning = shared.UserMessage(recordErr)
		}
		return r.writeJSON(out, true)
	}

	r.writePlainln("✓ Playlist created with %d tracks", created.Playlist.TrackCount)
	r.writePlain("  %s\n", created.Playlist.URL)
	if recordErr != nil {
		r.logger.Warn("roll not saved to history", "error", recordErr)
		r.writePlain("⚠ %s\n", shared.UserMessage(recordErr))
	}
	return nil
}

// progress prints updates as plain text, or discards them when output is JSON.
func (r *Runner) progress(quiet bool) (chan<- tasks.ProgressUpdate, func()) {
	if quiet {
		return nil, func() {}
	}
	return r.printProgress()
}

func (r *Runner) printRoll(title string, result *models.RollResult) error {
	text, err := formatter.RollToText(title, result)
	if err != nil {
		return err
	}
	r.writePlain("\n")
	if _, err := r.output.Write(text); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// exportFormat returns format, or the format implied by the file extension when format is empty.
func exportFormat(path, format string) string {
	if format != "" {
		return format
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return formatter.FormatCSV
	case ".txt":
		return formatter.FormatText
	case ".json":
		return formatter.FormatJSON
	case "":
		return formatter.FormatMarkdown
	default:
		return formatter.FormatJSON
	}
}
