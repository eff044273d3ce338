package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/cratedig/internal/formatter"
	"github.com/desertthunder/cratedig/internal/library"
	"github.com/desertthunder/cratedig/internal/shared"
	"github.com/urfave/cli/v3"
)

const topGenres = 10

// LibraryImport parses a CSV export and replaces the active library with it.
func (r *Runner) LibraryImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("file")
	if path == "" {
		return fmt.Errorf("%w: library CSV file path", shared.ErrMissingArgument)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	defer f.Close()

	parsed, err := library.ParseReader(f)
	if err != nil {
		return err
	}

	if _, err := r.database(); err != nil {
		return err
	}
	lib, err := r.library.Replace(filepath.Base(path), parsed.Songs)
	if err != nil {
		return err
	}

	r.logger.Info("library imported", "file", lib.Filename, "songs", lib.SongCount,
		"skipped", parsed.Skipped, "duplicates", parsed.Duplicates)

	if cmd.Bool("json") {
		return r.writeJSON(lib, true)
	}

	r.writePlain("✓ Imported %d songs by %d artists from %s\n", lib.SongCount, lib.ArtistCount, lib.Filename)
	if parsed.Skipped > 0 {
		r.writePlain("  Skipped %d malformed rows\n", parsed.Skipped)
	}
	if parsed.Duplicates > 0 {
		r.writePlain("  Dropped %d duplicate rows\n", parsed.Duplicates)
	}
	return nil
}

// LibraryShow prints the library summary and its songs, optionally filtered.
func (r *Runner) LibraryShow(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.loadLibrary()
	if err != nil {
		return err
	}

	songs := library.FilterByGenres(lib.Songs, cmd.StringSlice("genre"))
	songs = library.Search(songs, cmd.String("search"))
	if limit := cmd.Int("limit"); limit > 0 && limit < len(songs) {
		songs = songs[:limit]
	}

	if cmd.Bool("json") {
		return r.writeJSON(songs, true)
	}

	r.writePlainHeader("Library")
	r.writePlain("%s\n\n", formatter.LibrarySummary(lib, time.Now(), topGenres))
	if len(songs) == 0 {
		return r.writePlain("No songs match.\n")
	}
	return formatter.SongTable(r.output, songs)
}

// LibraryGenres lists genres with their song counts.
func (r *Runner) LibraryGenres(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.loadLibrary()
	if err != nil {
		return err
	}

	genres := library.Genres(lib.Songs)
	if cmd.Bool("json") {
		return r.writeJSON(genres, true)
	}

	if len(genres) == 0 {
		return r.writePlain("The library has no genre column.\n")
	}
	for _, g := range genres {
		r.writePlain("%5d  %s\n", g.Count, g.Genre)
	}
	return nil
}

// LibraryClear removes the active library.
func (r *Runner) LibraryClear(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.database(); err != nil {
		return err
	}
	if err := r.library.Clear(); err != nil {
		return err
	}
	return r.writePlain("✓ Library cleared\n")
}
