// submodule cmd contains command definitions
package main

import (
	"fmt"

	"github.com/desertthunder/cratedig/internal/formatter"
	"github.com/desertthunder/cratedig/internal/models"
	"github.com/urfave/cli/v3"
)

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output JSON",
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand handles first-run setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml from the bundled template",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:  "rollback",
				Usage: "Revert the newest database migration",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Actually drop the tables",
					},
				},
				Action: r.SetupRollback,
			},
		},
	}
}

// libraryCommand manages the uploaded music library.
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Import and browse your music library",
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Replace the library with a CSV export (needs artist and title columns)",
				Arguments: []cli.Argument{&cli.StringArg{Name: "file"}},
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.LibraryImport,
			},
			{
				Name:  "show",
				Usage: "Show the library summary and songs",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "search",
						Aliases: []string{"s"},
						Usage:   "Only songs whose artist or title contains this text",
					},
					&cli.StringSliceFlag{
						Name:    "genre",
						Aliases: []string{"g"},
						Usage:   "Only songs in these genres (repeatable)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of songs to list",
						Value: 50,
					},
					jsonFlag(),
				},
				Action: r.LibraryShow,
			},
			{
				Name:   "genres",
				Usage:  "List genres with song counts",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.LibraryGenres,
			},
			{
				Name:   "clear",
				Usage:  "Remove the library",
				Action: r.LibraryClear,
			},
		},
	}
}

// rollCommand rolls the dice over the library.
func rollCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "roll",
		Usage: "Roll seeds from your library and preview recommended tracks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "mode",
				Aliases: []string{"m"},
				Usage:   fmt.Sprintf("Dice mode: %s or %s (default from config)", models.ModeRandom, models.ModeDeep),
			},
			&cli.IntFlag{
				Name:    "size",
				Aliases: []string{"n"},
				Usage:   fmt.Sprintf("Playlist size, %d-%d (default from config)", models.MinOutputSize, models.MaxOutputSize),
			},
			&cli.StringSliceFlag{
				Name:    "genre",
				Aliases: []string{"g"},
				Usage:   "Only seed from these genres (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "create",
				Usage: "Create a YouTube Music playlist from the roll and save it to history",
			},
			&cli.StringFlag{
				Name:    "title",
				Aliases: []string{"t"},
				Usage:   "Playlist title (default: CrateDig Roll - <date>)",
			},
			&cli.StringFlag{
				Name:    "export",
				Aliases: []string{"o"},
				Usage:   "Write the roll to this file (a directory for markdown)",
			},
			&cli.StringFlag{
				Name: "format",
				Usage: fmt.Sprintf("Export format: %s, %s, %s or %s (default from the export extension)",
					formatter.FormatCSV, formatter.FormatMarkdown, formatter.FormatText, formatter.FormatJSON),
			},
			jsonFlag(),
		},
		Action: r.Roll,
	}
}

// historyCommand handles saved rolls.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Browse and maintain saved rolls",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List saved rolls, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Rolls per page",
						Value: 20,
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Rolls to skip",
					},
					jsonFlag(),
				},
				Action: r.HistoryList,
			},
			{
				Name:      "show",
				Usage:     "Show one saved roll",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.HistoryShow,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a saved roll (the playlist is kept)",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.HistoryDelete,
			},
			{
				Name:  "check",
				Usage: "Flag saved rolls whose playlist was deleted on YouTube",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "prune",
						Usage: "Delete those rolls instead of flagging them",
					},
					jsonFlag(),
				},
				Action: r.HistoryCheck,
			},
		},
	}
}

// authCommand handles the YouTube connection
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the YouTube connection",
		Commands: []*cli.Command{
			{
				Name:    "youtube",
				Aliases: []string{"yt", "login"},
				Usage:   "Connect a YouTube account using OAuth2",
				Action:  r.AuthYouTube,
			},
			{
				Name:   "status",
				Usage:  "Show the YouTube connection and proxy health",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored YouTube token",
				Action: r.AuthLogout,
			},
		},
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default from config server.host:server.port)",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive roll screen",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the TUI runs (default: XDG data dir)",
			},
		},
		Action: r.TUI,
	}
}
