package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cratedig/internal/dice"
	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/repositories"
	"github.com/desertthunder/cratedig/internal/services"
	"github.com/desertthunder/cratedig/internal/shared"
	"github.com/desertthunder/cratedig/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database and the remote services are opened on first use so commands like setup run without them.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	sampler    *dice.Sampler

	db        *sql.DB
	library   *repositories.LibraryRepository
	rolls     *repositories.RollRepository
	tokens    *repositories.TokenRepository
	proxy     *services.ProxyService
	assembler *tasks.Assembler
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	DB         *sql.DB // Pre-opened database; nil opens the configured one on first use
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Sampler    *dice.Sampler
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Sampler == nil {
		opts.Sampler = dice.Default()
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		db:         opts.DB,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		sampler:    opts.Sampler,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, libraryCommand, rollCommand, historyCommand, authCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by the runner and everything it builds afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close waits for background history writes, then closes the database.
func (r *Runner) Close() error {
	if r.assembler != nil {
		r.assembler.Wait()
	}
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// database opens the configured database and its repositories once.
func (r *Runner) database() (*sql.DB, error) {
	if r.db == nil {
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return nil, err
		}
		r.db = db
	}
	if r.library == nil {
		if err := shared.RunMigrations(r.db); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		r.library = repositories.NewLibraryRepository(r.db)
		r.rolls = repositories.NewRollRepository(r.db)
		r.tokens = repositories.NewTokenRepository(r.db)
	}
	return r.db, nil
}

// loadLibrary returns the active library, or [shared.ErrEmptyLibrary] when none was imported.
func (r *Runner) loadLibrary() (*models.Library, error) {
	if _, err := r.database(); err != nil {
		return nil, err
	}
	lib, err := r.library.Load()
	if err != nil {
		return nil, err
	}
	if lib == nil {
		return nil, fmt.Errorf("%w: run 'cratedig library import <file>' first", shared.ErrEmptyLibrary)
	}
	return lib, nil
}

// proxyService returns the recommendation proxy client. When YouTube is connected the proxy
// receives the account's bearer token.
func (r *Runner) proxyService(ctx context.Context) *services.ProxyService {
	if r.proxy != nil {
		return r.proxy
	}

	r.proxy = services.NewProxyService(r.config.Credentials.YouTube.ProxyURL, r.httpClient)
	if ts, err := r.tokenSource(ctx); err == nil {
		r.proxy.WithTokenSource(ts)
	} else if !errors.Is(err, shared.ErrNotAuthenticated) && !errors.Is(err, shared.ErrMissingCredentials) {
		r.logger.Debug("proxy will run without a YouTube token", "error", err)
	}
	return r.proxy
}

func (r *Runner) tokenSource(ctx context.Context) (*services.PersistingTokenSource, error) {
	oauthConfig, err := services.GoogleOAuthConfig(r.config.Credentials.YouTube)
	if err != nil {
		return nil, err
	}
	if _, err := r.database(); err != nil {
		return nil, err
	}
	return services.NewPersistingTokenSource(ctx, oauthConfig, r.tokens)
}

// youtubeService returns a Data API client authorized by the stored YouTube connection.
func (r *Runner) youtubeService(ctx context.Context) (*services.YouTubeService, error) {
	ts, err := r.tokenSource(ctx)
	if err != nil {
		return nil, err
	}
	return services.NewYouTubeService(ctx, ts)
}

// playlistService picks the backend named by roll.playlist_backend.
func (r *Runner) playlistService(ctx context.Context) (services.PlaylistService, error) {
	switch r.config.Roll.PlaylistBackend {
	case shared.BackendDataAPI:
		return r.youtubeService(ctx)
	default:
		return r.proxyService(ctx), nil
	}
}

func (r *Runner) rollEngine(ctx context.Context) *tasks.RollEngine {
	return tasks.NewRollEngine(r.proxyService(ctx), r.sampler, shared.WithLogger(r.logger, "component", "roll"))
}

func (r *Runner) playlistAssembler(ctx context.Context) (*tasks.Assembler, error) {
	if r.assembler != nil {
		return r.assembler, nil
	}
	if _, err := r.database(); err != nil {
		return nil, err
	}
	playlists, err := r.playlistService(ctx)
	if err != nil {
		return nil, err
	}
	r.assembler = tasks.NewAssembler(playlists, r.rolls, shared.WithLogger(r.logger, "component", "assembler"))
	return r.assembler, nil
}

// printProgress writes progress messages until the returned stop function is called.
func (r *Runner) printProgress() (chan<- tasks.ProgressUpdate, func()) {
	progressCh := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.writePlain("→ %s\n", update.Message)
		}
	}()
	return progressCh, func() {
		close(progressCh)
		<-done
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
