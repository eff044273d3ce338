package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/cratedig/internal/library"
	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/repositories"
	"github.com/desertthunder/cratedig/internal/services"
	"github.com/desertthunder/cratedig/internal/shared"
	"github.com/desertthunder/cratedig/internal/tasks"
)

// MaxUploadSize bounds library uploads.
const MaxUploadSize int64 = 10 << 20

// LibraryStore holds the single active library.
type LibraryStore interface {
	Load() (*models.Library, error)
	Replace(filename string, songs []models.Track) (*models.Library, error)
}

// HistoryStore pages, reads, and prunes saved rolls.
type HistoryStore interface {
	tasks.HistoryReader
	Get(id string) (*models.RollRecord, error)
	Count() (int, error)
}

// ConnectionStore describes the stored YouTube connection.
type ConnectionStore interface {
	Status() (*repositories.Connection, error)
}

// HealthChecker reports whether the recommendation proxy is reachable.
type HealthChecker interface {
	Health(ctx context.Context) (*services.HealthStatus, error)
}

// APIOpts wires the JSON API to its collaborators. Nil collaborators disable their endpoints with 503.
type APIOpts struct {
	Library    LibraryStore
	History    HistoryStore
	Engine     *tasks.RollEngine
	Assembler  *tasks.Assembler
	Checker    services.ExistenceChecker
	Connection ConnectionStore
	Proxy      HealthChecker
	CheckRate  float64
	Logger     *log.Logger
}

// API serves the roll pipeline as JSON over HTTP.
type API struct {
	opts   APIOpts
	logger *log.Logger
}

// NewAPI creates the JSON API.
func NewAPI(opts APIOpts) *API {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &API{opts: opts, logger: shared.WithLogger(logger, "component", "api")}
}

// Register adds the API routes to router.
func (a *API) Register(router *Router) {
	router.HandleFunc(http.MethodGet, "/health", a.handleHealth)
	router.HandleFunc(http.MethodGet, "/api/library", a.handleGetLibrary)
	router.HandleFunc(http.MethodPost, "/api/library", a.handleUploadLibrary)
	router.HandleFunc(http.MethodGet, "/api/library/genres", a.handleGenres)
	router.HandleFunc(http.MethodPost, "/api/roll", a.handleRoll)
	router.HandleFunc(http.MethodPost, "/api/playlists", a.handleCreatePlaylist)
	router.HandleFunc(http.MethodGet, "/api/rolls", a.handleListRolls)
	router.HandleFunc(http.MethodGet, "/api/rolls/{id}", a.handleGetRoll)
	router.HandleFunc(http.MethodDelete, "/api/rolls/{id}", a.handleDeleteRoll)
	router.HandleFunc(http.MethodPost, "/api/rolls/check", a.handleCheckRolls)
	router.HandleFunc(http.MethodGet, "/api/youtube/status", a.handleYouTubeStatus)
}

type errorResponse struct {
	Error string `json:"error"`
}

type libraryResponse struct {
	ID          string               `json:"id"`
	Filename    string               `json:"filename"`
	SongCount   int                  `json:"songCount"`
	ArtistCount int                  `json:"artistCount"`
	UploadedAt  string               `json:"uploadedAt"`
	Genres      []library.GenreCount `json:"genres"`
	Songs       []models.Track       `json:"songs,omitempty"`
	Skipped     int                  `json:"skipped,omitempty"`
	Duplicates  int                  `json:"duplicates,omitempty"`
}

type rollRequest struct {
	Mode   string   `json:"mode"`
	Size   int      `json:"size"`
	Genres []string `json:"genres"`
}

type createPlaylistRequest struct {
	Title  string                    `json:"title"`
	Roll   *models.RollResult        `json:"roll"`
	Tracks []models.RecommendedTrack `json:"tracks"`
}

type createPlaylistResponse struct {
	Playlist *services.CreatedPlaylist `json:"playlist"`
	Record   *models.RollRecord        `json:"record"`
	Warning  string                    `json:"warning,omitempty"`
}

type listRollsResponse struct {
	Rolls  []*models.RollRecord `json:"rolls"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

type statusResponse struct {
	Connected  bool                     `json:"connected"`
	Connection *repositories.Connection `json:"connection,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "status", status, "err", err)
	} else {
		a.logger.Debug("request rejected", "status", status, "err", err)
	}
	writeJSON(w, status, errorResponse{Error: shared.UserMessage(err)})
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrEmptyInput),
		errors.Is(err, shared.ErrMissingColumns),
		errors.Is(err, shared.ErrNoValidRows),
		errors.Is(err, shared.ErrEmptyLibrary),
		errors.Is(err, shared.ErrEmptyTrackList),
		errors.Is(err, shared.ErrInvalidOutputSize),
		errors.Is(err, shared.ErrInvalidMode),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrRollNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrStaleRoll):
		return http.StatusConflict
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrRecommendationService),
		errors.Is(err, shared.ErrPlaylistCreation),
		errors.Is(err, shared.ErrAPIRequest):
		return http.StatusBadGateway
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func unavailable(name string) error {
	return fmt.Errorf("%w: %s not configured", shared.ErrServiceUnavailable, name)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

func toLibraryResponse(lib *models.Library) libraryResponse {
	return libraryResponse{
		ID:          lib.ID,
		Filename:    lib.Filename,
		SongCount:   lib.SongCount,
		ArtistCount: lib.ArtistCount,
		UploadedAt:  lib.UploadedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Genres:      library.Genres(lib.Songs),
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok", "service": "cratedig"}
	if a.opts.Proxy != nil {
		if _, err := a.opts.Proxy.Health(r.Context()); err != nil {
			body["proxy"] = "unreachable"
		} else {
			body["proxy"] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// handleGetLibrary returns the active library. ?search= and ?genre= narrow the returned songs.
func (a *API) handleGetLibrary(w http.ResponseWriter, r *http.Request) {
	lib, ok := a.loadLibrary(w)
	if !ok {
		return
	}

	songs := library.FilterByGenres(lib.Songs, r.URL.Query()["genre"])
	songs = library.Search(songs, r.URL.Query().Get("search"))

	resp := toLibraryResponse(lib)
	resp.Songs = songs
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleGenres(w http.ResponseWriter, r *http.Request) {
	lib, ok := a.loadLibrary(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, library.Genres(lib.Songs))
}

func (a *API) loadLibrary(w http.ResponseWriter) (*models.Library, bool) {
	if a.opts.Library == nil {
		a.writeError(w, unavailable("library store"))
		return nil, false
	}
	lib, err := a.opts.Library.Load()
	if err != nil {
		a.writeError(w, err)
		return nil, false
	}
	if lib == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "No library uploaded"})
		return nil, false
	}
	return lib, true
}

// handleUploadLibrary accepts a multipart "file" field or a raw CSV body.
//
// A rejected upload leaves the previous library in place.
func (a *API) handleUploadLibrary(w http.ResponseWriter, r *http.Request) {
	if a.opts.Library == nil {
		a.writeError(w, unavailable("library store"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)

	var (
		src      io.Reader = r.Body
		filename           = r.URL.Query().Get("filename")
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			a.writeError(w, fmt.Errorf("%w: missing file field: %v", shared.ErrMissingArgument, err))
			return
		}
		defer file.Close()
		src = file
		if filename == "" {
			filename = header.Filename
		}
	}
	if filename == "" {
		filename = "library.csv"
	}

	parsed, err := library.ParseReader(src)
	if err != nil {
		a.writeError(w, err)
		return
	}

	lib, err := a.opts.Library.Replace(filename, parsed.Songs)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.logger.Info("library uploaded", "filename", filename, "songs", lib.SongCount,
		"artists", lib.ArtistCount, "skipped", parsed.Skipped, "duplicates", parsed.Duplicates)

	resp := toLibraryResponse(lib)
	resp.Skipped = parsed.Skipped
	resp.Duplicates = parsed.Duplicates
	writeJSON(w, http.StatusCreated, resp)
}

// handleRoll runs one roll over the library narrowed by the request's genres.
//
// A roll overtaken by a newer one answers 409 and its result is dropped.
func (a *API) handleRoll(w http.ResponseWriter, r *http.Request) {
	if a.opts.Engine == nil {
		a.writeError(w, unavailable("roll engine"))
		return
	}

	var body rollRequest
	if err := decodeJSON(r, &body); err != nil {
		a.writeError(w, err)
		return
	}

	mode := models.ModeRandom
	if body.Mode != "" {
		m, err := models.ParseDiceMode(body.Mode)
		if err != nil {
			a.writeError(w, err)
			return
		}
		mode = m
	}

	lib, ok := a.loadLibrary(w)
	if !ok {
		return
	}

	result, err := a.opts.Engine.Roll(r.Context(), nil, models.RollRequest{
		Mode:       mode,
		OutputSize: body.Size,
		Library:    library.FilterByGenres(lib.Songs, body.Genres),
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	if !a.opts.Engine.IsCurrent(result.Generation) {
		a.writeError(w, shared.ErrStaleRoll)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCreatePlaylist saves a previewed roll as a playlist.
//
// The response waits for the history write so clients can surface a warning, but a failed write
// never fails the request.
func (a *API) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	if a.opts.Assembler == nil {
		a.writeError(w, unavailable("playlist service"))
		return
	}

	var body createPlaylistRequest
	if err := decodeJSON(r, &body); err != nil {
		a.writeError(w, err)
		return
	}

	res, err := a.opts.Assembler.Assemble(r.Context(), nil, tasks.AssembleRequest{
		Title:  strings.TrimSpace(body.Title),
		Roll:   body.Roll,
		Tracks: body.Tracks,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}

	resp := createPlaylistResponse{Playlist: res.Playlist, Record: res.Record}
	select {
	case err := <-res.Recorded:
		if err != nil {
			resp.Warning = shared.UserMessage(err)
		}
	case <-r.Context().Done():
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleListRolls(w http.ResponseWriter, r *http.Request) {
	if a.opts.History == nil {
		a.writeError(w, unavailable("history store"))
		return
	}

	limit, err := intParam(r, "limit", repositories.DefaultPageSize)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if limit == 0 {
		limit = repositories.DefaultPageSize
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		a.writeError(w, err)
		return
	}

	rolls, err := a.opts.History.List(limit, offset)
	if err != nil {
		a.writeError(w, err)
		return
	}
	total, err := a.opts.History.Count()
	if err != nil {
		a.writeError(w, err)
		return
	}
	if rolls == nil {
		rolls = []*models.RollRecord{}
	}
	writeJSON(w, http.StatusOK, listRollsResponse{Rolls: rolls, Total: total, Limit: limit, Offset: offset})
}

func (a *API) handleGetRoll(w http.ResponseWriter, r *http.Request) {
	if a.opts.History == nil {
		a.writeError(w, unavailable("history store"))
		return
	}
	record, err := a.opts.History.Get(r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (a *API) handleDeleteRoll(w http.ResponseWriter, r *http.Request) {
	if a.opts.History == nil {
		a.writeError(w, unavailable("history store"))
		return
	}
	if err := a.opts.History.Delete(r.PathValue("id")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCheckRolls flags (or with ?prune=true deletes) rolls whose playlist no longer exists.
func (a *API) handleCheckRolls(w http.ResponseWriter, r *http.Request) {
	if a.opts.History == nil || a.opts.Checker == nil {
		a.writeError(w, unavailable("playlist checker"))
		return
	}

	prune, _ := strconv.ParseBool(r.URL.Query().Get("prune"))
	reconciler := tasks.NewReconciler(a.opts.Checker, a.opts.History, a.logger, tasks.ReconcileOpts{
		Prune:     prune,
		RateLimit: a.opts.CheckRate,
	})

	result, err := reconciler.Reconcile(r.Context(), nil)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleYouTubeStatus(w http.ResponseWriter, r *http.Request) {
	if a.opts.Connection == nil {
		writeJSON(w, http.StatusOK, statusResponse{})
		return
	}
	conn, err := a.opts.Connection.Status()
	if errors.Is(err, shared.ErrNotAuthenticated) {
		writeJSON(w, http.StatusOK, statusResponse{})
		return
	}
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Connected: true, Connection: conn})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", shared.ErrInvalidArgument, name)
	}
	return n, nil
}
