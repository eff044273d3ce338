package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/cratedig/internal/dice"
	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/repositories"
	"github.com/desertthunder/cratedig/internal/services"
	"github.com/desertthunder/cratedig/internal/shared"
	"github.com/desertthunder/cratedig/internal/tasks"
	tu "github.com/desertthunder/cratedig/internal/testing"
)

const libraryCSV = `Artist,Title,Genre
Burial,Archangel,Garage
Burial,Near Dark,Garage
Four Tet,Baby,House
Floating Points,Silhouettes,Jazz
Kelly Lee Owens,Jeanette,Techno
`

func TestRouter(t *testing.T) {
	t.Run("Chain runs outermost first", func(t *testing.T) {
		var order []string
		tag := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}
		h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "h") }), tag("a"), tag("b"))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if strings.Join(order, ",") != "a,b,h" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("method patterns", func(t *testing.T) {
		router := NewRouter()
		router.HandleFunc(http.MethodGet, "/thing", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("get"))
		})
		router.HandleFunc(http.MethodPost, "/thing", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("post"))
		})

		for _, method := range []string{http.MethodGet, http.MethodPost} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(method, "/thing", nil))
			if got := rec.Body.String(); got != strings.ToLower(method) {
				t.Errorf("%s /thing = %q", method, got)
			}
		}

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/thing", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("path values", func(t *testing.T) {
		router := NewRouter()
		router.HandleFunc(http.MethodGet, "/rolls/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(r.PathValue("id")))
		})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rolls/abc", nil))
		if rec.Body.String() != "abc" {
			t.Errorf("expected path value abc, got %q", rec.Body.String())
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewRouter()
		router.Use(mark("first"), mark("second"))
		router.HandleFunc(http.MethodGet, "/", func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("Logging", func(t *testing.T) {
		var buf bytes.Buffer
		logger := log.New(&buf)

		handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte("ok"))
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/roll", nil))

		out := buf.String()
		for _, want := range []string{"method=POST", "path=/api/roll", "status=201", "bytes=2"} {
			if !strings.Contains(out, want) {
				t.Errorf("log missing %q, got: %s", want, out)
			}
		}
	})

	t.Run("Recover", func(t *testing.T) {
		logger := log.New(io.Discard)
		handler := Recover(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func TestOAuthCallback(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.FormValue("code") == "expired" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		fmt.Fprint(w, `{"access_token":"ya29.token","refresh_token":"1//refresh","token_type":"Bearer","expires_in":3600}`)
	}))
	defer tokenServer.Close()

	config := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{AuthURL: tokenServer.URL + "/auth", TokenURL: tokenServer.URL + "/token"},
		RedirectURL:  "http://localhost:3000/callback",
	}

	call := func(c *OAuthCallback, query string) *httptest.ResponseRecorder {
		router := NewRouter()
		router.Mount(c)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?"+query, nil))
		return rec
	}

	t.Run("success", func(t *testing.T) {
		c := NewOAuthCallback(config, "state123")

		rec := call(c, "state=state123&code=abc")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), "YouTube Connected") {
			t.Errorf("unexpected page %s", rec.Body.String())
		}

		result := <-c.Done()
		if result.Err != nil {
			t.Fatalf("unexpected error: %v", result.Err)
		}
		if result.Token.AccessToken != "ya29.token" || result.Token.RefreshToken != "1//refresh" {
			t.Errorf("unexpected token %+v", result.Token)
		}

		if rec := call(c, "state=state123&code=abc"); rec.Code != http.StatusConflict {
			t.Errorf("second callback should be turned away, got %d", rec.Code)
		}
	})

	tc := []struct {
		name  string
		state string
		query string
		want  string
	}{
		{"state mismatch", "state123", "state=other&code=abc", "state mismatch"},
		{"denied", "s", "state=s&error=access_denied", "denied"},
		{"other provider error", "s", "state=s&error=server_error&error_description=try+later", "server_error try later"},
		{"no code", "s", "state=s", "no code"},
		{"exchange rejected", "s", "state=s&code=expired", "invalid_grant"},
	}
	for _, c := range tc {
		t.Run(c.name, func(t *testing.T) {
			cb := NewOAuthCallback(config, c.state)

			rec := call(cb, c.query)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}

			result := <-cb.Done()
			if !errors.Is(result.Err, shared.ErrAuthFailed) {
				t.Fatalf("expected ErrAuthFailed, got %v", result.Err)
			}
			if !strings.Contains(result.Err.Error(), c.want) {
				t.Errorf("error %q should mention %q", result.Err, c.want)
			}
			if result.Token != nil {
				t.Error("failed attempts should not carry a token")
			}
		})
	}

	t.Run("only GET is routed", func(t *testing.T) {
		router := NewRouter()
		router.Mount(NewOAuthCallback(config, "s"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, CallbackPath, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

type apiFixture struct {
	router      *Router
	recommender *tu.MockRecommender
	playlists   *tu.MockPlaylistService
	checker     *tu.MockExistenceChecker
	history     *repositories.RollRepository
	libraries   *repositories.LibraryRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	logger := log.New(io.Discard)
	f := &apiFixture{
		recommender: &tu.MockRecommender{Result: &services.Recommendation{SeedsUsed: 2, Candidates: tu.Candidates(30)}},
		playlists:   &tu.MockPlaylistService{},
		checker:     &tu.MockExistenceChecker{Missing: map[string]bool{}},
		history:     repositories.NewRollRepository(db),
		libraries:   repositories.NewLibraryRepository(db),
	}

	api := NewAPI(APIOpts{
		Library:    f.libraries,
		History:    f.history,
		Engine:     tasks.NewRollEngine(f.recommender, dice.NewSampler(7), logger),
		Assembler:  tasks.NewAssembler(f.playlists, f.history, logger),
		Checker:    f.checker,
		Connection: repositories.NewTokenRepository(db),
		CheckRate:  100,
		Logger:     logger,
	})

	f.router = NewRouter()
	f.router.Use(Recover(logger))
	api.Register(f.router)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) doJSON(t *testing.T, method, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return f.do(t, method, path, bytes.NewReader(data), "application/json")
}

func (f *apiFixture) upload(t *testing.T) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/library?filename=crate.csv", strings.NewReader(libraryCSV), "text/csv")
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload failed: %d %s", rec.Code, rec.Body.String())
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestLibraryAPI(t *testing.T) {
	t.Run("no library", func(t *testing.T) {
		f := newAPIFixture(t)

		rec := f.do(t, http.MethodGet, "/api/library", nil, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("raw upload then search", func(t *testing.T) {
		f := newAPIFixture(t)
		f.upload(t)

		rec := f.do(t, http.MethodGet, "/api/library?search=burial", nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		resp := decode[libraryResponse](t, rec)
		if resp.Filename != "crate.csv" || resp.SongCount != 5 || resp.ArtistCount != 4 {
			t.Errorf("unexpected library %+v", resp)
		}
		if len(resp.Songs) != 2 {
			t.Errorf("expected 2 search hits, got %d", len(resp.Songs))
		}
		if len(resp.Genres) != 4 || resp.Genres[0].Genre != "Garage" || resp.Genres[0].Count != 2 {
			t.Errorf("unexpected genres %+v", resp.Genres)
		}
	})

	t.Run("multipart upload", func(t *testing.T) {
		f := newAPIFixture(t)

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", "export.csv")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write([]byte(libraryCSV))
		mw.Close()

		rec := f.do(t, http.MethodPost, "/api/library", &body, mw.FormDataContentType())
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if resp := decode[libraryResponse](t, rec); resp.Filename != "export.csv" {
			t.Errorf("expected filename from form, got %s", resp.Filename)
		}
	})

	t.Run("rejected upload keeps previous library", func(t *testing.T) {
		f := newAPIFixture(t)
		f.upload(t)

		rec := f.do(t, http.MethodPost, "/api/library", strings.NewReader("Song,Album\na,b\n"), "text/csv")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if msg := decode[errorResponse](t, rec).Error; !strings.Contains(msg, "Found: Song, Album") {
			t.Errorf("expected found headers in message, got %q", msg)
		}

		lib, err := f.libraries.Load()
		if err != nil || lib == nil || lib.SongCount != 5 {
			t.Errorf("previous library should survive, got %+v, %v", lib, err)
		}
	})

	t.Run("genres", func(t *testing.T) {
		f := newAPIFixture(t)
		f.upload(t)

		rec := f.do(t, http.MethodGet, "/api/library/genres", nil, "")
		genres := decode[[]map[string]any](t, rec)
		if len(genres) != 4 {
			t.Errorf("expected 4 genres, got %v", genres)
		}
	})
}

func TestRollAPI(t *testing.T) {
	t.Run("roll", func(t *testing.T) {
		f := newAPIFixture(t)
		f.upload(t)

		rec := f.doJSON(t, http.MethodPost, "/api/roll", rollRequest{Mode: "random", Size: 10})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		result := decode[models.RollResult](t, rec)
		if len(result.Tracks) != 10 || result.CandidatesFound != 30 {
			t.Errorf("expected 10 of 30 tracks, got %d of %d", len(result.Tracks), result.CandidatesFound)
		}
		if len(f.recommender.LastSeeds) != 2 {
			t.Errorf("expected ceil(10*0.15)=2 seeds, got %d", len(f.recommender.LastSeeds))
		}
	})

	t.Run("genre filter narrows seeds", func(t *testing.T) {
		f := newAPIFixture(t)
		f.upload(t)

		rec := f.doJSON(t, http.MethodPost, "/api/roll", rollRequest{Size: 20, Genres: []string{"Garage"}})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		for _, s := range f.recommender.LastSeeds {
			if s.Artist != "Burial" {
				t.Errorf("seed outside genre filter: %+v", s)
			}
		}
	})

	t.Run("rejections", func(t *testing.T) {
		f := newAPIFixture(t)
		f.upload(t)

		tests := []struct {
			name string
			body rollRequest
		}{
			{"size too small", rollRequest{Size: 5}},
			{"size too large", rollRequest{Size: 101}},
			{"unknown mode", rollRequest{Mode: "shuffle", Size: 20}},
			{"genre with no songs", rollRequest{Size: 20, Genres: []string{"Polka"}}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := f.doJSON(t, http.MethodPost, "/api/roll", tt.body)
				if rec.Code != http.StatusBadRequest {
					t.Errorf("expected 400, got %d", rec.Code)
				}
			})
		}

		if f.recommender.Calls != 0 {
			t.Errorf("recommender should not be called, got %d calls", f.recommender.Calls)
		}
	})

	t.Run("recommender failure", func(t *testing.T) {
		f := newAPIFixture(t)
		f.upload(t)
		f.recommender.Err = errors.New("proxy down")

		rec := f.doJSON(t, http.MethodPost, "/api/roll", rollRequest{Size: 20})
		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		f := newAPIFixture(t)

		rec := f.do(t, http.MethodPost, "/api/roll", strings.NewReader("{"), "application/json")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestPlaylistAndHistoryAPI(t *testing.T) {
	f := newAPIFixture(t)
	f.upload(t)

	roll := decode[models.RollResult](t, f.doJSON(t, http.MethodPost, "/api/roll", rollRequest{Mode: "deep", Size: 20}))
	trimmed := models.RemoveTrack(roll.Tracks, 0)

	rec := f.doJSON(t, http.MethodPost, "/api/playlists", createPlaylistRequest{Title: "Friday", Roll: &roll, Tracks: trimmed})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	created := decode[createPlaylistResponse](t, rec)
	if created.Playlist.ID != "PLmock1" || created.Warning != "" {
		t.Errorf("unexpected response %+v", created)
	}
	if created.Record.TrackCount != 19 || created.Record.TracksFound != 30 || created.Record.OutputSize != 20 {
		t.Errorf("unexpected record %+v", created.Record)
	}
	if f.playlists.LastTitle != "Friday" || len(f.playlists.LastIDs) != 19 {
		t.Errorf("unexpected playlist call %q %d", f.playlists.LastTitle, len(f.playlists.LastIDs))
	}

	saved, err := f.history.List(1, 0)
	if err != nil || len(saved) != 1 {
		t.Fatalf("expected one saved roll, got %d, %v", len(saved), err)
	}
	id := saved[0].ID

	t.Run("list", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/rolls", nil, "")
		list := decode[listRollsResponse](t, rec)
		if list.Total != 1 || len(list.Rolls) != 1 || list.Limit != repositories.DefaultPageSize {
			t.Fatalf("unexpected list %+v", list)
		}
		if list.Rolls[0].PlaylistID != "PLmock1" || list.Rolls[0].Mode != models.ModeDeep {
			t.Errorf("unexpected record %+v", list.Rolls[0])
		}
	})

	t.Run("bad paging", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/rolls?limit=abc", nil, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("empty track list", func(t *testing.T) {
		rec := f.doJSON(t, http.MethodPost, "/api/playlists", createPlaylistRequest{Roll: &roll, Tracks: []models.RecommendedTrack{}})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("check marks missing playlists", func(t *testing.T) {
		f.checker.Missing["PLmock1"] = true

		rec := f.do(t, http.MethodPost, "/api/rolls/check", nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := decode[tasks.ReconcileResult](t, rec)
		if result.Missing != 1 {
			t.Errorf("expected 1 missing, got %+v", result)
		}

		record, err := f.history.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !record.PlaylistMissing {
			t.Error("expected record flagged missing")
		}
	})

	t.Run("get and delete", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/rolls/"+id, nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		rec = f.do(t, http.MethodDelete, "/api/rolls/"+id, nil, "")
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}

		rec = f.do(t, http.MethodDelete, "/api/rolls/"+id, nil, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 on second delete, got %d", rec.Code)
		}
	})
}

func TestYouTubeStatusAPI(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/youtube/status", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if status := decode[statusResponse](t, rec); status.Connected {
		t.Error("expected not connected")
	}
}

type fakeProxy struct{ err error }

func (p fakeProxy) Health(ctx context.Context) (*services.HealthStatus, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &services.HealthStatus{Status: "healthy"}, nil
}

func TestHealthAPI(t *testing.T) {
	tests := []struct {
		name  string
		proxy HealthChecker
		want  string
	}{
		{"no proxy", nil, ""},
		{"proxy ok", fakeProxy{}, "ok"},
		{"proxy down", fakeProxy{err: shared.ErrServiceUnavailable}, "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter()
			NewAPI(APIOpts{Proxy: tt.proxy, Logger: log.New(io.Discard)}).Register(router)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			body := decode[map[string]string](t, rec)
			if body["status"] != "ok" || body["proxy"] != tt.want {
				t.Errorf("unexpected health %v", body)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{shared.ErrNoValidRows, http.StatusBadRequest},
		{fmt.Errorf("%w: 5", shared.ErrInvalidOutputSize), http.StatusBadRequest},
		{shared.ErrEmptyLibrary, http.StatusBadRequest},
		{shared.ErrRollNotFound, http.StatusNotFound},
		{shared.ErrStaleRoll, http.StatusConflict},
		{shared.ErrNotAuthenticated, http.StatusUnauthorized},
		{fmt.Errorf("%w: boom", shared.ErrPlaylistCreation), http.StatusBadGateway},
		{shared.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
