package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/shared"
)

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

func TestChunk(t *testing.T) {
	ids := make([]string, 120)
	for i := range ids {
		ids[i] = fmt.Sprintf("PL%d", i)
	}

	batches := Chunk(ids, MaxExistenceBatch)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if len(batches[0]) != 50 || len(batches[1]) != 50 || len(batches[2]) != 20 {
		t.Errorf("unexpected batch sizes: %d, %d, %d", len(batches[0]), len(batches[1]), len(batches[2]))
	}
	if batches[2][19] != "PL119" {
		t.Errorf("expected order to be preserved, got %s", batches[2][19])
	}

	if got := Chunk(nil, 50); len(got) != 0 {
		t.Errorf("expected no batches for no ids, got %d", len(got))
	}
}

func TestPlaylistURL(t *testing.T) {
	if got := PlaylistURL("PL123"); got != "https://music.youtube.com/playlist?list=PL123" {
		t.Errorf("unexpected url %s", got)
	}
}

func TestProxyService(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults base URL", func(t *testing.T) {
		if svc := NewProxyService("", nil); svc.baseURL != defaultProxyURL {
			t.Errorf("expected baseURL %s, got %s", defaultProxyURL, svc.baseURL)
		}
	})

	t.Run("Recommend", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/roll" || r.Method != http.MethodPost {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}

			var body proxyRollRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("failed to decode body: %v", err)
				return
			}
			if len(body.Seeds) != 2 || body.DesiredCount != 50 {
				t.Errorf("unexpected body: %+v", body)
			}
			if body.Seeds[0].Artist != "Burial" {
				t.Errorf("expected first seed Burial, got %+v", body.Seeds[0])
			}

			writeJSON(t, w, http.StatusOK, map[string]any{
				"tracks": []map[string]string{
					{"videoId": "v1", "title": "Forgive", "artist": "Burial", "thumbnail": "https://i.ytimg.com/v1.jpg"},
					{"videoId": "v2", "title": "Glue", "artist": "Bicep"},
				},
				"seeds_used":   2,
				"seeds_failed": 0,
				"raw_found":    40,
				"after_dedup":  2,
			})
		}))
		defer server.Close()

		svc := NewProxyService(server.URL, server.Client())
		seeds := []models.Seed{{Artist: "Burial", Title: "Archangel"}, {Artist: "Bicep", Title: "Glue"}}

		rec, err := svc.Recommend(ctx, seeds, 50)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.SeedsUsed != 2 || rec.RawFound != 40 || len(rec.Candidates) != 2 {
			t.Errorf("unexpected recommendation: %+v", rec)
		}
		if rec.Candidates[0].VideoID != "v1" || rec.Candidates[0].Thumbnail == "" {
			t.Errorf("unexpected first candidate: %+v", rec.Candidates[0])
		}
	})

	t.Run("Recommend sends bearer token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer secret" {
				t.Errorf("expected bearer token, got %q", got)
			}
			writeJSON(t, w, http.StatusOK, map[string]any{"tracks": []any{}})
		}))
		defer server.Close()

		svc := NewProxyService(server.URL, server.Client()).
			WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "secret"}))
		if _, err := svc.Recommend(ctx, nil, 10); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("Recommend surfaces proxy detail", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusUnauthorized, map[string]string{"detail": "YouTube not connected"})
		}))
		defer server.Close()

		_, err := NewProxyService(server.URL, server.Client()).Recommend(ctx, nil, 10)
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
		if !strings.Contains(err.Error(), "YouTube not connected") {
			t.Errorf("expected detail in error, got %v", err)
		}
	})

	t.Run("Recommend unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		if _, err := NewProxyService(url, nil).Recommend(ctx, nil, 10); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("CreatePlaylist", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/create-playlist" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}

			var body proxyCreateRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("failed to decode body: %v", err)
				return
			}
			if body.Title != "Late Night" || strings.Join(body.VideoIDs, ",") != "v1,v2,v3" {
				t.Errorf("unexpected body: %+v", body)
			}

			writeJSON(t, w, http.StatusOK, map[string]any{"playlist_id": "PLnew", "track_count": 3})
		}))
		defer server.Close()

		created, err := NewProxyService(server.URL, server.Client()).CreatePlaylist(ctx, "Late Night", []string{"v1", "v2", "v3"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if created.ID != "PLnew" || created.TrackCount != 3 {
			t.Errorf("unexpected playlist: %+v", created)
		}
		if created.URL != PlaylistURL("PLnew") {
			t.Errorf("expected url to be filled in, got %s", created.URL)
		}
	})

	t.Run("CreatePlaylist without id", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusOK, map[string]any{})
		}))
		defer server.Close()

		if _, err := NewProxyService(server.URL, server.Client()).CreatePlaylist(ctx, "x", []string{"v1"}); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("Health", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/health" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			writeJSON(t, w, http.StatusOK, map[string]string{"status": "ok", "service": "cratedig-api"})
		}))
		defer server.Close()

		status, err := NewProxyService(server.URL, server.Client()).Health(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status.Status != "ok" {
			t.Errorf("unexpected status %+v", status)
		}
	})
}

type memoryTokenStore struct {
	mu    sync.Mutex
	tok   *oauth2.Token
	saves int
}

func (m *memoryTokenStore) Load() (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tok == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return m.tok, nil
}

func (m *memoryTokenStore) Save(tok *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = tok
	m.saves++
	return nil
}

func TestGoogleOAuthConfig(t *testing.T) {
	t.Run("requires credentials", func(t *testing.T) {
		if _, err := GoogleOAuthConfig(shared.YouTubeConfig{}); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("builds config", func(t *testing.T) {
		cfg, err := GoogleOAuthConfig(shared.YouTubeConfig{ClientID: "id", ClientSecret: "secret", RedirectURI: "http://127.0.0.1:3005/callback"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Endpoint.TokenURL == "" || len(cfg.Scopes) != 1 {
			t.Errorf("unexpected config: %+v", cfg)
		}

		url := AuthCodeURL(cfg, "state123")
		if !strings.Contains(url, "access_type=offline") || !strings.Contains(url, "state=state123") {
			t.Errorf("unexpected auth url %s", url)
		}
	})
}

func TestPersistingTokenSource(t *testing.T) {
	ctx := context.Background()

	t.Run("not authenticated", func(t *testing.T) {
		_, err := NewPersistingTokenSource(ctx, &oauth2.Config{}, &memoryTokenStore{})
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("valid token is not re-saved", func(t *testing.T) {
		store := &memoryTokenStore{tok: &oauth2.Token{AccessToken: "fresh", Expiry: time.Now().Add(time.Hour)}}

		ts, err := NewPersistingTokenSource(ctx, &oauth2.Config{}, store)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tok, err := ts.Token()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tok.AccessToken != "fresh" || store.saves != 0 {
			t.Errorf("expected stored token without save, got %s after %d saves", tok.AccessToken, store.saves)
		}
	})

	t.Run("refreshed token is saved", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusOK, map[string]any{
				"access_token": "refreshed",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		}))
		defer server.Close()

		config := &oauth2.Config{
			ClientID:     "id",
			ClientSecret: "secret",
			Endpoint:     oauth2.Endpoint{TokenURL: server.URL + "/token"},
		}
		store := &memoryTokenStore{tok: &oauth2.Token{
			AccessToken:  "stale",
			RefreshToken: "refresh",
			Expiry:       time.Now().Add(-time.Hour),
		}}

		ts, err := NewPersistingTokenSource(ctx, config, store)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tok, err := ts.Token()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tok.AccessToken != "refreshed" {
			t.Errorf("expected refreshed token, got %s", tok.AccessToken)
		}
		if store.saves != 1 || store.tok.AccessToken != "refreshed" {
			t.Errorf("expected refreshed token to be saved once, got %d saves", store.saves)
		}
	})
}
