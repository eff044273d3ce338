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

	"google.golang.org/api/option"

	"github.com/desertthunder/cratedig/internal/shared"
)

func newTestYouTubeService(t *testing.T, handler http.Handler) *YouTubeService {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewYouTubeService(context.Background(), nil,
		option.WithHTTPClient(server.Client()),
		option.WithEndpoint(server.URL+"/"),
	)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc
}

func requestedIDs(r *http.Request) []string {
	var ids []string
	for _, v := range r.URL.Query()["id"] {
		ids = append(ids, strings.Split(v, ",")...)
	}
	return ids
}

func TestYouTubeService(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatePlaylist", func(t *testing.T) {
		var (
			mu    sync.Mutex
			added []string
		)

		svc := newTestYouTubeService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.HasSuffix(r.URL.Path, "/playlists") && r.Method == http.MethodPost:
				var body struct {
					Snippet struct{ Title string } `json:"snippet"`
					Status  struct {
						PrivacyStatus string `json:"privacyStatus"`
					} `json:"status"`
				}
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("failed to decode playlist: %v", err)
				}
				if body.Snippet.Title != "CrateDig Roll" || body.Status.PrivacyStatus != "private" {
					t.Errorf("unexpected playlist body: %+v", body)
				}
				writeJSON(t, w, http.StatusOK, map[string]string{"id": "PLdata"})
			case strings.HasSuffix(r.URL.Path, "/playlistItems"):
				var body struct {
					Snippet struct {
						PlaylistID string `json:"playlistId"`
						ResourceID struct {
							VideoID string `json:"videoId"`
						} `json:"resourceId"`
					} `json:"snippet"`
				}
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("failed to decode item: %v", err)
				}
				if body.Snippet.ResourceID.VideoID == "gone" {
					writeJSON(t, w, http.StatusNotFound, map[string]any{"error": map[string]any{"code": 404, "message": "video not found"}})
					return
				}
				mu.Lock()
				added = append(added, body.Snippet.ResourceID.VideoID)
				mu.Unlock()
				writeJSON(t, w, http.StatusOK, map[string]string{"id": "item"})
			default:
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				w.WriteHeader(http.StatusNotFound)
			}
		}))

		created, err := svc.CreatePlaylist(ctx, "CrateDig Roll", []string{"v1", "gone", "v2"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if created.ID != "PLdata" || created.TrackCount != 2 {
			t.Errorf("unexpected playlist: %+v", created)
		}
		if created.URL != PlaylistURL("PLdata") {
			t.Errorf("unexpected url %s", created.URL)
		}
		if strings.Join(added, ",") != "v1,v2" {
			t.Errorf("expected videos added in order, got %v", added)
		}
	})

	t.Run("CreatePlaylist failure", func(t *testing.T) {
		svc := newTestYouTubeService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusForbidden, map[string]any{"error": map[string]any{"code": 403, "message": "quota exceeded"}})
		}))

		_, err := svc.CreatePlaylist(ctx, "x", []string{"v1"})
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("CreatePlaylist unauthorized", func(t *testing.T) {
		svc := newTestYouTubeService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"code": 401, "message": "invalid credentials"}})
		}))

		if _, err := svc.CreatePlaylist(ctx, "x", nil); !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
	})

	t.Run("CheckExist", func(t *testing.T) {
		var (
			mu      sync.Mutex
			batches [][]string
		)

		svc := newTestYouTubeService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ids := requestedIDs(r)
			mu.Lock()
			batches = append(batches, ids)
			mu.Unlock()

			var items []map[string]string
			for _, id := range ids {
				if !strings.HasSuffix(id, "7") {
					items = append(items, map[string]string{"id": id})
				}
			}
			writeJSON(t, w, http.StatusOK, map[string]any{"items": items})
		}))

		ids := make([]string, 60)
		for i := range ids {
			ids[i] = fmt.Sprintf("PL%d", i)
		}

		exists, err := svc.CheckExist(ctx, ids)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(batches) != 2 || len(batches[0]) != 50 || len(batches[1]) != 10 {
			t.Errorf("expected batches of 50 and 10, got %d batches", len(batches))
		}
		if len(exists) != 60 {
			t.Fatalf("expected an answer for every id, got %d", len(exists))
		}
		if exists["PL7"] || exists["PL57"] {
			t.Error("ids ending in 7 should be missing")
		}
		if !exists["PL0"] || !exists["PL59"] {
			t.Error("other ids should exist")
		}
	})

	t.Run("CheckExist failure", func(t *testing.T) {
		svc := newTestYouTubeService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusBadRequest, map[string]any{"error": map[string]any{"code": 400, "message": "bad request"}})
		}))

		if _, err := svc.CheckExist(ctx, []string{"PL1"}); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("AccountName", func(t *testing.T) {
		svc := newTestYouTubeService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasSuffix(r.URL.Path, "/channels") || r.URL.Query().Get("mine") != "true" {
				t.Errorf("unexpected request %s", r.URL.String())
			}
			writeJSON(t, w, http.StatusOK, map[string]any{
				"items": []map[string]any{{"snippet": map[string]string{"title": "Crate Digger"}}},
			})
		}))

		name, err := svc.AccountName(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if name != "Crate Digger" {
			t.Errorf("expected Crate Digger, got %q", name)
		}
	})
}
