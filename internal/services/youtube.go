// YouTube Data API v3 [PlaylistService] and [ExistenceChecker] implementation
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/desertthunder/cratedig/internal/shared"
)

const playlistDescription = "Auto-generated by CrateDig"

// YouTubeService creates and checks playlists directly with the YouTube Data API.
type YouTubeService struct {
	svc     *youtube.Service
	limiter *rate.Limiter
}

// NewYouTubeService creates a Data API client authorized by ts. Extra options are applied after the token
// source, so tests can point the client at a local server.
func NewYouTubeService(ctx context.Context, ts oauth2.TokenSource, opts ...option.ClientOption) (*YouTubeService, error) {
	var all []option.ClientOption
	if ts != nil {
		all = append(all, option.WithTokenSource(ts))
	}
	all = append(all, opts...)

	svc, err := youtube.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create youtube client: %v", shared.ErrServiceUnavailable, err)
	}

	return &YouTubeService{svc: svc, limiter: rate.NewLimiter(rate.Inf, 1)}, nil
}

// WithRate paces playlist item inserts to perSecond requests. Zero or less removes the limit.
func (y *YouTubeService) WithRate(perSecond float64) *YouTubeService {
	if perSecond <= 0 {
		y.limiter = rate.NewLimiter(rate.Inf, 1)
	} else {
		y.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return y
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube Data API"
}

// CreatePlaylist inserts a private playlist, then adds each video in order.
//
// Individual videos that cannot be added are skipped; TrackCount reports how many were added.
func (y *YouTubeService) CreatePlaylist(ctx context.Context, title string, videoIDs []string) (*CreatedPlaylist, error) {
	playlist := &youtube.Playlist{
		Snippet: &youtube.PlaylistSnippet{
			Title:       title,
			Description: playlistDescription,
		},
		Status: &youtube.PlaylistStatus{
			PrivacyStatus: "private",
		},
	}

	created, err := y.svc.Playlists.Insert([]string{"snippet", "status"}, playlist).Context(ctx).Do()
	if err != nil {
		return nil, apiError("playlist creation failed", err)
	}

	added := 0
	for _, vid := range videoIDs {
		if err := y.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("playlist %s interrupted after %d tracks: %w", created.Id, added, err)
		}

		item := &youtube.PlaylistItem{
			Snippet: &youtube.PlaylistItemSnippet{
				PlaylistId: created.Id,
				ResourceId: &youtube.ResourceId{
					Kind:    "youtube#video",
					VideoId: vid,
				},
			},
		}

		if _, err := y.svc.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do(); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		added++
	}

	return &CreatedPlaylist{
		ID:         created.Id,
		URL:        PlaylistURL(created.Id),
		TrackCount: added,
	}, nil
}

// CheckExist looks up ids in batches of [MaxExistenceBatch] and reports which still exist.
func (y *YouTubeService) CheckExist(ctx context.Context, ids []string) (map[string]bool, error) {
	exists := make(map[string]bool, len(ids))
	for _, id := range ids {
		exists[id] = false
	}

	for _, batch := range Chunk(ids, MaxExistenceBatch) {
		resp, err := y.svc.Playlists.List([]string{"id"}).
			Id(batch...).
			MaxResults(MaxExistenceBatch).
			Context(ctx).
			Do()
		if err != nil {
			return nil, apiError("playlist lookup failed", err)
		}

		for _, item := range resp.Items {
			exists[item.Id] = true
		}
	}

	return exists, nil
}

// AccountName returns the title of the authorized user's channel.
func (y *YouTubeService) AccountName(ctx context.Context) (string, error) {
	resp, err := y.svc.Channels.List([]string{"snippet"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return "", apiError("channel lookup failed", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return "", nil
	}
	return resp.Items[0].Snippet.Title, nil
}

// apiError maps Data API failures onto the shared taxonomy.
func apiError(msg string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s: %v", shared.ErrTokenExpired, msg, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s: %v", shared.ErrPlaylistNotFound, msg, err)
		}
		return fmt.Errorf("%w: %s (status %d): %s", shared.ErrAPIRequest, msg, gerr.Code, gerr.Message)
	}
	return fmt.Errorf("%w: %s: %v", shared.ErrAPIRequest, msg, err)
}

var (
	_ PlaylistService  = (*YouTubeService)(nil)
	_ ExistenceChecker = (*YouTubeService)(nil)
)
