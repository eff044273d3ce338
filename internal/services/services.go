// package services defines the collaborators the roll pipeline talks to
//
// YouTube Music (via proxy), YouTube Data API v3
package services

import (
	"context"

	"github.com/desertthunder/cratedig/internal/models"
)

// MaxExistenceBatch is the most playlist ids one existence check may carry.
const MaxExistenceBatch = 50

const playlistBaseURL = "https://music.youtube.com/playlist?list="

// RecommendationService expands seed tracks into candidate recommendations.
type RecommendationService interface {
	// Recommend looks up each seed and gathers related tracks. Seeds that cannot be resolved are counted
	// in SeedsFailed rather than failing the call.
	Recommend(ctx context.Context, seeds []models.Seed, desired int) (*Recommendation, error)
}

// PlaylistService creates playlists on the user's account.
type PlaylistService interface {
	// CreatePlaylist creates a private playlist named title containing videoIDs in order.
	CreatePlaylist(ctx context.Context, title string, videoIDs []string) (*CreatedPlaylist, error)
}

// ExistenceChecker reports which playlists still exist.
type ExistenceChecker interface {
	// CheckExist returns, for at most [MaxExistenceBatch] ids, whether each playlist exists.
	CheckExist(ctx context.Context, ids []string) (map[string]bool, error)
}

// Recommendation is the raw outcome of a recommendation request.
type Recommendation struct {
	SeedsUsed   int                       `json:"seeds_used"`
	SeedsFailed int                       `json:"seeds_failed"`
	RawFound    int                       `json:"raw_found"`
	Candidates  []models.RecommendedTrack `json:"tracks"`
}

// CreatedPlaylist identifies a playlist created by a [PlaylistService].
type CreatedPlaylist struct {
	ID         string `json:"playlist_id"`
	URL        string `json:"url"`
	TrackCount int    `json:"track_count"`
}

// PlaylistURL returns the YouTube Music URL of a playlist.
func PlaylistURL(id string) string {
	return playlistBaseURL + id
}

// Chunk splits ids into consecutive batches of at most size.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = MaxExistenceBatch
	}

	var batches [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}
