// package models defines the data model for the cratedig roll pipeline
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/cratedig/internal/shared"
)

// Model defines the base interface for persisted models.
type Model interface {
	Validate() error // Validate checks if the model's data is valid and returns an error if not
}

// Output size bounds for a roll.
const (
	MinOutputSize  = 10
	MaxOutputSize  = 100
	OutputSizeStep = 10
)

// DiceMode selects the seed sampling strategy.
type DiceMode string

const (
	ModeRandom DiceMode = "random"
	ModeDeep   DiceMode = "deep"
)

// ParseDiceMode converts user input to a [DiceMode].
func ParseDiceMode(s string) (DiceMode, error) {
	switch DiceMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRandom:
		return ModeRandom, nil
	case ModeDeep:
		return ModeDeep, nil
	default:
		return "", fmt.Errorf("%w: %q", shared.ErrInvalidMode, s)
	}
}

// Label is the display name of the mode.
func (m DiceMode) Label() string {
	switch m {
	case ModeDeep:
		return "Deep Cuts"
	case ModeRandom:
		return "Random"
	default:
		return string(m)
	}
}

// ValidOutputSize reports whether n is an accepted roll size.
func ValidOutputSize(n int) bool {
	return n >= MinOutputSize && n <= MaxOutputSize
}

// Track is a single song from the uploaded library. Genre is empty when absent.
type Track struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Genre  string `json:"genre,omitempty"`
}

// Key returns the case-insensitive (artist, title) identity used for deduplication.
func (t Track) Key() string {
	return shared.NormalizeTrackKey(t.Artist, t.Title)
}

// Seed returns the artist/title pair submitted to the recommendation service.
func (t Track) Seed() Seed {
	return Seed{Artist: t.Artist, Title: t.Title}
}

// Library is the user's single active library.
type Library struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Songs       []Track   `json:"songs"`
	SongCount   int       `json:"songCount"`
	ArtistCount int       `json:"artistCount"`
	UploadedAt  time.Time `json:"uploadedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Validate checks the uniqueness invariant and required fields.
func (l *Library) Validate() error {
	if l.Filename == "" {
		return fmt.Errorf("%w: filename is required", shared.ErrInvalidInput)
	}
	if len(l.Songs) == 0 {
		return fmt.Errorf("%w: library has no songs", shared.ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(l.Songs))
	for _, s := range l.Songs {
		if s.Artist == "" || s.Title == "" {
			return fmt.Errorf("%w: song missing artist or title", shared.ErrInvalidInput)
		}
		k := s.Key()
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%w: duplicate song %s - %s", shared.ErrInvalidInput, s.Artist, s.Title)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// CountArtists returns the number of distinct case-insensitive artists in songs.
func CountArtists(songs []Track) int {
	artists := make(map[string]struct{})
	for _, s := range songs {
		artists[shared.NormalizeArtist(s.Artist)] = struct{}{}
	}
	return len(artists)
}

// Seed is an artist/title pair used to query the recommendation service.
type Seed struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

// RecommendedTrack is a candidate returned by the recommendation service.
type RecommendedTrack struct {
	VideoID   string `json:"videoId"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Thumbnail string `json:"thumbnail"`
}

// RollRequest is consumed once to produce a [RollResult].
type RollRequest struct {
	Mode       DiceMode
	OutputSize int
	Library    []Track
}

// RollResult is the bounded preview produced by one roll.
type RollResult struct {
	Mode            DiceMode           `json:"mode"`
	OutputSize      int                `json:"output_size"`
	SeedsUsed       int                `json:"seeds_used"`
	SeedsFailed     int                `json:"seeds_failed"`
	RawFound        int                `json:"raw_found"`
	CandidatesFound int                `json:"after_dedup"`
	Tracks          []RecommendedTrack `json:"tracks"`
	Seeds           []Track            `json:"seeds,omitempty"`
	Generation      uint64             `json:"generation"`
}

// VideoIDs returns the external identifiers of the tracks, in order.
func (r *RollResult) VideoIDs() []string {
	return VideoIDs(r.Tracks)
}

// VideoIDs returns the external identifiers of tracks, in order.
func VideoIDs(tracks []RecommendedTrack) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.VideoID
	}
	return ids
}

// RemoveTrack returns a copy of tracks without the entry at index i.
func RemoveTrack(tracks []RecommendedTrack, i int) []RecommendedTrack {
	if i < 0 || i >= len(tracks) {
		return tracks
	}
	out := make([]RecommendedTrack, 0, len(tracks)-1)
	out = append(out, tracks[:i]...)
	return append(out, tracks[i+1:]...)
}

// RollRecord is the persisted snapshot of a roll committed as a playlist.
type RollRecord struct {
	ID              string    `json:"id"`
	Sequence        int       `json:"-"`
	Mode            DiceMode  `json:"diceMode"`
	OutputSize      int       `json:"outputSize"`
	SeedsUsed       int       `json:"seedsUsed"`
	SeedsFailed     int       `json:"seedsFailed"`
	TracksFound     int       `json:"tracksFound"`
	TrackCount      int       `json:"trackCount"`
	PlaylistID      string    `json:"playlistId,omitempty"`
	PlaylistURL     string    `json:"playlistUrl,omitempty"`
	ThumbnailURL    string    `json:"thumbnailUrl,omitempty"`
	PlaylistMissing bool      `json:"playlistMissing"`
	RolledAt        time.Time `json:"rolledAt"`
}

// Validate checks the record before it is persisted.
func (r *RollRecord) Validate() error {
	if _, err := ParseDiceMode(string(r.Mode)); err != nil {
		return err
	}
	if !ValidOutputSize(r.OutputSize) {
		return fmt.Errorf("%w: %d", shared.ErrInvalidOutputSize, r.OutputSize)
	}
	if r.SeedsUsed < 0 || r.SeedsFailed < 0 || r.TracksFound < 0 || r.TrackCount < 0 {
		return fmt.Errorf("%w: negative roll statistics", shared.ErrInvalidInput)
	}
	return nil
}

var (
	_ Model = (*Library)(nil)
	_ Model = (*RollRecord)(nil)
)
