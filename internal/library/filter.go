package library

import (
	"sort"
	"strings"

	"github.com/desertthunder/cratedig/internal/models"
)

// GenreCount is a genre and the number of songs tagged with it.
type GenreCount struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

// Genres lists the genres present in songs, most songs first, ties broken alphabetically.
func Genres(songs []models.Track) []GenreCount {
	counts := make(map[string]int)
	for _, s := range songs {
		if s.Genre != "" {
			counts[s.Genre]++
		}
	}

	out := make([]GenreCount, 0, len(counts))
	for g, c := range counts {
		out = append(out, GenreCount{Genre: g, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Genre < out[j].Genre
	})
	return out
}

// FilterByGenres returns the effective library: songs whose genre is one of genres.
//
// An empty filter returns songs unchanged. Songs without a genre never match a non-empty filter.
func FilterByGenres(songs []models.Track, genres []string) []models.Track {
	if len(genres) == 0 {
		return songs
	}

	selected := make(map[string]struct{}, len(genres))
	for _, g := range genres {
		selected[g] = struct{}{}
	}

	out := make([]models.Track, 0, len(songs))
	for _, s := range songs {
		if s.Genre == "" {
			continue
		}
		if _, ok := selected[s.Genre]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Search returns songs whose artist or title contains query, case-insensitively.
func Search(songs []models.Track, query string) []models.Track {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return songs
	}

	var out []models.Track
	for _, s := range songs {
		if strings.Contains(strings.ToLower(s.Artist), q) || strings.Contains(strings.ToLower(s.Title), q) {
			out = append(out, s)
		}
	}
	return out
}
