package library

import (
	"errors"
	"strings"
	"testing"

	"github.com/desertthunder/cratedig/internal/shared"
)

func TestParseCSV(t *testing.T) {
	t.Run("dedups case-insensitively keeping the first row", func(t *testing.T) {
		content := "Artist,Title,Genre\n\"Daft Punk\",\"One More Time\",\"House\"\ndaft punk,one more time,House\n"

		result, err := ParseCSV(content)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.SongCount != 1 || result.ArtistCount != 1 {
			t.Errorf("expected 1 song by 1 artist, got %d songs by %d artists", result.SongCount, result.ArtistCount)
		}
		if result.Duplicates != 1 {
			t.Errorf("expected 1 duplicate, got %d", result.Duplicates)
		}
		got := result.Songs[0]
		if got.Artist != "Daft Punk" || got.Title != "One More Time" || got.Genre != "House" {
			t.Errorf("unexpected song: %+v", got)
		}
	})

	t.Run("keeps genre of the first occurrence", func(t *testing.T) {
		content := "artist,title,genre\nBicep,Glue,Electronic\nBICEP,GLUE,Techno\n"

		result, err := ParseCSV(content)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Songs) != 1 || result.Songs[0].Genre != "Electronic" {
			t.Errorf("expected first genre to win, got %+v", result.Songs)
		}
	})

	t.Run("unwraps rows enclosed in a single quote pair", func(t *testing.T) {
		content := "Artist,Title,Genre\n\"Rüfüs Du Sol,\"\"Innerbloom\"\",House\"\n\"Bicep,Glue,Electronic\"\n"

		result, err := ParseCSV(content)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.SongCount != 2 {
			t.Fatalf("expected 2 songs, got %d: %+v", result.SongCount, result.Songs)
		}
		first := result.Songs[0]
		if first.Artist != "Rüfüs Du Sol" || first.Title != "Innerbloom" || first.Genre != "House" {
			t.Errorf("unexpected unwrapped row: %+v", first)
		}
		if result.Songs[1].Title != "Glue" {
			t.Errorf("expected Glue, got %+v", result.Songs[1])
		}
	})

	t.Run("resolves header aliases", func(t *testing.T) {
		content := "Track_Name, Performer ,Style\nWindowlicker,Aphex Twin,IDM\n"

		result, err := ParseCSV(content)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := result.Songs[0]
		if got.Artist != "Aphex Twin" || got.Title != "Windowlicker" || got.Genre != "IDM" {
			t.Errorf("unexpected song: %+v", got)
		}
	})

	t.Run("prefers earlier aliases", func(t *testing.T) {
		content := "name,title,artist\nignored,Teardrop,Massive Attack\n"

		result, err := ParseCSV(content)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Songs[0].Title != "Teardrop" {
			t.Errorf("expected title column to win over name, got %+v", result.Songs[0])
		}
	})

	t.Run("handles BOM, CRLF and blank lines", func(t *testing.T) {
		content := "\ufeffArtist,Title\r\n\r\nFloating Points,Silhouettes\r\n   \r\nFour Tet,Baby\r\n"

		result, err := ParseCSV(content)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.SongCount != 2 {
			t.Errorf("expected 2 songs, got %d", result.SongCount)
		}
		if result.Songs[1].Title != "Baby" {
			t.Errorf("expected trimmed title, got %q", result.Songs[1].Title)
		}
	})

	t.Run("skips short and incomplete rows", func(t *testing.T) {
		content := "Artist,Title,Genre\nOnlyArtist\n,No Artist,House\nNo Title,,House\nBurial,Archangel\n"

		result, err := ParseCSV(content)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.SongCount != 1 || result.Skipped != 3 {
			t.Errorf("expected 1 song and 3 skipped, got %d and %d", result.SongCount, result.Skipped)
		}
		if result.Songs[0].Genre != "" {
			t.Errorf("expected empty genre for short row, got %q", result.Songs[0].Genre)
		}
	})

	t.Run("counts distinct artists", func(t *testing.T) {
		content := "artist,title\nBurial,Archangel\nburial,Near Dark\nKode9,Black Sun\n"

		result, err := ParseCSV(content)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.SongCount != 3 || result.ArtistCount != 2 {
			t.Errorf("expected 3 songs by 2 artists, got %d by %d", result.SongCount, result.ArtistCount)
		}
	})
}

func TestParseCSVErrors(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		for _, content := range []string{"", "   \n\n", "artist,title\n"} {
			if _, err := ParseCSV(content); !errors.Is(err, shared.ErrEmptyInput) {
				t.Errorf("ParseCSV(%q) error = %v, want ErrEmptyInput", content, err)
			}
		}
	})

	t.Run("missing columns lists headers found", func(t *testing.T) {
		_, err := ParseCSV("Song, Album\nGlue,Bicep\n")
		if !errors.Is(err, shared.ErrMissingColumns) {
			t.Fatalf("expected ErrMissingColumns, got %v", err)
		}

		var mce *MissingColumnsError
		if !errors.As(err, &mce) {
			t.Fatalf("expected *MissingColumnsError, got %T", err)
		}
		if strings.Join(mce.Headers(), "|") != "Song|Album" {
			t.Errorf("unexpected headers: %v", mce.Headers())
		}
		if msg := shared.UserMessage(err); !strings.Contains(msg, "Found: Song, Album") {
			t.Errorf("user message should list headers, got %q", msg)
		}
	})

	t.Run("no valid rows", func(t *testing.T) {
		_, err := ParseCSV("artist,title\n,\nonly\n")
		if !errors.Is(err, shared.ErrNoValidRows) {
			t.Errorf("expected ErrNoValidRows, got %v", err)
		}
	})
}

func TestParseReader(t *testing.T) {
	result, err := ParseReader(strings.NewReader("artist,title\nBurial,Archangel\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SongCount != 1 {
		t.Errorf("expected 1 song, got %d", result.SongCount)
	}
}
