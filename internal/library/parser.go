package library

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/shared"
)

var (
	artistColumns = []string{"artist", "artist_name", "performer"}
	titleColumns  = []string{"title", "track", "song", "name", "track_name"}
	genreColumns  = []string{"genre", "style"}
)

// ParseResult is the normalized output of a library export.
type ParseResult struct {
	Songs       []models.Track
	SongCount   int
	ArtistCount int
	Skipped     int // rows dropped as malformed or missing artist/title
	Duplicates  int // rows dropped as repeats of an earlier (artist, title)
}

// MissingColumnsError reports the headers found when artist or title could not be located.
type MissingColumnsError struct {
	Found []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%v. Found: %s", shared.ErrMissingColumns, strings.Join(e.Found, ", "))
}

func (e *MissingColumnsError) Unwrap() error { return shared.ErrMissingColumns }

// Headers returns the trimmed header names that were present.
func (e *MissingColumnsError) Headers() []string { return e.Found }

type columns struct {
	artist, title, genre int
}

func (c columns) required() int {
	return max(c.artist, c.title)
}

// ParseReader reads an entire export from r and parses it with [ParseCSV].
func ParseReader(r io.Reader) (*ParseResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read library export: %w", err)
	}
	return ParseCSV(string(data))
}

// ParseCSV parses the raw text of a library export into a deduplicated, ordered track list.
//
// A single bad row never fails the parse.
func ParseCSV(content string) (*ParseResult, error) {
	lines := splitLines(content)
	if len(lines) < 2 {
		return nil, shared.ErrEmptyInput
	}

	headerLine := strings.TrimPrefix(lines[0], "\ufeff")
	header, err := splitRecord(headerLine)
	if isWrappedRow(headerLine, header, err) {
		header, err = splitRecord(unwrapQuotedRow(headerLine))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable header: %v", shared.ErrEmptyInput, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	cols := columns{
		artist: findColumn(header, artistColumns),
		title:  findColumn(header, titleColumns),
		genre:  findColumn(header, genreColumns),
	}
	if cols.artist < 0 || cols.title < 0 {
		return nil, &MissingColumnsError{Found: header}
	}

	result := &ParseResult{}
	seen := make(map[string]struct{})

	for _, line := range lines[1:] {
		track, ok := parseRow(line, cols)
		if !ok {
			result.Skipped++
			continue
		}

		key := track.Key()
		if _, dup := seen[key]; dup {
			result.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		result.Songs = append(result.Songs, track)
	}

	if len(result.Songs) == 0 {
		return nil, shared.ErrNoValidRows
	}

	result.SongCount = len(result.Songs)
	result.ArtistCount = models.CountArtists(result.Songs)
	return result, nil
}

func parseRow(line string, cols columns) (models.Track, bool) {
	row, err := splitRecord(line)
	if isWrappedRow(line, row, err) {
		row, err = splitRecord(unwrapQuotedRow(line))
	}
	if err != nil || len(row) <= cols.required() {
		return models.Track{}, false
	}

	track := models.Track{
		Artist: strings.TrimSpace(row[cols.artist]),
		Title:  strings.TrimSpace(row[cols.title]),
	}
	if track.Artist == "" || track.Title == "" {
		return models.Track{}, false
	}

	if cols.genre >= 0 && cols.genre < len(row) {
		track.Genre = strings.TrimSpace(row[cols.genre])
	}
	return track, true
}

// isWrappedRow reports whether line is a whole row enclosed in one outer quote pair.
//
// A conventionally quoted row ("a","b") splits into several fields and is left alone.
func isWrappedRow(line string, fields []string, err error) bool {
	if len(line) <= 2 || !strings.HasPrefix(line, `"`) || !strings.HasSuffix(line, `"`) {
		return false
	}
	return err != nil || len(fields) == 1
}

// unwrapQuotedRow strips the outer quote pair some DJ exports put around a whole row,
// un-escaping the doubled quotes inside.
func unwrapQuotedRow(line string) string {
	return strings.ReplaceAll(line[1:len(line)-1], `""`, `"`)
}

func splitRecord(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	return r.Read()
}

// splitLines returns the trimmed, non-blank lines of content.
func splitLines(content string) []string {
	raw := strings.Split(content, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func findColumn(headers []string, candidates []string) int {
	lower := make([]string, len(headers))
	for i, h := range headers {
		lower[i] = strings.ToLower(strings.TrimSpace(h))
	}
	for _, c := range candidates {
		for i, h := range lower {
			if h == c {
				return i
			}
		}
	}
	return -1
}
