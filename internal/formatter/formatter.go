// package formatter renders libraries, rolls, and roll history to CSV, Markdown, JSON, and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/desertthunder/cratedig/internal/library"
	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/shared"
)

// Export formats
const (
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
	FormatJSON     = "json"
)

const watchBaseURL = "https://music.youtube.com/watch?v="

// WatchURL returns the YouTube Music URL of a video.
func WatchURL(videoID string) string {
	return watchBaseURL + videoID
}

// RollToCSV converts roll tracks to CSV format with columns: Position, Video ID, Title, Artist, URL, Thumbnail
func RollToCSV(tracks []models.RecommendedTrack) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Video ID", "Title", "Artist", "URL", "Thumbnail"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range tracks {
		record := []string{
			strconv.Itoa(i + 1),
			track.VideoID,
			track.Title,
			track.Artist,
			WatchURL(track.VideoID),
			track.Thumbnail,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// RollToMarkdown converts a roll to Markdown format with optional cover image
func RollToMarkdown(title string, roll *models.RollResult, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	fmt.Fprintf(&buf, "**Mode**: %s\n", roll.Mode.Label())
	fmt.Fprintf(&buf, "**Seeds**: %d used, %d failed\n", roll.SeedsUsed, roll.SeedsFailed)
	fmt.Fprintf(&buf, "**Found**: %s unique tracks\n", humanize.Comma(int64(roll.CandidatesFound)))
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(roll.Tracks))

	if len(roll.Seeds) > 0 {
		buf.WriteString("## Seeds\n\n")
		for _, s := range roll.Seeds {
			fmt.Fprintf(&buf, "- %s - %s\n", s.Artist, s.Title)
		}
		buf.WriteString("\n")
	}

	buf.WriteString("## Tracks\n\n")
	for i, track := range roll.Tracks {
		fmt.Fprintf(&buf, "%d. %s - [%s](%s)\n", i+1, track.Artist, track.Title, WatchURL(track.VideoID))
	}

	return buf.Bytes(), nil
}

// RollToText converts a roll to plain text format
func RollToText(title string, roll *models.RollResult) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Roll: %s\n", title)
	fmt.Fprintf(&buf, "Mode: %s\n", roll.Mode.Label())
	fmt.Fprintf(&buf, "Seeds: %d used, %d failed\n", roll.SeedsUsed, roll.SeedsFailed)
	fmt.Fprintf(&buf, "Tracks: %d of %d found\n\n", len(roll.Tracks), roll.CandidatesFound)

	for i, track := range roll.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, track.Artist, track.Title)
	}

	return buf.Bytes(), nil
}

// ExportRoll renders a roll in the given format.
func ExportRoll(title string, roll *models.RollResult, format string) ([]byte, error) {
	switch format {
	case FormatCSV:
		return RollToCSV(roll.Tracks)
	case FormatMarkdown, "md":
		return RollToMarkdown(title, roll, "")
	case FormatText, "text":
		return RollToText(title, roll)
	case FormatJSON, "":
		return shared.MarshalJSON(roll, true)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport exports a roll to Markdown format in a dedicated directory.
//
// The first track's thumbnail, when present, is downloaded as the cover image.
// Creates a directory structure: {dir}/README.md and optionally {dir}/cover.jpg
func WriteMarkdownExport(title string, roll *models.RollResult, outputDir string) (*MarkdownExportResult, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if len(roll.Tracks) > 0 && roll.Tracks[0].Thumbnail != "" {
		imageData, err := DownloadImage(roll.Tracks[0].Thumbnail)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download cover image: %v\n", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save cover image: %v\n", err)
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := RollToMarkdown(title, roll, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteRollExport writes a roll to path in the given format. Markdown treats path as a directory.
func WriteRollExport(title string, roll *models.RollResult, format, path string) ([]string, error) {
	if format == FormatMarkdown || format == "md" {
		res, err := WriteMarkdownExport(title, roll, path)
		if err != nil {
			return nil, err
		}
		return res.Files, nil
	}

	data, err := ExportRoll(title, roll, format)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write export file: %w", err)
	}
	return []string{path}, nil
}

// LibrarySummary describes the active library: counts, upload time, and top genres.
func LibrarySummary(lib *models.Library, now time.Time, topGenres int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Library: %s\n", lib.Filename)
	fmt.Fprintf(&b, "Songs: %s\n", humanize.Comma(int64(lib.SongCount)))
	fmt.Fprintf(&b, "Artists: %s\n", humanize.Comma(int64(lib.ArtistCount)))
	fmt.Fprintf(&b, "Uploaded: %s\n", humanize.RelTime(lib.UploadedAt, now, "ago", "from now"))

	genres := library.Genres(lib.Songs)
	if len(genres) == 0 {
		return b.String()
	}

	b.WriteString("\nGenres:\n")
	for i, g := range genres {
		if topGenres > 0 && i >= topGenres {
			fmt.Fprintf(&b, "  ... and %d more\n", len(genres)-topGenres)
			break
		}
		fmt.Fprintf(&b, "  %-24s %s\n", g.Genre, humanize.Comma(int64(g.Count)))
	}
	return b.String()
}

// SongTable writes songs as an aligned table.
func SongTable(w io.Writer, songs []models.Track) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tARTIST\tTITLE\tGENRE")
	for i, s := range songs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, s.Artist, s.Title, s.Genre)
	}
	return tw.Flush()
}

// HistoryTable writes roll records as an aligned table with relative timestamps.
func HistoryTable(w io.Writer, records []*models.RollRecord, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tROLLED\tMODE\tTRACKS\tSEEDS\tPLAYLIST")
	for _, r := range records {
		playlist := r.PlaylistURL
		if r.PlaylistMissing {
			playlist = "(deleted) " + playlist
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d\t%s\n",
			shortID(r.ID),
			humanize.RelTime(r.RolledAt, now, "ago", "from now"),
			r.Mode.Label(),
			r.TrackCount,
			r.TracksFound,
			r.SeedsUsed,
			playlist,
		)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
