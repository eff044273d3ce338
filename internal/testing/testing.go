// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/services"
)

// MockRecommender is a test double for [services.RecommendationService]
type MockRecommender struct {
	mu          sync.Mutex
	Result      *services.Recommendation
	Err         error
	Calls       int
	LastSeeds   []models.Seed
	LastDesired int
	// Block, when set, is waited on before returning so tests can interleave rolls.
	Block chan struct{}
}

func (m *MockRecommender) Recommend(ctx context.Context, seeds []models.Seed, desired int) (*services.Recommendation, error) {
	m.mu.Lock()
	m.Calls++
	m.LastSeeds = seeds
	m.LastDesired = desired
	block := m.Block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result == nil {
		return &services.Recommendation{}, nil
	}
	return m.Result, nil
}

// MockPlaylistService is a test double for [services.PlaylistService]
type MockPlaylistService struct {
	mu        sync.Mutex
	Err       error
	Calls     int
	LastTitle string
	LastIDs   []string
}

func (m *MockPlaylistService) CreatePlaylist(ctx context.Context, title string, videoIDs []string) (*services.CreatedPlaylist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	m.LastTitle = title
	m.LastIDs = videoIDs
	if m.Err != nil {
		return nil, m.Err
	}

	id := fmt.Sprintf("PLmock%d", m.Calls)
	return &services.CreatedPlaylist{ID: id, URL: services.PlaylistURL(id), TrackCount: len(videoIDs)}, nil
}

// MockExistenceChecker is a test double for [services.ExistenceChecker]
type MockExistenceChecker struct {
	mu      sync.Mutex
	Missing map[string]bool // playlist ids reported as gone
	FailFor map[string]bool // a batch containing any of these ids fails
	Batches [][]string
}

func (m *MockExistenceChecker) CheckExist(ctx context.Context, ids []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Batches = append(m.Batches, append([]string(nil), ids...))

	exists := make(map[string]bool, len(ids))
	for _, id := range ids {
		if m.FailFor[id] {
			return nil, errors.New("check failed")
		}
		exists[id] = !m.Missing[id]
	}
	return exists, nil
}

// MockHistory is an in-memory roll history.
type MockHistory struct {
	mu        sync.Mutex
	Records   []*models.RollRecord
	AppendErr error
	Appended  chan *models.RollRecord // optional; receives every appended record
}

func (m *MockHistory) Append(record *models.RollRecord) (*models.RollRecord, error) {
	m.mu.Lock()
	if m.AppendErr != nil {
		m.mu.Unlock()
		return nil, m.AppendErr
	}

	stored := *record
	stored.ID = fmt.Sprintf("roll-%d", len(m.Records)+1)
	stored.Sequence = len(m.Records) + 1
	m.Records = append(m.Records, &stored)
	notify := m.Appended
	m.mu.Unlock()

	if notify != nil {
		notify <- &stored
	}
	return &stored, nil
}

// List returns records newest first (last appended first).
func (m *MockHistory) List(limit, offset int) ([]*models.RollRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.RollRecord
	for i := len(m.Records) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.Records[i])
	}
	return out, nil
}

func (m *MockHistory) MarkMissing(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.Records {
		if r.ID == id {
			r.PlaylistMissing = true
			return nil
		}
	}
	return fmt.Errorf("roll not found: %s", id)
}

func (m *MockHistory) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.Records {
		if r.ID == id {
			m.Records = append(m.Records[:i], m.Records[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("roll not found: %s", id)
}

// Len returns the number of stored records.
func (m *MockHistory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Records)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

// Songs builds n distinct tracks by artist.
func Songs(artist string, n int) []models.Track {
	songs := make([]models.Track, n)
	for i := range songs {
		songs[i] = models.Track{Artist: artist, Title: fmt.Sprintf("%s #%d", artist, i+1)}
	}
	return songs
}

// Candidates builds n recommended tracks with ids v1..vn.
func Candidates(n int) []models.RecommendedTrack {
	out := make([]models.RecommendedTrack, n)
	for i := range out {
		out[i] = models.RecommendedTrack{
			VideoID:   fmt.Sprintf("v%d", i+1),
			Title:     fmt.Sprintf("Track %d", i+1),
			Artist:    "Artist",
			Thumbnail: fmt.Sprintf("https://i.ytimg.com/vi/v%d/hqdefault.jpg", i+1),
		}
	}
	return out
}
