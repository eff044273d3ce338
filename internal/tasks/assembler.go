package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/services"
	"github.com/desertthunder/cratedig/internal/shared"
)

const defaultTitlePrefix = "CrateDig Roll - "

// HistoryStore appends roll records.
type HistoryStore interface {
	Append(record *models.RollRecord) (*models.RollRecord, error)
}

// AssembleRequest describes the playlist to create from a roll preview.
type AssembleRequest struct {
	Title  string                    // Playlist title; empty uses [DefaultTitle]
	Roll   *models.RollResult        // Roll the tracks came from
	Tracks []models.RecommendedTrack // Tracks to send, after any removals; nil uses Roll.Tracks
}

// AssembleResult is returned as soon as the playlist exists.
type AssembleResult struct {
	Playlist *services.CreatedPlaylist
	Record   *models.RollRecord
	Recorded <-chan error // receives the history write outcome once, then closes
}

// Assembler creates playlists from rolls and records them in history.
//
// The history write runs in the background after the playlist is created. A failed write is
// logged and reported on [AssembleResult.Recorded] but never undoes the playlist.
type Assembler struct {
	playlists services.PlaylistService
	history   HistoryStore
	logger    *log.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewAssembler creates an Assembler. A nil history skips recording.
func NewAssembler(playlists services.PlaylistService, history HistoryStore, logger *log.Logger) *Assembler {
	if logger == nil {
		logger = log.Default()
	}
	return &Assembler{playlists: playlists, history: history, logger: logger, now: time.Now}
}

// DefaultTitle is the playlist title used when the user leaves it blank.
func DefaultTitle(t time.Time) string {
	return defaultTitlePrefix + t.Format("Jan 2, 2006")
}

// Assemble creates the playlist and starts the history write.
//
// Errors:
//   - [shared.ErrEmptyTrackList] : nothing to send
//   - [shared.ErrPlaylistCreation] : the playlist service failed; nothing was recorded
func (a *Assembler) Assemble(ctx context.Context, progress chan<- ProgressUpdate, req AssembleRequest) (*AssembleResult, error) {
	if req.Roll == nil {
		return nil, fmt.Errorf("%w: no roll to save", shared.ErrInvalidInput)
	}

	tracks := req.Tracks
	if tracks == nil {
		tracks = req.Roll.Tracks
	}
	if len(tracks) == 0 {
		return nil, shared.ErrEmptyTrackList
	}
	if a.playlists == nil {
		return nil, fmt.Errorf("%w: playlist service not initialized", shared.ErrServiceUnavailable)
	}

	now := a.now()
	title := req.Title
	if title == "" {
		title = DefaultTitle(now)
	}

	sendProgress(progress, createPlaylistUpdate(title, len(tracks)))

	created, err := a.playlists.CreatePlaylist(ctx, title, models.VideoIDs(tracks))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPlaylistCreation, err)
	}
	if created.URL == "" {
		created.URL = services.PlaylistURL(created.ID)
	}

	sendProgress(progress, playlistCreatedUpdate(created))

	record := &models.RollRecord{
		Mode:         req.Roll.Mode,
		OutputSize:   req.Roll.OutputSize,
		SeedsUsed:    req.Roll.SeedsUsed,
		SeedsFailed:  req.Roll.SeedsFailed,
		TracksFound:  req.Roll.CandidatesFound,
		TrackCount:   len(tracks),
		PlaylistID:   created.ID,
		PlaylistURL:  created.URL,
		ThumbnailURL: tracks[0].Thumbnail,
		RolledAt:     now,
	}

	return &AssembleResult{
		Playlist: created,
		Record:   record,
		Recorded: a.record(record),
	}, nil
}

// record appends the record in the background. The write does not observe request cancellation.
func (a *Assembler) record(record *models.RollRecord) <-chan error {
	done := make(chan error, 1)
	if a.history == nil {
		close(done)
		return done
	}

	snapshot := *record
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer close(done)

		if _, err := a.history.Append(&snapshot); err != nil {
			a.logger.Warn("failed to record roll history", "playlist", snapshot.PlaylistID, "err", err)
			done <- fmt.Errorf("%w: %v", shared.ErrHistoryWrite, err)
			return
		}
		done <- nil
	}()
	return done
}

// Wait blocks until every pending history write has finished.
func (a *Assembler) Wait() {
	a.wg.Wait()
}
