package tasks

import (
	"fmt"

	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/services"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	SampleSeeds Phase = iota
	Recommend
	Dedupe
	CreatePlaylist
	RecordHistory
	LoadHistory
	CheckPlaylists
)

func (p Phase) String() string {
	switch p {
	case SampleSeeds:
		return "sample_seeds"
	case Recommend:
		return "recommend"
	case Dedupe:
		return "dedupe"
	case CreatePlaylist:
		return "create_playlist"
	case RecordHistory:
		return "record_history"
	case LoadHistory:
		return "load_history"
	case CheckPlaylists:
		return "check_playlists"
	default:
		return ""
	}
}

func sampleSeedsUpdate(mode models.DiceMode, pool int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SampleSeeds,
		Step:    1,
		Total:   3,
		Message: fmt.Sprintf("Rolling %s seeds from %d songs...", mode.Label(), pool),
	}
}

func recommendUpdate(seeds []models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Recommend,
		Step:    2,
		Total:   3,
		Message: fmt.Sprintf("Digging for tracks related to %d seeds...", len(seeds)),
		Data:    seeds,
	}
}

func dedupeUpdate(raw, unique int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Dedupe,
		Step:    3,
		Total:   3,
		Message: fmt.Sprintf("Found %d tracks (%d unique)", raw, unique),
	}
}

func createPlaylistUpdate(title string, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   2,
		Message: fmt.Sprintf("Creating playlist %q with %d tracks...", title, tracks),
	}
}

func playlistCreatedUpdate(pl *services.CreatedPlaylist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RecordHistory,
		Step:    2,
		Total:   2,
		Message: fmt.Sprintf("Playlist created: %s (%d tracks)", pl.URL, pl.TrackCount),
		Data:    pl,
	}
}

func loadHistoryUpdate(records int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadHistory,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loaded %d rolls with playlists", records),
	}
}

func checkPlaylistsUpdate(step, total, missing int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckPlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Checked batch (%d missing so far)", step, total, missing),
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
