package ui

import (
	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/cratedig/internal/models"
)

var _ list.Item = trackItem{}

// trackItem wraps [models.RecommendedTrack] to implement [list.Item].
type trackItem struct {
	track models.RecommendedTrack
}

func (i trackItem) FilterValue() string { return i.track.Title }
func (i trackItem) Title() string       { return i.track.Title }
func (i trackItem) Description() string { return i.track.Artist }

func trackItems(tracks []models.RecommendedTrack) []list.Item {
	items := make([]list.Item, len(tracks))
	for i, t := range tracks {
		items[i] = trackItem{track: t}
	}
	return items
}
