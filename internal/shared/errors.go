package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrRollNotFound       = fmt.Errorf("roll not found")

	// Library parsing errors
	ErrEmptyInput     = fmt.Errorf("CSV file is empty or has no data rows")
	ErrMissingColumns = fmt.Errorf("could not find artist and title columns")
	ErrNoValidRows    = fmt.Errorf("no valid songs found in CSV")

	// Roll errors
	ErrEmptyLibrary          = fmt.Errorf("library is empty")
	ErrEmptyTrackList        = fmt.Errorf("track list is empty")
	ErrInvalidOutputSize     = fmt.Errorf("output size out of range")
	ErrInvalidMode           = fmt.Errorf("invalid dice mode")
	ErrRecommendationService = fmt.Errorf("recommendation service failed")
	ErrPlaylistCreation      = fmt.Errorf("playlist creation failed")
	ErrHistoryWrite          = fmt.Errorf("failed to save roll history")
	ErrStaleRoll             = fmt.Errorf("roll superseded by a newer roll")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

var userMessages = []struct {
	err error
	msg string
}{
	{ErrEmptyInput, "CSV file is empty or has no data rows"},
	{ErrMissingColumns, "Could not find artist and title columns"},
	{ErrNoValidRows, "No valid songs found in CSV"},
	{ErrEmptyLibrary, "Upload a library (or clear the genre filter) before rolling"},
	{ErrEmptyTrackList, "No tracks left to save"},
	{ErrInvalidOutputSize, "Playlist size must be between 10 and 100"},
	{ErrInvalidMode, "Dice mode must be random or deep"},
	{ErrRecommendationService, "Roll failed, try again"},
	{ErrPlaylistCreation, "Failed to create playlist, try again"},
	{ErrHistoryWrite, "Playlist created, but the roll was not saved to history"},
	{ErrStaleRoll, "A newer roll is in progress"},
	{ErrNotAuthenticated, "YouTube is not connected"},
}

// UserMessage maps an error to a short human-readable message for display.
//
// Errors outside the known taxonomy fall back to err.Error().
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var mc interface{ Headers() []string }
	for _, um := range userMessages {
		if errors.Is(err, um.err) {
			if um.err == ErrMissingColumns && errors.As(err, &mc) {
				return fmt.Sprintf("%s. Found: %s", um.msg, strings.Join(mc.Headers(), ", "))
			}
			return um.msg
		}
	}
	return err.Error()
}
