package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgRollComplete
	MsgPlaylistCreated
	MsgHistoryRecorded
	MsgBrowserOpened
)

type progressData struct {
	op     *operation
	update tasks.ProgressUpdate
}

type rollData struct {
	op     *operation
	result *models.RollResult
	err    error
}

type createData struct {
	op     *operation
	result *tasks.AssembleResult
	err    error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(op *operation, update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: progressData{op, update}}
}

// rollCompleteMsg is the constructor for [MsgRollComplete]
func rollCompleteMsg(op *operation, result *models.RollResult, err error) Msg {
	return Msg{kind: MsgRollComplete, data: rollData{op, result, err}}
}

// playlistCreatedMsg is the constructor for [MsgPlaylistCreated]
func playlistCreatedMsg(op *operation, result *tasks.AssembleResult, err error) Msg {
	return Msg{kind: MsgPlaylistCreated, data: createData{op, result, err}}
}

// historyRecordedMsg is the constructor for [MsgHistoryRecorded]
func historyRecordedMsg(err error) Msg {
	return Msg{kind: MsgHistoryRecorded, data: err}
}

// browserOpenedMsg is the constructor for [MsgBrowserOpened]
func browserOpenedMsg(err error) Msg {
	return Msg{kind: MsgBrowserOpened, data: err}
}
