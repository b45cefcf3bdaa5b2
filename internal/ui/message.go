package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/zylofm/internal/models"
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
	MsgQueueLoaded MsgKind = iota
	MsgReviewed
)

type queueData struct {
	mixes    []*models.Mix
	requests []*models.DJRequest
	err      error
}

type reviewData struct {
	action string
	target string
	err    error
}

// queueLoadedMsg is the constructor for [MsgQueueLoaded]
func queueLoadedMsg(mixes []*models.Mix, requests []*models.DJRequest, err error) Msg {
	return Msg{kind: MsgQueueLoaded, data: queueData{mixes: mixes, requests: requests, err: err}}
}

// reviewedMsg is the constructor for [MsgReviewed]
func reviewedMsg(action, target string, err error) Msg {
	return Msg{kind: MsgReviewed, data: reviewData{action: action, target: target, err: err}}
}
