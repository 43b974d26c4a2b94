package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/igloo/internal/app"
	"github.com/desertthunder/igloo/internal/auth"
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
	MsgNavigated MsgKind = iota
	MsgLoggedIn
	MsgSubmitted
	MsgPlayerExited
	MsgSessionChanged
	MsgRefreshState
	MsgBannerExpired
)

type navigated struct {
	href string
	nav  *app.Navigation
	err  error
}

type submitted struct {
	// next is where to go on success; empty stays on the current location.
	next    string
	success string
	err     error
}

type playerExited struct {
	movieID int
	err     error
}

// navigatedMsg is the constructor for [MsgNavigated]
func navigatedMsg(href string, nav *app.Navigation, err error) Msg {
	return Msg{kind: MsgNavigated, data: navigated{href, nav, err}}
}

// loggedInMsg is the constructor for [MsgLoggedIn]
func loggedInMsg(err error) Msg {
	return Msg{kind: MsgLoggedIn, data: err}
}

// submittedMsg is the constructor for [MsgSubmitted]
func submittedMsg(next, success string, err error) Msg {
	return Msg{kind: MsgSubmitted, data: submitted{next, success, err}}
}

// playerExitedMsg is the constructor for [MsgPlayerExited]
func playerExitedMsg(movieID int, err error) Msg {
	return Msg{kind: MsgPlayerExited, data: playerExited{movieID, err}}
}

// sessionChangedMsg is the constructor for [MsgSessionChanged]
func sessionChangedMsg(snap auth.Snapshot) Msg {
	return Msg{kind: MsgSessionChanged, data: snap}
}

// refreshStateMsg is the constructor for [MsgRefreshState]
func refreshStateMsg(state auth.State) Msg {
	return Msg{kind: MsgRefreshState, data: state}
}

// bannerExpiredMsg is the constructor for [MsgBannerExpired]
func bannerExpiredMsg(id int) Msg {
	return Msg{kind: MsgBannerExpired, data: id}
}
