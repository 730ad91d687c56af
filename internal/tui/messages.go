package tui

import (
	"livecap/internal/caption"
	"livecap/internal/session"
)

// CaptionMsg carries one accepted caption from the live queue.
type CaptionMsg struct {
	Record caption.Record
}

// StartedMsg is the outcome of a start request.
type StartedMsg struct {
	SessionID string
	Err       error
}

// SavedMsg is the outcome of a stop or save for SessionID. Result and Err
// are both nil when nothing was recorded or another caller already collected
// the outcome.
type SavedMsg struct {
	SessionID string
	Result    *session.SaveResult
	Err       error
}

// ConfirmMsg asks the user whether existing files may be replaced. The
// answer goes to Reply.
type ConfirmMsg struct {
	Existing []string
	Reply    chan<- bool
}

// NotifyMsg carries an error raised by the session without a caller
// waiting on it.
type NotifyMsg struct {
	Err error
}

type tickMsg struct{}
