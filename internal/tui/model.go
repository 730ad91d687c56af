// Package tui is the foreground live-caption view.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"livecap/internal/caption"
	"livecap/internal/session"
	"livecap/internal/subtitle"

	tea "github.com/charmbracelet/bubbletea"
)

// Controller is the part of session.Controller the view drives.
type Controller interface {
	Start(ctx context.Context, name string) (string, error)
	Stop(ctx context.Context) (*session.SaveResult, error)
	Save(ctx context.Context, name string, confirm session.Confirmer) (*session.SaveResult, error)
	Done() <-chan struct{}
	Status() session.Status
}

// Model is the bubbletea model for the live view.
type Model struct {
	ctrl Controller
	name string

	recording bool
	stopping  bool
	quitting  bool
	sessionID string
	startedAt time.Time
	now       func() time.Time

	entries []caption.Record
	confirm *ConfirmMsg

	status    string
	errorText string
	lastSaved string

	width  int
	height int
}

// New returns a view over ctrl. name is passed to every Start.
func New(ctrl Controller, name string) Model {
	return Model{
		ctrl:   ctrl,
		name:   name,
		now:    time.Now,
		status: "space to start recording",
	}
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return tickMsg{} })
}

func startCmd(ctrl Controller, name string) tea.Cmd {
	return func() tea.Msg {
		id, err := ctrl.Start(context.Background(), name)
		return StartedMsg{SessionID: id, Err: err}
	}
}

// stopCmd runs off the UI loop so an overwrite prompt can be answered
// while the save waits.
func stopCmd(ctrl Controller, id string) tea.Cmd {
	return func() tea.Msg {
		res, err := ctrl.Stop(context.Background())
		return SavedMsg{SessionID: id, Result: res, Err: err}
	}
}

// waitCmd reports a session that ended on its own (cutoff, end of input or
// device failure).
func waitCmd(ctrl Controller, id string, done <-chan struct{}) tea.Cmd {
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		<-done
		res, err := ctrl.Stop(context.Background())
		return SavedMsg{SessionID: id, Result: res, Err: err}
	}
}

func saveCmd(ctrl Controller, id, name string) tea.Cmd {
	return func() tea.Msg {
		res, err := ctrl.Save(context.Background(), name, nil)
		return SavedMsg{SessionID: id, Result: res, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tickCmd()

	case StartedMsg:
		if msg.Err != nil {
			m.errorText = msg.Err.Error()
			return m, nil
		}
		m.recording = true
		m.stopping = false
		m.sessionID = msg.SessionID
		m.startedAt = m.now()
		m.entries = nil
		m.errorText = ""
		m.status = "recording"
		return m, waitCmd(m.ctrl, m.sessionID, m.ctrl.Done())

	case CaptionMsg:
		m.entries = append(m.entries, msg.Record)
		return m, nil

	case ConfirmMsg:
		m.confirm = &msg
		return m, nil

	case NotifyMsg:
		m.errorText = msg.Err.Error()
		return m, nil

	case SavedMsg:
		if msg.SessionID != m.sessionID {
			return m, nil
		}
		if msg.Result == nil && msg.Err == nil {
			if !m.recording && !m.stopping {
				return m, nil
			}
			m.status = "nothing recorded"
		}
		m.recording = false
		m.stopping = false
		kept := false
		switch {
		case msg.Result == nil && msg.Err == nil:
		case errors.Is(msg.Err, session.ErrOverwriteDeclined):
			m.status = "not saved; recording kept (s to save, q to discard)"
			kept = true
		case errors.Is(msg.Err, session.ErrNothingToSave):
			m.status = "nothing to save"
		case msg.Err != nil:
			m.errorText = msg.Err.Error()
			m.status = "save failed; recording kept (s to retry, q to discard)"
			kept = true
		default:
			m.lastSaved = msg.Result.Files.Audio
			m.status = fmt.Sprintf("saved %d captions", msg.Result.Captions)
		}
		if m.quitting && !kept {
			return m, tea.Quit
		}
		m.quitting = false
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if m.confirm != nil {
		switch key {
		case "y", "Y":
			m.answer(true)
		case "n", "N", "esc", "enter":
			m.answer(false)
		case "ctrl+c":
			m.answer(false)
			return m, tea.Quit
		}
		return m, nil
	}

	switch key {
	case "q", "Q", "ctrl+c":
		if m.recording {
			m.quitting = true
			m.stopping = true
			m.status = "stopping and saving before exit"
			return m, stopCmd(m.ctrl, m.sessionID)
		}
		if m.stopping {
			m.quitting = true
			return m, nil
		}
		return m, tea.Quit

	case " ", "r":
		if m.stopping {
			return m, nil
		}
		if m.recording {
			m.stopping = true
			m.status = "stopping"
			return m, stopCmd(m.ctrl, m.sessionID)
		}
		return m, startCmd(m.ctrl, m.name)

	case "s":
		if m.recording || m.stopping {
			return m, nil
		}
		m.stopping = true
		m.status = "saving"
		return m, saveCmd(m.ctrl, m.sessionID, m.name)
	}
	return m, nil
}

func (m *Model) answer(ok bool) {
	m.confirm.Reply <- ok
	m.confirm = nil
}

func (m Model) View() string {
	var b strings.Builder

	dot := idleDotStyle.Render("○")
	state := "idle"
	if m.recording {
		dot = recordingDotStyle.Render("●")
		state = "REC " + m.now().Sub(m.startedAt).Truncate(time.Second).String()
	}
	st := m.ctrl.Status()
	fmt.Fprintf(&b, "%s %s  %s\n", titleStyle.Render("livecap"), dot, statusStyle.Render(fmt.Sprintf("%s · %s backend · %d chunks", state, st.Backend, st.Chunks)))

	for _, rec := range m.visible() {
		fmt.Fprintf(&b, "%s %s\n", timestampStyle.Render(subtitle.FormatSRT(rec.Start)), rec.Text)
	}

	if m.confirm != nil {
		b.WriteString(promptStyle.Render("These files already exist:") + "\n")
		for _, p := range m.confirm.Existing {
			fmt.Fprintf(&b, "  %s\n", p)
		}
		b.WriteString(promptStyle.Render("Overwrite? [y/N]") + "\n")
	}
	if m.errorText != "" {
		b.WriteString(errorStyle.Render("error: "+m.errorText) + "\n")
	}
	if m.lastSaved != "" {
		b.WriteString(savedStyle.Render("last saved: "+m.lastSaved) + "\n")
	}
	b.WriteString(statusStyle.Render(m.status) + "\n")
	b.WriteString(footer())
	return b.String()
}

// visible returns the captions that fit above the status lines.
func (m Model) visible() []caption.Record {
	rows := m.height - 6
	if m.confirm != nil {
		rows -= len(m.confirm.Existing) + 2
	}
	if m.height == 0 || rows >= len(m.entries) {
		return m.entries
	}
	if rows < 1 {
		rows = 1
	}
	return m.entries[len(m.entries)-rows:]
}

func footer() string {
	keys := []struct{ key, desc string }{
		{"space", "start/stop"},
		{"s", "save held"},
		{"q", "quit"},
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, footerKeyStyle.Render(k.key)+" "+footerDescStyle.Render(k.desc))
	}
	return strings.Join(parts, "  ")
}
