package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"livecap/internal/caption"
	"livecap/internal/session"
	"livecap/internal/subtitle"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeController struct {
	startErr error
	stopRes  *session.SaveResult
	stopErr  error
	done     chan struct{}
	starts   int
	stops    int
}

func (f *fakeController) Start(ctx context.Context, name string) (string, error) {
	f.starts++
	if f.startErr != nil {
		return "", f.startErr
	}
	f.done = make(chan struct{})
	return "sess-1", nil
}

func (f *fakeController) Stop(ctx context.Context) (*session.SaveResult, error) {
	f.stops++
	return f.stopRes, f.stopErr
}

func (f *fakeController) Save(ctx context.Context, name string, confirm session.Confirmer) (*session.SaveResult, error) {
	return f.stopRes, f.stopErr
}

func (f *fakeController) Done() <-chan struct{} { return f.done }

func (f *fakeController) Status() session.Status {
	return session.Status{State: "idle", Backend: "fake"}
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func started(t *testing.T, ctrl *fakeController) Model {
	t.Helper()
	m := New(ctrl, "talk")
	m, cmd := update(t, m, key(" "))
	if cmd == nil {
		t.Fatalf("space should start")
	}
	m, _ = update(t, m, cmd())
	if !m.recording || m.sessionID != "sess-1" {
		t.Fatalf("not recording after start: %+v", m)
	}
	return m
}

func TestStartStopSaves(t *testing.T) {
	ctrl := &fakeController{stopRes: &session.SaveResult{SessionID: "sess-1", Captions: 2, Files: subtitle.Paths("/out/talk.wav")}}
	m := started(t, ctrl)

	m, _ = update(t, m, CaptionMsg{Record: caption.Record{Start: 0, End: 2, Text: "hello"}})
	if len(m.entries) != 1 {
		t.Fatalf("entries = %d", len(m.entries))
	}

	m, cmd := update(t, m, key(" "))
	if !m.stopping || cmd == nil {
		t.Fatalf("space should stop")
	}
	m, _ = update(t, m, cmd())
	if m.recording || m.stopping {
		t.Fatalf("still recording after save")
	}
	if m.lastSaved != "/out/talk.wav" || !strings.Contains(m.status, "saved 2 captions") {
		t.Fatalf("status = %q last = %q", m.status, m.lastSaved)
	}
}

func TestStartErrorShown(t *testing.T) {
	ctrl := &fakeController{startErr: errors.New("transcription backend not ready")}
	m := New(ctrl, "")
	m, cmd := update(t, m, key(" "))
	m, _ = update(t, m, cmd())
	if m.recording || !strings.Contains(m.View(), "backend not ready") {
		t.Fatalf("error not shown:\n%s", m.View())
	}
}

func TestStaleAndDuplicateSavedIgnored(t *testing.T) {
	ctrl := &fakeController{}
	m := started(t, ctrl)

	m, _ = update(t, m, SavedMsg{SessionID: "older", Err: errors.New("old")})
	if !m.recording || m.errorText != "" {
		t.Fatalf("stale outcome applied")
	}
	m, _ = update(t, m, SavedMsg{SessionID: "sess-1", Result: &session.SaveResult{Captions: 1}})
	m, _ = update(t, m, SavedMsg{SessionID: "sess-1"})
	if m.recording || m.status != "saved 1 captions" {
		t.Fatalf("duplicate outcome changed status to %q", m.status)
	}
}

func TestDeclinedOverwriteKeepsQuitPending(t *testing.T) {
	ctrl := &fakeController{stopErr: session.ErrOverwriteDeclined}
	m := started(t, ctrl)

	m, cmd := update(t, m, key("q"))
	if !m.quitting || cmd == nil {
		t.Fatalf("q while recording should stop first")
	}
	m, cmd = update(t, m, cmd())
	if cmd != nil {
		t.Fatalf("declined save must not quit")
	}
	if m.quitting || !strings.Contains(m.status, "recording kept") {
		t.Fatalf("status = %q quitting = %v", m.status, m.quitting)
	}
	if _, cmd = update(t, m, key("q")); cmd == nil {
		t.Fatalf("second q should quit")
	}
}

func TestConfirmPrompt(t *testing.T) {
	m := New(&fakeController{}, "")
	reply := make(chan bool, 1)
	m, _ = update(t, m, ConfirmMsg{Existing: []string{"/out/a.wav"}, Reply: reply})
	if !strings.Contains(m.View(), "Overwrite? [y/N]") {
		t.Fatalf("prompt not shown:\n%s", m.View())
	}
	m, _ = update(t, m, key(" "))
	if m.confirm == nil {
		t.Fatalf("other keys must not dismiss the prompt")
	}
	m, _ = update(t, m, key("y"))
	if m.confirm != nil {
		t.Fatalf("prompt still open")
	}
	select {
	case ok := <-reply:
		if !ok {
			t.Fatalf("answer = false")
		}
	default:
		t.Fatalf("no answer sent")
	}
}

func TestPrompterWaitsForAnswer(t *testing.T) {
	msgs := make(chan tea.Msg, 1)
	p := Prompter{send: func(m tea.Msg) { msgs <- m }}
	go func() {
		msg := (<-msgs).(ConfirmMsg)
		msg.Reply <- false
	}()
	ok, err := p.ConfirmOverwrite(context.Background(), []string{"x"})
	if err != nil || ok {
		t.Fatalf("ConfirmOverwrite = %v, %v", ok, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	p = Prompter{send: func(tea.Msg) {}}
	if _, err := p.ConfirmOverwrite(ctx, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestVisibleKeepsNewest(t *testing.T) {
	m := New(&fakeController{}, "")
	m.height = 8
	for i := 0; i < 5; i++ {
		m.entries = append(m.entries, caption.Record{Start: float64(i), Text: string(rune('a' + i))})
	}
	got := m.visible()
	if len(got) != 2 || got[1].Text != "e" {
		t.Fatalf("visible = %+v", got)
	}
}
