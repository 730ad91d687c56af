package tui

import (
	"context"
	"sync"

	"livecap/internal/caption"
	"livecap/internal/live"
	"livecap/internal/session"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
)

// sender forwards messages to a program once it exists.
type sender struct {
	mu sync.Mutex
	p  *tea.Program
}

func (s *sender) set(p *tea.Program) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}

func (s *sender) Send(msg tea.Msg) {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Prompter answers overwrite questions through the view.
type Prompter struct {
	send func(tea.Msg)
}

func (p Prompter) ConfirmOverwrite(ctx context.Context, existing []string) (bool, error) {
	reply := make(chan bool, 1)
	p.send(ConfirmMsg{Existing: existing, Reply: reply})
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Run shows the live view over a controller built from opts. The view
// takes over opts.Sink, opts.Notify and, under the "ask" policy, the
// confirmer.
func Run(opts session.Options, overwrite, name string, logger *logrus.Logger) error {
	var snd sender
	opts.Confirmer = session.Policy(overwrite, Prompter{send: snd.Send})
	opts.Notify = func(err error) { snd.Send(NotifyMsg{Err: err}) }

	queue := live.NewQueue()
	opts.Sink = queue
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		queue.Run(context.Background(), func(rec caption.Record) { snd.Send(CaptionMsg{Record: rec}) })
	}()
	defer func() {
		queue.Close()
		<-drained
	}()

	ctrl := session.New(opts, logger)
	p := tea.NewProgram(New(ctrl, name), tea.WithAltScreen())
	snd.set(p)
	_, err := p.Run()
	return err
}
