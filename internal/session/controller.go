// Package session drives the start → record → stop → save lifecycle.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"livecap/internal/asr"
	"livecap/internal/audio"
	"livecap/internal/caption"
	"livecap/internal/capture"
	"livecap/internal/config"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// State is the controller state.
type State int

const (
	Idle State = iota
	Recording
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Stopping:
		return "stopping"
	}
	return "unknown"
}

// Archiver stores saved sessions.
type Archiver interface {
	Archive(ctx context.Context, res SaveResult, recs []caption.Record) error
}

// PostSave runs after a successful save.
type PostSave interface {
	AfterSave(ctx context.Context, res SaveResult) error
}

// SessionObserver is implemented by observers that also track whole sessions.
type SessionObserver interface {
	SessionStarted()
	SessionSaved(ok bool, seconds float64)
}

// Options wires a Controller.
type Options struct {
	Backend asr.Backend
	Source  audio.Source
	Device  string

	SampleRate  int
	Channels    int
	ChunkSec    float64
	MaxDuration time.Duration
	StartClamp  time.Duration
	Fillers     []string
	OutputDir   string

	Sink      capture.Sink
	Gate      capture.Gate
	Observer  capture.Observer
	Confirmer Confirmer
	Archiver  Archiver
	Hook      PostSave

	// Notify receives errors raised without a caller waiting: device
	// failures and saves triggered by the duration cutoff.
	Notify func(error)
	Now    func() time.Time
}

// OptionsFromConfig fills the audio and session fields from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	fillers := cfg.Session.FillerTokens
	if fillers == nil {
		fillers = asr.DefaultFillers
	}
	return Options{
		Device:      cfg.Audio.DeviceName,
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		ChunkSec:    cfg.Audio.ChunkSec,
		MaxDuration: cfg.MaxDuration(),
		StartClamp:  time.Duration(cfg.Session.StartClampSec * float64(time.Second)),
		Fillers:     fillers,
		OutputDir:   cfg.Session.OutputDir,
	}
}

// Status is a point-in-time view of the controller.
type Status struct {
	State        string    `json:"state"`
	SessionID    string    `json:"session_id,omitempty"`
	Started      time.Time `json:"started,omitempty"`
	Captions     int       `json:"captions"`
	// Chunks counts processed chunks while recording and held chunks otherwise.
	Chunks       int       `json:"chunks"`
	TTimeSec     float64   `json:"ttime_sec"`
	Backend      string    `json:"backend"`
	BackendReady bool      `json:"backend_ready"`
	Unsaved      bool      `json:"unsaved"`
	LastSaved    string    `json:"last_saved,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// Controller owns one recording at a time.
type Controller struct {
	opts   Options
	logger *logrus.Logger
	ledger *caption.Ledger
	buffer *audio.Buffer

	mu        sync.Mutex
	state     State
	sched     *capture.Scheduler
	sessionID string
	started   time.Time
	name      string
	finished  chan struct{}
	result    *SaveResult
	resultErr error
	lastSaved string
	lastErr   error
}

// New returns an idle controller.
func New(opts Options, logger *logrus.Logger) *Controller {
	if opts.Confirmer == nil {
		opts.Confirmer = Never
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Channels <= 0 {
		opts.Channels = 1
	}
	if opts.Notify == nil {
		opts.Notify = func(error) {}
	}
	return &Controller{
		opts:   opts,
		logger: logger,
		ledger: caption.NewLedger(),
		buffer: &audio.Buffer{},
	}
}

// Ledger exposes the live caption ledger for readers.
func (c *Controller) Ledger() *caption.Ledger { return c.ledger }

// State reports the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start begins a recording. name is used for the save that follows stop; empty
// means a timestamped default.
func (c *Controller) Start(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	err := c.startable()
	c.mu.Unlock()
	if err != nil {
		return "", err
	}

	// Opening a device can block; status readers must not wait on it.
	stream, err := c.opts.Source.Open(c.opts.Device, c.opts.SampleRate, c.opts.Channels)
	if err != nil {
		var de *audio.DeviceError
		if !errors.As(err, &de) {
			err = &audio.DeviceError{Device: c.opts.Device, Op: "open", Err: err}
		}
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.startable(); err != nil {
		_ = stream.Close()
		return "", err
	}

	if c.ledger.Len() > 0 || c.buffer.Len() > 0 {
		c.logger.Warn("discarding unsaved recording")
	}
	c.ledger.Clear()
	c.buffer.Clear()

	copts := capture.Options{
		SampleRate:  c.opts.SampleRate,
		Channels:    c.opts.Channels,
		ChunkSec:    c.opts.ChunkSec,
		MaxDuration: c.opts.MaxDuration,
		StartClamp:  c.opts.StartClamp,
		Fillers:     c.opts.Fillers,
		Gate:        c.opts.Gate,
		Observer:    c.opts.Observer,
	}
	// Finite inputs report their own position; live devices use the wall clock.
	if p, ok := stream.(interface{ Position() time.Duration }); ok {
		copts.Elapsed = p.Position
	}
	sched := capture.New(stream, c.opts.Backend, c.ledger, c.buffer, c.opts.Sink, copts, c.logger)

	c.sessionID = uuid.NewString()
	c.started = c.opts.Now()
	c.name = name
	c.state = Recording
	c.sched = sched
	c.finished = make(chan struct{})
	c.result, c.resultErr, c.lastErr = nil, nil, nil

	if o, ok := c.opts.Observer.(SessionObserver); ok {
		o.SessionStarted()
	}
	c.logger.WithField("session", c.sessionID).Infof("recording started (backend=%s)", c.opts.Backend.Name())

	workCtx := context.WithoutCancel(ctx)
	sched.Start(workCtx)
	go c.watch(workCtx, sched, stream, c.finished)
	return c.sessionID, nil
}

// startable reports why a session cannot start now. Callers hold c.mu.
func (c *Controller) startable() error {
	switch c.state {
	case Recording:
		return ErrAlreadyRecording
	case Stopping:
		return ErrSavePending
	}
	if !c.opts.Backend.Ready() {
		return asr.ErrNotReady
	}
	return nil
}

// watch joins the worker exactly once, then saves.
func (c *Controller) watch(ctx context.Context, sched *capture.Scheduler, stream audio.Stream, finished chan struct{}) {
	werr := sched.Wait()
	_ = stream.Close()

	c.mu.Lock()
	c.state = Stopping
	c.sched = nil
	name := c.name
	c.mu.Unlock()

	if werr != nil {
		c.opts.Notify(werr)
	}
	if sched.Cutoff() {
		c.logger.Info("maximum duration reached; saving")
	}

	res, serr := c.save(ctx, name, nil)
	if errors.Is(serr, ErrNothingToSave) {
		serr = nil
	}
	if serr != nil {
		c.opts.Notify(serr)
	}

	c.mu.Lock()
	c.state = Idle
	c.result = res
	c.resultErr = errors.Join(werr, serr)
	c.lastErr = c.resultErr
	if res != nil {
		c.lastSaved = res.Files.Audio
	}
	c.mu.Unlock()
	close(finished)
}

// Stop ends the recording and returns the outcome of the save that follows.
// It is a no-op when nothing is recording and no outcome is waiting.
func (c *Controller) Stop(ctx context.Context) (*SaveResult, error) {
	c.mu.Lock()
	sched, finished := c.sched, c.finished
	if c.state == Recording {
		c.state = Stopping
	}
	c.mu.Unlock()
	if finished == nil {
		return nil, nil
	}
	if sched != nil {
		sched.RequestStop()
	}
	select {
	case <-finished:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished != finished {
		// Another caller collected the outcome first.
		return nil, nil
	}
	c.finished = nil
	return c.result, c.resultErr
}

// Done is closed when the current session has been joined and saved. It
// returns nil when no session is outstanding.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

// Save writes a recording kept after a declined or failed save. A nil confirm
// uses the configured Confirmer.
func (c *Controller) Save(ctx context.Context, name string, confirm Confirmer) (*SaveResult, error) {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.state = Stopping
	c.mu.Unlock()

	res, err := c.save(ctx, name, confirm)

	c.mu.Lock()
	c.state = Idle
	c.lastErr = err
	if res != nil {
		c.lastSaved = res.Files.Audio
	}
	c.mu.Unlock()
	return res, err
}

// Status snapshots the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		State:        c.state.String(),
		SessionID:    c.sessionID,
		Started:      c.started,
		Captions:     c.ledger.Len(),
		Chunks:       c.buffer.Len(),
		Backend:      c.opts.Backend.Name(),
		BackendReady: c.opts.Backend.Ready(),
		LastSaved:    c.lastSaved,
	}
	if c.sched != nil {
		st.TTimeSec = c.sched.TTime().Seconds()
		st.Chunks = c.sched.Chunks()
	}
	st.Unsaved = c.state == Idle && (st.Captions > 0 || st.Chunks > 0)
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

func (c *Controller) observeSave(ok bool, seconds float64) {
	if o, isSession := c.opts.Observer.(SessionObserver); isSession {
		o.SessionSaved(ok, seconds)
	}
}
