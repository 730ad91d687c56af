package run

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"livecap/internal/asr"
	"livecap/internal/audio"
	"livecap/internal/caption"
	"livecap/internal/config"
	"livecap/internal/control"
	"livecap/internal/events"
	"livecap/internal/history"
	"livecap/internal/hook"
	"livecap/internal/live"
	"livecap/internal/metrics"
	"livecap/internal/session"
	"livecap/internal/vad"

	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 60 * time.Second

// Server hosts one session controller behind the control socket and the
// HTTP endpoints.
type Server struct {
	cfg       *config.Config
	logger    *logrus.Logger
	startedAt time.Time

	backend asr.Backend
	source  audio.Source
	ctrl    *session.Controller
	queue   *live.Queue
	hub     *live.Hub
	metrics *metrics.Pipeline
	events  *events.Publisher
	history *history.Store

	recentMu sync.Mutex
	recent   []caption.Record
}

// Serve runs the daemon until interrupted.
func Serve(cfg *config.Config, logger *logrus.Logger) error {
	if err := config.MustStatePaths(cfg); err != nil {
		return err
	}
	if err := os.WriteFile(cfg.Paths.PidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(cfg.Paths.PidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("remove pid file: %v", err)
		}
	}()
	if err := os.Remove(cfg.Paths.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Debugf("remove stale socket: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := asr.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("asr init: %w", err)
	}
	var source audio.Source
	mic, err := audio.NewMic()
	if err != nil {
		logger.Warnf("microphone unavailable: %v", err)
		source = missingSource{err: err}
	} else {
		defer mic.Close()
		source = mic
	}

	srv := New(cfg, logger, backend, source)
	defer srv.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		srv.queue.Run(ctx, srv.handlers()...)
	}()
	go srv.controlLoop(ctx)
	for addr, mux := range srv.muxes() {
		go srv.httpServe(ctx.Done(), addr, mux)
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	select {
	case s := <-sigCh:
		logger.Infof("received signal %s, shutting down", s)
	case <-ctx.Done():
	}

	// Save whatever is being recorded before tearing down.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if res, err := srv.ctrl.Stop(stopCtx); err != nil {
		logger.Errorf("final save: %v", err)
	} else if res != nil {
		logger.Infof("final save: %s", res.Files.Audio)
	}
	srv.queue.Close()
	wg.Wait()
	cancel()
	return nil
}

// New wires a controller and its consumers around backend and source.
func New(cfg *config.Config, logger *logrus.Logger, backend asr.Backend, source audio.Source) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		startedAt: time.Now(),
		backend:   backend,
		source:    source,
		queue:     live.NewQueue(),
		hub:       live.NewHub(logger),
		metrics:   metrics.New(),
		recent:    make([]caption.Record, 0, cfg.UI.StatusTail),
	}
	s.events = events.New(cfg, s.sessionID, s.metrics, logger)

	opts := session.OptionsFromConfig(cfg)
	opts.Backend = backend
	opts.Source = source
	opts.Sink = s.queue
	opts.Observer = s.metrics
	opts.Confirmer = session.Policy(cfg.Session.Overwrite, nil)
	opts.Hook = session.Hooks{s.events, hook.NewRunner(cfg, logger)}
	opts.Notify = func(err error) { logger.Errorf("session: %v", err) }

	if cfg.VAD.Enabled {
		gate, err := vad.NewWebRTC(cfg.VAD.Aggressiveness, cfg.VAD.FrameMS, cfg.VAD.MinVoicedFrames)
		if err != nil {
			logger.Warnf("vad disabled: %v", err)
		} else {
			opts.Gate = gate
		}
	}
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			logger.Warnf("history disabled: %v", err)
		} else {
			s.history = store
			opts.Archiver = store
		}
	}

	s.ctrl = session.New(opts, logger)
	return s
}

// Close releases the backend and the archive.
func (s *Server) Close() {
	s.hub.Close()
	if err := s.events.Close(); err != nil {
		s.logger.Warnf("events close: %v", err)
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.logger.Warnf("history close: %v", err)
		}
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Warnf("backend close: %v", err)
	}
}

func (s *Server) sessionID() string {
	return s.ctrl.Status().SessionID
}

// handlers are the live queue consumers, called in order for every caption.
func (s *Server) handlers() []live.Handler {
	hs := []live.Handler{s.recordTranscript}
	if s.cfg.Live.Enabled {
		hs = append(hs, s.hub.Broadcast)
	}
	return append(hs, s.events.Caption)
}

func (s *Server) recordTranscript(rec caption.Record) {
	s.recentMu.Lock()
	s.recent = append(s.recent, rec)
	if tail := s.cfg.UI.StatusTail; tail > 0 && len(s.recent) > tail {
		s.recent = s.recent[len(s.recent)-tail:]
	}
	s.recentMu.Unlock()

	s.logger.Infof("caption %.2f-%.2f: %q", rec.Start, rec.End, rec.Text)
	if !s.cfg.Transcripts.Enabled {
		return
	}
	f, err := os.OpenFile(s.cfg.Paths.TranscriptPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		s.logger.Warnf("open transcript: %v", err)
		return
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%s\t%.3f\t%.3f\t%s\n", time.Now().Format(time.RFC3339), rec.Start, rec.End, rec.Text); err != nil {
		s.logger.Warnf("write transcript: %v", err)
	}
}

func (s *Server) copyRecent() []caption.Record {
	s.recentMu.Lock()
	defer s.recentMu.Unlock()
	out := make([]caption.Record, len(s.recent))
	copy(out, s.recent)
	return out
}

func (s *Server) controlLoop(ctx context.Context) {
	ln, err := net.Listen("unix", s.cfg.Paths.SocketPath)
	if err != nil {
		s.logger.Errorf("control listen: %v", err)
		return
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Errorf("control accept: %v", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() {
		if err := conn.Close(); err != nil && ctx.Err() == nil {
			s.logger.Warnf("control connection close: %v", err)
		}
	}()
	sc := bufio.NewScanner(conn)
	if !sc.Scan() {
		return
	}
	var req control.Request
	if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
		_ = json.NewEncoder(conn).Encode(control.Response{Message: fmt.Sprintf("bad request: %v", err)})
		return
	}
	_ = json.NewEncoder(conn).Encode(s.handle(ctx, req))
}

// handle executes one control request. Status requests get a control.Status,
// everything else a control.Response.
func (s *Server) handle(ctx context.Context, req control.Request) any {
	switch req.Op {
	case control.OpStatus:
		return control.Status{
			Running:   true,
			UptimeSec: time.Since(s.startedAt).Seconds(),
			Session:   s.ctrl.Status(),
			Recent:    s.copyRecent(),
			Viewers:   s.hub.Clients(),
		}
	case control.OpHealth:
		if !s.backend.Ready() {
			return control.Response{OK: true, Message: fmt.Sprintf("%s backend not ready", s.backend.Name())}
		}
		return control.Response{OK: true, Message: "ok"}
	case control.OpStart:
		id, err := s.ctrl.Start(ctx, req.Name)
		if err != nil {
			return failure(err)
		}
		return control.Response{OK: true, Message: "recording", SessionID: id}
	case control.OpStop:
		res, err := s.ctrl.Stop(ctx)
		if err != nil {
			return failure(err)
		}
		if res == nil {
			return control.Response{OK: true, Message: "not recording"}
		}
		return control.Response{OK: true, Message: "saved " + res.Files.Audio, SessionID: res.SessionID, Saved: res}
	case control.OpSave:
		var confirm session.Confirmer
		if req.Overwrite {
			confirm = session.Always
		}
		res, err := s.ctrl.Save(ctx, req.Name, confirm)
		if err != nil {
			return failure(err)
		}
		return control.Response{OK: true, Message: "saved " + res.Files.Audio, SessionID: res.SessionID, Saved: res}
	case control.OpDevices:
		devs, err := s.source.Devices()
		if err != nil {
			return failure(err)
		}
		return control.Response{OK: true, Message: fmt.Sprintf("%d devices", len(devs)), Devices: devs}
	default:
		return control.Response{Message: fmt.Sprintf("unknown op %q", req.Op)}
	}
}

func failure(err error) control.Response {
	msg := err.Error()
	if errors.Is(err, session.ErrOverwriteDeclined) {
		msg += "; recording kept, retry with save --overwrite or another name"
	}
	return control.Response{Message: msg}
}

// missingSource stands in when no capture device can be initialized.
type missingSource struct{ err error }

func (m missingSource) Devices() ([]audio.Device, error) { return nil, m.err }

func (m missingSource) Open(string, int, int) (audio.Stream, error) { return nil, m.err }
