package run

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"livecap/internal/audio"
	"livecap/internal/config"
	"livecap/internal/control"
	"livecap/internal/logging"
)

type echoBackend struct{ ready bool }

func (b *echoBackend) Name() string { return "echo" }
func (b *echoBackend) Ready() bool  { return b.ready }
func (b *echoBackend) Close() error { return nil }
func (b *echoBackend) Transcribe(ctx context.Context, c audio.Chunk) (string, error) {
	return " chunk ", nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Audio.SampleRate = 8
	cfg.Audio.ChunkSec = 2
	cfg.Session.OutputDir = filepath.Join(dir, "out")
	cfg.Paths.StateDir = dir
	cfg.Paths.TranscriptPath = filepath.Join(dir, "captions.log")
	cfg.History.Path = filepath.Join(dir, "history.sqlite")
	return cfg
}

func clipSource(t *testing.T, samples int) *audio.FileSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := audio.WriteWAV(path, make([]int16, samples), 8, 1); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	src, err := audio.NewFileSource(path)
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	return src
}

func respond(t *testing.T, v any) control.Response {
	t.Helper()
	resp, ok := v.(control.Response)
	if !ok {
		t.Fatalf("unexpected reply %T", v)
	}
	return resp
}

func TestStartStopSavesAndArchives(t *testing.T) {
	cfg := testConfig(t)
	srv := New(cfg, logging.NewTestLogger(), &echoBackend{ready: true}, clipSource(t, 48))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.queue.Run(ctx, srv.handlers()...)

	start := respond(t, srv.handle(ctx, control.Request{Op: control.OpStart, Name: "talk"}))
	if !start.OK || start.SessionID == "" {
		t.Fatalf("start: %+v", start)
	}
	select {
	case <-srv.ctrl.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("file session did not finish")
	}
	stop := respond(t, srv.handle(ctx, control.Request{Op: control.OpStop}))
	if !stop.OK || stop.Saved == nil {
		t.Fatalf("stop: %+v", stop)
	}
	if stop.Saved.Captions != 3 || stop.Saved.SessionID != start.SessionID {
		t.Fatalf("saved: %+v", stop.Saved)
	}
	txt, err := os.ReadFile(filepath.Join(cfg.Session.OutputDir, "talk.txt"))
	if err != nil {
		t.Fatalf("read txt: %v", err)
	}
	if string(txt) != "chunk\nchunk\nchunk" {
		t.Fatalf("txt = %q", txt)
	}

	again := respond(t, srv.handle(ctx, control.Request{Op: control.OpStop}))
	if !again.OK || again.Message != "not recording" {
		t.Fatalf("second stop: %+v", again)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(srv.copyRecent()) < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("recent = %d", len(srv.copyRecent()))
		}
		time.Sleep(10 * time.Millisecond)
	}
	st, ok := srv.handle(ctx, control.Request{Op: control.OpStatus}).(control.Status)
	if !ok || !st.Running || st.Session.State != "idle" || len(st.Recent) != 3 {
		t.Fatalf("status: %+v", st)
	}
	log, err := os.ReadFile(cfg.Paths.TranscriptPath)
	if err != nil {
		t.Fatalf("read transcript log: %v", err)
	}
	if n := strings.Count(string(log), "\tchunk\n"); n != 3 {
		t.Fatalf("transcript log lines = %d", n)
	}

	sessions, err := srv.history.List(ctx, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != start.SessionID {
		t.Fatalf("history = %+v", sessions)
	}
}

func TestHandleFailures(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Enabled = false
	ctx := context.Background()

	srv := New(cfg, logging.NewTestLogger(), &echoBackend{}, clipSource(t, 16))
	defer srv.Close()

	if r := respond(t, srv.handle(ctx, control.Request{Op: control.OpStart})); r.OK || !strings.Contains(r.Message, "not ready") {
		t.Fatalf("start with cold backend: %+v", r)
	}
	if r := respond(t, srv.handle(ctx, control.Request{Op: control.OpSave})); r.OK || !strings.Contains(r.Message, "nothing to save") {
		t.Fatalf("save with nothing held: %+v", r)
	}
	if r := respond(t, srv.handle(ctx, control.Request{Op: "dance"})); r.OK {
		t.Fatalf("unknown op accepted: %+v", r)
	}
	if r := respond(t, srv.handle(ctx, control.Request{Op: control.OpHealth})); !r.OK || r.Message == "ok" {
		t.Fatalf("health: %+v", r)
	}
	devs := respond(t, srv.handle(ctx, control.Request{Op: control.OpDevices}))
	if !devs.OK || len(devs.Devices) != 1 {
		t.Fatalf("devices: %+v", devs)
	}
}

func TestHandleConnSpeaksJSONLines(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Enabled = false
	srv := New(cfg, logging.NewTestLogger(), &echoBackend{ready: true}, clipSource(t, 16))
	defer srv.Close()

	client, server := net.Pipe()
	go srv.handleConn(context.Background(), server)

	if _, err := client.Write([]byte(`{"op":"health"}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp control.Response
	if err := json.NewDecoder(client).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.Message != "ok" {
		t.Fatalf("health: %+v", resp)
	}
	_ = client.Close()
}

func TestMuxesByAddress(t *testing.T) {
	cases := []struct {
		name          string
		metrics, live bool
		metricsAddr   string
		liveAddr      string
		want          int
	}{
		{"none", false, false, "a:1", "a:2", 0},
		{"metrics only", true, false, "a:1", "a:2", 1},
		{"separate", true, true, "a:1", "a:2", 2},
		{"shared", true, true, "a:1", "a:1", 1},
	}
	for _, c := range cases {
		cfg := testConfig(t)
		cfg.History.Enabled = false
		cfg.Metrics.Enabled, cfg.Metrics.Addr = c.metrics, c.metricsAddr
		cfg.Live.Enabled, cfg.Live.Addr = c.live, c.liveAddr
		srv := New(cfg, logging.NewTestLogger(), &echoBackend{ready: true}, clipSource(t, 16))
		if got := len(srv.muxes()); got != c.want {
			t.Fatalf("%s: %d muxes, want %d", c.name, got, c.want)
		}
		srv.Close()
	}
}

func TestMetricsAndHealthz(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Enabled = false
	cfg.Metrics.Enabled = true
	backend := &echoBackend{}
	srv := New(cfg, logging.NewTestLogger(), backend, clipSource(t, 16))
	defer srv.Close()

	ts := httptest.NewServer(srv.muxes()[cfg.Metrics.Addr])
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("cold healthz = %d", resp.StatusCode)
	}
	backend.ready = true
	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics = %d", resp.StatusCode)
	}
}
