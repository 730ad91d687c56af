package control

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"livecap/internal/asr"
	"livecap/internal/audio"
	"livecap/internal/caption"
	"livecap/internal/config"
	"livecap/internal/logging"
	"livecap/internal/session"
)

type wordBackend struct {
	ready bool
	n     int
}

func (b *wordBackend) Name() string { return "word" }
func (b *wordBackend) Ready() bool  { return b.ready }
func (b *wordBackend) Close() error { return nil }
func (b *wordBackend) Transcribe(ctx context.Context, c audio.Chunk) (string, error) {
	b.n++
	return fmt.Sprintf(" word%d ", b.n), nil
}

type waitingBackend struct {
	wordBackend
	err error
}

func (b *waitingBackend) Wait(ctx context.Context) error { return b.err }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Session.OutputDir = filepath.Join(dir, "out")
	cfg.Paths.StateDir = dir
	cfg.Paths.ModelDir = filepath.Join(dir, "models")
	return cfg
}

func TestTranscribeFileSavesAllFormats(t *testing.T) {
	cfg := testConfig(t)
	cfg.Audio.ChunkSec = 2
	clip := filepath.Join(t.TempDir(), "clip.wav")
	if err := audio.WriteWAV(clip, make([]int16, 48), 8, 1); err != nil {
		t.Fatalf("write clip: %v", err)
	}

	var shown bytes.Buffer
	res, err := transcribeFile(context.Background(), cfg, logging.NewTestLogger(), &wordBackend{ready: true}, clip, transcribeOptions{
		Name:    "talk",
		Confirm: session.Always,
		Show:    printCaption(&shown),
	})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Captions != 3 {
		t.Fatalf("captions = %d", res.Captions)
	}
	txt, err := os.ReadFile(res.Files.TXT)
	if err != nil {
		t.Fatalf("read txt: %v", err)
	}
	if got := strings.TrimSpace(string(txt)); got != "word1\nword2\nword3" {
		t.Fatalf("txt = %q", got)
	}
	for _, p := range []string{res.Files.Audio, res.Files.SRT, res.Files.TSV, res.Files.VTT} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("missing %s: %v", p, err)
		}
	}
	if !strings.Contains(shown.String(), "--> 00:00:02,000] word1") {
		t.Fatalf("shown = %q", shown.String())
	}
}

func TestTranscribeFileMissing(t *testing.T) {
	cfg := testConfig(t)
	_, err := transcribeFile(context.Background(), cfg, logging.NewTestLogger(), &wordBackend{ready: true}, filepath.Join(t.TempDir(), "nope.wav"), transcribeOptions{})
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestWaitReady(t *testing.T) {
	if err := waitReady(context.Background(), &wordBackend{ready: true}); err != nil {
		t.Fatalf("ready backend: %v", err)
	}
	if err := waitReady(context.Background(), &wordBackend{}); !errors.Is(err, asr.ErrNotReady) {
		t.Fatalf("err = %v", err)
	}
	boom := errors.New("model missing")
	if err := waitReady(context.Background(), &waitingBackend{err: boom}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, Status{
		Running:   true,
		UptimeSec: 12,
		Session: session.Status{
			State:        "recording",
			SessionID:    "abc",
			Chunks:       4,
			Captions:     2,
			TTimeSec:     8,
			Backend:      "whisper",
			BackendReady: true,
			LastError:    "mic unplugged",
		},
		Recent:  []caption.Record{{Start: 61.5, End: 63, Text: "hello"}},
		Viewers: 2,
	})
	out := buf.String()
	for _, want := range []string{
		"backend: whisper (ready)",
		"state: recording (session abc, 4 chunks, 2 captions, 8.0s transcribing)",
		"last error: mic unplugged",
		"live viewers: 2",
		"00:01:01,500  hello",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "unsaved") {
		t.Fatalf("unexpected unsaved line:\n%s", out)
	}
}

func TestTailFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captions.log")
	if err := os.WriteFile(path, []byte("a\nb\n\nc\nd\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := tailFile(&buf, path, 2); err != nil {
		t.Fatalf("tail: %v", err)
	}
	if buf.String() != "c\nd\n" {
		t.Fatalf("tail = %q", buf.String())
	}
	if err := tailFile(&buf, path+".missing", 2); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestModels(t *testing.T) {
	cfg := testConfig(t)
	if err := os.MkdirAll(cfg.Paths.ModelDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, n := range []string{"ggml-base.en.bin", "custom.bin"} {
		if err := os.WriteFile(filepath.Join(cfg.Paths.ModelDir, n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cfg.ASR.ModelPath = filepath.Join(cfg.Paths.ModelDir, "custom.bin")

	var buf bytes.Buffer
	listModels(&buf, cfg)
	out := buf.String()
	for _, want := range []string{
		"- ggml-base.en.bin (downloaded)\n",
		"- custom.bin (downloaded, active)\n",
		"- ggml-small.en.bin\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}

	if got := resolveModelPath(cfg, "ggml-base.en.bin"); got != filepath.Join(cfg.Paths.ModelDir, "ggml-base.en.bin") {
		t.Fatalf("resolve name = %q", got)
	}
	if got := resolveModelPath(cfg, "/opt/m.bin"); got != "/opt/m.bin" {
		t.Fatalf("resolve path = %q", got)
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("weights"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "models", "m.bin")
	if err := download(context.Background(), srv.URL+"/m.bin", dest); err != nil {
		t.Fatalf("download: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "weights" {
		t.Fatalf("dest = %q, %v", data, err)
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Fatalf("partial file left behind")
	}
	if err := download(context.Background(), srv.URL+"/missing", dest+"2"); err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestShortID(t *testing.T) {
	cases := map[string]string{
		"":                                     "",
		"abc":                                  "abc",
		"0123456789abcdef":                     "01234567",
		"5f1c2d7e-0000-4000-8000-000000000000": "5f1c2d7e",
	}
	for in, want := range cases {
		if got := shortID(in); got != want {
			t.Fatalf("shortID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestServeRPCRejectsUnservableBackend(t *testing.T) {
	cases := []struct {
		backend string
		want    string
	}{
		{"grpc", "backend.kind is grpc"},
		{"carrier-pigeon", "backend.kind must be one of"},
	}
	for _, c := range cases {
		cfgPath := filepath.Join(t.TempDir(), "config.toml")
		cmd := NewServeRPCCmd(&cfgPath)
		cmd.SetArgs([]string{"--backend", c.backend})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		err := cmd.Execute()
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Fatalf("--backend %s: err = %v, want %q", c.backend, err, c.want)
		}
	}
}
