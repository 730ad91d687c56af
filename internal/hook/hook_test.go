package hook

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"livecap/internal/config"
	"livecap/internal/logging"
	"livecap/internal/session"
	"livecap/internal/subtitle"
)

func TestAfterSaveSkipsWithoutCommand(t *testing.T) {
	cfg, _ := config.Default()
	r := NewRunner(cfg, logging.NewTestLogger())
	if r.Enabled() {
		t.Fatalf("hook should be disabled by default")
	}
	if err := r.AfterSave(context.Background(), session.SaveResult{}); err != nil {
		t.Fatalf("after save: %v", err)
	}
}

func TestRunPassesPathsAndEnv(t *testing.T) {
	out := filepath.Join(t.TempDir(), "hook.out")
	cfg, _ := config.Default()
	cfg.Hook.Command = "/bin/sh"
	cfg.Hook.Args = []string{"-c", `echo "$1|$LIVECAP_SRT|$LIVECAP_CAPTIONS|$EXTRA" > "$OUT"`, "hook"}
	cfg.Hook.Env = map[string]string{"EXTRA": "yes", "OUT": out}

	r := NewRunner(cfg, logging.NewTestLogger())
	res := session.SaveResult{SessionID: "s1", Files: subtitle.Paths("/rec/talk.wav"), Captions: 2, Saved: time.Now()}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.AfterSave(ctx, res); err != nil {
		t.Fatalf("after save: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != "/rec/talk.wav|/rec/talk.srt|2|yes" {
		t.Fatalf("hook saw %q", got)
	}
}

func TestCommandStringIsSplit(t *testing.T) {
	cfg, _ := config.Default()
	cfg.Hook.Command = `/bin/echo "two words" plain`
	r := NewRunner(cfg, logging.NewTestLogger())
	name, args, err := r.commandLine()
	if err != nil {
		t.Fatalf("commandLine: %v", err)
	}
	if name != "/bin/echo" || len(args) != 2 || args[0] != "two words" {
		t.Fatalf("got %q %q", name, args)
	}
	if err := r.Run(context.Background(), Job{Audio: "/tmp/x.wav"}); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunFailureIsReported(t *testing.T) {
	cfg, _ := config.Default()
	cfg.Hook.Command = "/bin/sh"
	cfg.Hook.Args = []string{"-c", "exit 3"}
	r := NewRunner(cfg, logging.NewTestLogger())
	if err := r.Run(context.Background(), Job{}); err == nil {
		t.Fatalf("expected failure")
	}
}

func TestParseArgs(t *testing.T) {
	got, err := ParseArgs(`--model "small en" -v`)
	if err != nil || len(got) != 3 || got[1] != "small en" {
		t.Fatalf("ParseArgs = %q, %v", got, err)
	}
	if got, _ := ParseArgs("   "); len(got) != 0 {
		t.Fatalf("blank should yield no args")
	}
}
