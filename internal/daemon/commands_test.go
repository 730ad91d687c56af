package daemon

import (
	"fmt"
	"os"
	"testing"
	"time"

	"livecap/internal/config"
)

func TestWaitForShutdownSucceedsWhenPidFileRemoved(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := config.Default()
	cfg.Paths.ConfigPath = dir + "/config.toml"
	cfg.Paths.PidPath = dir + "/livecap.pid"
	if err := config.Save(cfg, cfg.Paths.ConfigPath); err != nil {
		t.Fatalf("save cfg: %v", err)
	}
	if err := os.WriteFile(cfg.Paths.PidPath, []byte("12345"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.Remove(cfg.Paths.PidPath)
	}()
	if err := waitForShutdown(cfg.Paths.ConfigPath, 2*time.Second); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestWaitForShutdownTimesOutOnAlivePid(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := config.Default()
	cfg.Paths.ConfigPath = dir + "/config.toml"
	cfg.Paths.PidPath = dir + "/livecap.pid"
	if err := config.Save(cfg, cfg.Paths.ConfigPath); err != nil {
		t.Fatalf("save cfg: %v", err)
	}
	if err := os.WriteFile(cfg.Paths.PidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if err := waitForShutdown(cfg.Paths.ConfigPath, 300*time.Millisecond); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestEnsureNotRunning(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := config.Default()
	cfg.Paths.PidPath = dir + "/livecap.pid"

	if err := ensureNotRunning(cfg); err != nil {
		t.Fatalf("no pid file: %v", err)
	}
	if err := os.WriteFile(cfg.Paths.PidPath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if err := ensureNotRunning(cfg); err == nil {
		t.Fatalf("expected already running")
	}
}

func TestOverridesOnlyIncludeSetFlags(t *testing.T) {
	cmd := NewStartCmd(new(string))
	if err := cmd.Flags().Set("backend", "http"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := cmd.Flags().Set("metrics-addr", "127.0.0.1:9999"); err != nil {
		t.Fatalf("set: %v", err)
	}
	env := overrides(cmd)
	want := []string{"LIVECAP_METRICS_ADDR=127.0.0.1:9999", "LIVECAP_BACKEND=http"}
	if len(env) != len(want) {
		t.Fatalf("env = %v", env)
	}
	for i := range want {
		if env[i] != want[i] {
			t.Fatalf("env[%d] = %q, want %q", i, env[i], want[i])
		}
	}
}
