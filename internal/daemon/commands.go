package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"livecap/internal/config"
	"livecap/internal/logging"
	"livecap/internal/run"

	"github.com/spf13/cobra"
)

// runFlags are the per-run overrides shared by start and serve. Each maps to
// a LIVECAP_* environment override.
var runFlags = []struct {
	name, env, usage string
}{
	{"metrics-addr", "LIVECAP_METRICS_ADDR", "enable /metrics at address (e.g., 127.0.0.1:9317) for this run"},
	{"live-addr", "LIVECAP_LIVE_ADDR", "enable the /ws caption feed at address for this run"},
	{"backend", "LIVECAP_BACKEND", "transcription backend for this run (whisper, http, grpc, google)"},
	{"output-dir", "LIVECAP_OUTPUT_DIR", "directory for saved recordings for this run"},
}

func addRunFlags(cmd *cobra.Command) {
	for _, f := range runFlags {
		cmd.Flags().String(f.name, "", f.usage)
	}
}

// overrides returns KEY=value pairs for the run flags that were set.
func overrides(cmd *cobra.Command) []string {
	var env []string
	for _, f := range runFlags {
		if v, _ := cmd.Flags().GetString(f.name); v != "" {
			env = append(env, fmt.Sprintf("%s=%s", f.env, v))
		}
	}
	return env
}

// NewStartCmd starts the daemon (background).
func NewStartCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start livecap daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if err := ensureNotRunning(cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(cfg.Paths.PidPath), 0o755); err != nil {
				return err
			}
			self, err := os.Executable()
			if err != nil {
				return err
			}
			child := exec.Command(self, "serve", "--config", cfg.Paths.ConfigPath)
			child.Env = append(os.Environ(), overrides(cmd)...)
			child.Stdout = os.Stdout
			child.Stderr = os.Stderr
			if err := child.Start(); err != nil {
				return err
			}
			if !waitForPID(cfg.Paths.PidPath, 2*time.Second) {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: pid file not written yet; check `livecap tail-log`")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "livecap started (pid %d)\n", child.Process.Pid)
			return nil
		},
	}
	addRunFlags(cmd)
	return cmd
}

// NewServeCmd runs the daemon foreground (internal).
func NewServeCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:    "serve",
		Short:  "Run livecap daemon (internal)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range runFlags {
				if v, _ := cmd.Flags().GetString(f.name); v != "" {
					if err := os.Setenv(f.env, v); err != nil {
						return fmt.Errorf("set %s: %w", f.env, err)
					}
				}
			}
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			return run.Serve(cfg, logger)
		},
	}
	addRunFlags(cmd)
	return cmd
}

// NewStopCmd stops the daemon. The daemon saves an active recording before
// it exits.
func NewStopCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop livecap daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			pid, err := readPID(cfg.Paths.PidPath)
			if err != nil {
				return err
			}
			proc, err := os.FindProcess(pid)
			if err != nil {
				return err
			}
			if err := proc.Signal(syscall.SIGTERM); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "stop signal sent")
			return nil
		},
	}
}

// NewRestartCmd stops then starts.
func NewRestartCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart livecap daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stopCmd := NewStopCmd(cfgPath)
			_ = stopCmd.RunE(stopCmd, args) // ignore error if not running

			if err := waitForShutdown(*cfgPath, 70*time.Second); err != nil {
				return err
			}

			startCmd := NewStartCmd(cfgPath)
			for _, f := range runFlags {
				if v, _ := cmd.Flags().GetString(f.name); v != "" {
					if err := startCmd.Flags().Set(f.name, v); err != nil {
						return err
					}
				}
			}
			return startCmd.RunE(startCmd, args)
		},
	}
	addRunFlags(cmd)
	return cmd
}

func ensureNotRunning(cfg *config.Config) error {
	pid, err := readPID(cfg.Paths.PidPath)
	if err != nil {
		return nil
	}
	if alive(pid) {
		return fmt.Errorf("already running with pid %d", pid)
	}
	return nil
}

func alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, err
	}
	return pid, nil
}

func waitForPID(path string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

// waitForShutdown allows time for the daemon to finish saving an active
// recording.
func waitForShutdown(cfgPath string, timeout time.Duration) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		pid, err := readPID(cfg.Paths.PidPath)
		if err != nil {
			return nil // pid file gone
		}
		if !alive(pid) {
			_ = os.Remove(cfg.Paths.PidPath)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("restart: daemon did not stop within %s", timeout)
}
