package control

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"livecap/internal/config"
	"livecap/internal/doctor"
	"livecap/internal/hook"
	"livecap/internal/logging"
	"livecap/internal/subtitle"

	"github.com/spf13/cobra"
)

// NewStatusCmd queries daemon status.
func NewStatusCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and recording status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			var status Status
			if err := Call(cfg.Paths.SocketPath, Request{Op: OpStatus}, &status); err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(status)
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}

func printStatus(w io.Writer, st Status) {
	s := st.Session
	fmt.Fprintf(w, "running: %v\nuptime: %.1fs\n", st.Running, st.UptimeSec)
	ready := "ready"
	if !s.BackendReady {
		ready = "not ready"
	}
	fmt.Fprintf(w, "backend: %s (%s)\n", s.Backend, ready)
	fmt.Fprintf(w, "state: %s", s.State)
	if s.State != "idle" {
		fmt.Fprintf(w, " (session %s, %d chunks, %d captions, %.1fs transcribing)", s.SessionID, s.Chunks, s.Captions, s.TTimeSec)
	}
	fmt.Fprintln(w)
	if s.Unsaved {
		fmt.Fprintf(w, "unsaved recording held: %d captions; run `livecap rec save`\n", s.Captions)
	}
	if s.LastSaved != "" {
		fmt.Fprintf(w, "last saved: %s\n", s.LastSaved)
	}
	if s.LastError != "" {
		fmt.Fprintf(w, "last error: %s\n", s.LastError)
	}
	if st.Viewers > 0 {
		fmt.Fprintf(w, "live viewers: %d\n", st.Viewers)
	}
	for _, r := range st.Recent {
		fmt.Fprintf(w, "%s  %s\n", subtitle.FormatSRT(r.Start), r.Text)
	}
}

// NewHealthCmd pings the control socket.
func NewHealthCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Ping the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			resp, err := Do(cfg.Paths.SocketPath, Request{Op: OpHealth})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

// NewTailLogCmd tails the main log file (simple last N lines).
func NewTailLogCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail-log",
		Short: "Show the last log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			n, _ := cmd.Flags().GetInt("lines")
			path := cfg.Paths.LogPath
			if captions, _ := cmd.Flags().GetBool("captions"); captions {
				path = cfg.Paths.TranscriptPath
			}
			return tailFile(cmd.OutOrStdout(), path, n)
		},
	}
	cmd.Flags().IntP("lines", "n", 50, "number of lines")
	cmd.Flags().Bool("captions", false, "tail the caption log instead of the daemon log")
	return cmd
}

func tailFile(w io.Writer, path string, n int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			fmt.Fprintln(w, l)
		}
	}
	return nil
}

// NewTestHookCmd runs the post-save hook against an existing recording.
func NewTestHookCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "test-hook <recording.wav>",
		Short: "Run the post-save hook for a saved recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			r := hook.NewRunner(cfg, logger)
			if !r.Enabled() {
				return fmt.Errorf("no hook.command configured")
			}
			audio, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			files := subtitle.Paths(audio)
			return r.Run(cmd.Context(), hook.Job{
				SessionID: "test",
				Audio:     files.Audio,
				TXT:       files.TXT,
				SRT:       files.SRT,
				TSV:       files.TSV,
				VTT:       files.VTT,
				Timestamp: time.Now(),
			})
		},
	}
}

// NewDoctorCmd runs environment checks.
func NewDoctorCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check dependencies and config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			results := doctor.Run(cmd.Context(), cfg)
			failed := false
			for _, r := range results {
				status := "ok"
				if !r.Pass {
					status = "fail"
					failed = true
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s %-4s %s\n", r.Name, status, r.Detail)
			}
			if failed {
				return fmt.Errorf("doctor found issues")
			}
			return nil
		},
	}
}

// NewServiceRootCmd manages the launchd plist (macOS).
func NewServiceRootCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage launchd service (macOS)",
	}
	cmd.AddCommand(newServiceInstallCmd(cfgPath))
	cmd.AddCommand(newServiceUninstallCmd())
	cmd.AddCommand(newServiceStatusCmd())
	return cmd
}
