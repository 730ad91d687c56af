package hook

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"livecap/internal/config"
	"livecap/internal/session"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// Job describes a saved recording handed to the hook command.
type Job struct {
	SessionID string
	Audio     string
	TXT       string
	SRT       string
	TSV       string
	VTT       string
	Captions  int
	Seconds   float64
	Timestamp time.Time
}

// JobFromResult converts a save outcome into a hook job.
func JobFromResult(res session.SaveResult) Job {
	return Job{
		SessionID: res.SessionID,
		Audio:     res.Files.Audio,
		TXT:       res.Files.TXT,
		SRT:       res.Files.SRT,
		TSV:       res.Files.TSV,
		VTT:       res.Files.VTT,
		Captions:  res.Captions,
		Seconds:   res.Seconds,
		Timestamp: res.Saved,
	}
}

// Runner executes the configured post-save command.
type Runner struct {
	cfg      *config.Config
	logger   *logrus.Logger
	hostname string
}

func NewRunner(cfg *config.Config, logger *logrus.Logger) *Runner {
	host, _ := os.Hostname()
	return &Runner{
		cfg:      cfg,
		logger:   logger,
		hostname: host,
	}
}

// Enabled reports whether hook.command is set.
func (r *Runner) Enabled() bool {
	return strings.TrimSpace(r.cfg.Hook.Command) != ""
}

// AfterSave runs the hook for a saved recording. It does nothing when no
// command is configured.
func (r *Runner) AfterSave(ctx context.Context, res session.SaveResult) error {
	if !r.Enabled() {
		return nil
	}
	return r.Run(ctx, JobFromResult(res))
}

// Run executes the command with the audio path as its final argument and the
// other paths in the environment.
func (r *Runner) Run(ctx context.Context, job Job) error {
	name, args, err := r.commandLine()
	if err != nil {
		return err
	}
	args = append(args, job.Audio)

	runCtx := ctx
	var cancel context.CancelFunc
	if r.cfg.Hook.TimeoutSec > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(float64(time.Second)*r.cfg.Hook.TimeoutSec))
		defer cancel()
	}
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Env = os.Environ()
	for k, v := range r.cfg.Hook.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = append(cmd.Env,
		"LIVECAP_SESSION="+job.SessionID,
		"LIVECAP_AUDIO="+job.Audio,
		"LIVECAP_TXT="+job.TXT,
		"LIVECAP_SRT="+job.SRT,
		"LIVECAP_TSV="+job.TSV,
		"LIVECAP_VTT="+job.VTT,
		"LIVECAP_CAPTIONS="+strconv.Itoa(job.Captions),
		"LIVECAP_SECONDS="+strconv.FormatFloat(job.Seconds, 'f', 3, 64),
		"LIVECAP_HOST="+r.hostname,
	)

	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		r.logger.Infof("hook output: %s", strings.TrimSpace(string(out)))
	}
	if err != nil {
		return fmt.Errorf("hook failed: %w", err)
	}
	return nil
}

// commandLine returns hook.command and hook.args. A command given as one
// string with arguments is split shell-style when hook.args is empty.
func (r *Runner) commandLine() (string, []string, error) {
	raw := strings.TrimSpace(r.cfg.Hook.Command)
	if raw == "" {
		return "", nil, fmt.Errorf("no hook.command configured")
	}
	if len(r.cfg.Hook.Args) > 0 {
		return raw, append([]string{}, r.cfg.Hook.Args...), nil
	}
	parts, err := ParseArgs(raw)
	if err != nil {
		return "", nil, fmt.Errorf("parse hook.command: %w", err)
	}
	return parts[0], parts[1:], nil
}

// ParseArgs splits a shell-style argument string.
func ParseArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	return shlex.Split(raw)
}
