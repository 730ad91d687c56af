package doctor

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"livecap/internal/config"
)

const dialTimeout = 2 * time.Second

// Result represents a diagnostic check.
type Result struct {
	Name   string
	Pass   bool
	Detail string
}

// Run executes doctor checks.
func Run(ctx context.Context, cfg *config.Config) []Result {
	results := []Result{
		checkFile("config path", cfg.Paths.ConfigPath),
		checkBackend(ctx, cfg),
		checkWritableDir("output dir", cfg.Session.OutputDir),
		checkHookExecutable(cfg.Hook.Command),
	}
	if cfg.History.Enabled {
		results = append(results, checkWritableDir("history", filepath.Dir(cfg.History.Path)))
	}
	if cfg.Events.Enabled {
		results = append(results, checkEvents(ctx, cfg.Events.Brokers))
	}
	results = append(results, checkPortAudioPkgConfig(), checkPortAudio())
	return results
}

func checkFile(label, path string) Result {
	if path == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if _, err := os.Stat(os.ExpandEnv(path)); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: path}
}

func checkBackend(ctx context.Context, cfg *config.Config) Result {
	switch cfg.Backend.Kind {
	case config.BackendWhisper:
		r := checkFile("model file", cfg.ASR.ModelPath)
		if !r.Pass {
			r.Detail += " (run: livecap setup)"
		}
		return r
	case config.BackendHTTP:
		u, err := url.Parse(cfg.HTTP.URL)
		if err != nil || u.Host == "" {
			return Result{Name: "http backend", Pass: false, Detail: fmt.Sprintf("bad http.url %q", cfg.HTTP.URL)}
		}
		host := u.Host
		if u.Port() == "" {
			port := "80"
			if u.Scheme == "https" {
				port = "443"
			}
			host = net.JoinHostPort(u.Hostname(), port)
		}
		return checkReachable(ctx, "http backend", host)
	case config.BackendRPC:
		return checkReachable(ctx, "grpc backend", cfg.RPC.Addr)
	case config.BackendGoogle:
		if creds := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); creds != "" {
			return checkFile("google creds", creds)
		}
		return Result{Name: "google creds", Pass: true, Detail: "using application default credentials"}
	}
	return Result{Name: "backend", Pass: false, Detail: fmt.Sprintf("unknown backend %q", cfg.Backend.Kind)}
}

func checkReachable(ctx context.Context, label, addr string) Result {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	_ = conn.Close()
	return Result{Name: label, Pass: true, Detail: addr}
}

func checkEvents(ctx context.Context, brokers []string) Result {
	if len(brokers) == 0 {
		return Result{Name: "kafka", Pass: false, Detail: "events.brokers is empty"}
	}
	return checkReachable(ctx, "kafka", brokers[0])
}

// checkWritableDir creates dir if needed and probes it with a temp file.
func checkWritableDir(label, dir string) Result {
	if dir == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	dir = os.ExpandEnv(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	f, err := os.CreateTemp(dir, ".livecap-doctor-*")
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return Result{Name: label, Pass: true, Detail: dir}
}

func checkHookExecutable(cmd string) Result {
	label := "hook.command"
	if strings.TrimSpace(cmd) == "" {
		return Result{Name: label, Pass: true, Detail: "not set (optional)"}
	}
	path := os.ExpandEnv(strings.Fields(cmd)[0])
	// If contains a path separator, treat as explicit path.
	if strings.Contains(path, "/") || strings.Contains(path, "\\") {
		info, err := os.Stat(path)
		if err != nil {
			return Result{Name: label, Pass: false, Detail: err.Error()}
		}
		if info.IsDir() {
			return Result{Name: label, Pass: false, Detail: "is a directory; set hook.command to an executable file"}
		}
		if info.Mode().Perm()&0o111 == 0 {
			return Result{Name: label, Pass: false, Detail: "not executable; chmod +x or choose another command"}
		}
		return Result{Name: label, Pass: true, Detail: path}
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: resolved}
}

func checkPortAudioPkgConfig() Result {
	pkg, err := exec.LookPath("pkg-config")
	if err != nil {
		return Result{Name: "pkg-config", Pass: false, Detail: "pkg-config not found (brew install pkg-config)"}
	}
	cmd := exec.Command(pkg, "--exists", "portaudio-2.0")
	if err := cmd.Run(); err != nil {
		return Result{Name: "portaudio pkg", Pass: false, Detail: "portaudio-2.0 not found (brew install portaudio)"}
	}
	versionCmd := exec.Command(pkg, "--modversion", "portaudio-2.0")
	if out, err := versionCmd.Output(); err == nil {
		return Result{Name: "portaudio pkg", Pass: true, Detail: strings.TrimSpace(string(out))}
	}
	return Result{Name: "portaudio pkg", Pass: true, Detail: "found via pkg-config"}
}
