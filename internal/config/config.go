package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultSampleRate    = 16000
	defaultChunkSec      = 2.0
	defaultMaxDuration   = 120 * 60
	defaultStartClamp    = 0.1
	defaultStatusTail    = 10
	defaultInferenceURL  = "http://127.0.0.1:7777/inference"
	defaultStateDirLinux = ".local/state/livecap"
	defaultConfigDir     = ".config/livecap"
)

// Backend kinds accepted in backend.kind.
const (
	BackendWhisper = "whisper"
	BackendHTTP    = "http"
	BackendRPC     = "grpc"
	BackendGoogle  = "google"
)

// Config holds user configuration loaded from TOML.
type Config struct {
	Audio struct {
		DeviceName string  `toml:"device_name"`
		SampleRate int     `toml:"sample_rate"`
		Channels   int     `toml:"channels"`
		ChunkSec   float64 `toml:"chunk_sec"`
	} `toml:"audio"`

	Session struct {
		MaxDurationSec float64  `toml:"max_duration_sec"`
		StartClampSec  float64  `toml:"start_clamp_sec"`
		FillerTokens   []string `toml:"filler_tokens"`
		OutputDir      string   `toml:"output_dir"`
		Overwrite      string   `toml:"overwrite"` // ask, always, never
	} `toml:"session"`

	VAD struct {
		Enabled         bool `toml:"enabled"`
		Aggressiveness  int  `toml:"aggressiveness"`
		FrameMS         int  `toml:"frame_ms"`
		MinVoicedFrames int  `toml:"min_voiced_frames"`
	} `toml:"vad"`

	Backend struct {
		Kind string `toml:"kind"` // whisper, http, grpc, google
	} `toml:"backend"`

	ASR struct {
		ModelPath string `toml:"model_path"`
		Language  string `toml:"language"`
		Threads   int    `toml:"threads"`
	} `toml:"asr"`

	HTTP struct {
		URL         string  `toml:"url"`
		Temperature float64 `toml:"temperature"`
		TimeoutSec  float64 `toml:"timeout_sec"`
	} `toml:"http"`

	RPC struct {
		Addr       string  `toml:"addr"`
		ListenAddr string  `toml:"listen_addr"`
		TimeoutSec float64 `toml:"timeout_sec"`
	} `toml:"rpc"`

	Google struct {
		Language string `toml:"language"`
	} `toml:"google"`

	Hook struct {
		Command    string            `toml:"command"`
		Args       []string          `toml:"args"`
		TimeoutSec float64           `toml:"timeout_sec"`
		Env        map[string]string `toml:"env"`
	} `toml:"hook"`

	Events struct {
		Enabled   bool     `toml:"enabled"`
		Brokers   []string `toml:"brokers"`
		Topic     string   `toml:"topic"`
		Principal string   `toml:"principal"`
	} `toml:"events"`

	History struct {
		Enabled bool   `toml:"enabled"`
		Path    string `toml:"path"`
	} `toml:"history"`

	Live struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
	} `toml:"live"`

	Logging struct {
		Level  string `toml:"level"`  // debug, info, warn, error
		Format string `toml:"format"` // text, json
		Stdout bool   `toml:"stdout"`

		MaxSizeMB  int `toml:"max_size_mb"`
		MaxBackups int `toml:"max_backups"`
		MaxAgeDays int `toml:"max_age_days"`
	} `toml:"logging"`

	Paths struct {
		StateDir       string `toml:"state_dir"`
		LogPath        string `toml:"log_path"`
		TranscriptPath string `toml:"transcript_path"`
		SocketPath     string `toml:"socket_path"`
		PidPath        string `toml:"pid_path"`
		ModelDir       string `toml:"model_dir"`
		ConfigPath     string `toml:"-"`
	} `toml:"paths"`

	UI struct {
		StatusTail int `toml:"status_tail"`
	} `toml:"ui"`

	Metrics struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
	} `toml:"metrics"`

	Transcripts struct {
		Enabled bool `toml:"enabled"`
	} `toml:"transcripts"`
}

// Default returns Config populated with defaults.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	stateDir := filepath.Join(home, defaultStateDirLinux)
	// macOS prefers ~/Library/Application Support/livecap for state/logs
	if isMac() {
		stateDir = filepath.Join(home, "Library", "Application Support", "livecap")
	}

	cfg := &Config{}

	cfg.Audio.SampleRate = defaultSampleRate
	cfg.Audio.Channels = 1
	cfg.Audio.ChunkSec = defaultChunkSec

	cfg.Session.MaxDurationSec = defaultMaxDuration
	cfg.Session.StartClampSec = defaultStartClamp
	cfg.Session.FillerTokens = []string{"you", "[BLANK_AUDIO]"}
	cfg.Session.OutputDir = filepath.Join(home, "Recordings")
	cfg.Session.Overwrite = "ask"

	cfg.VAD.Enabled = false
	cfg.VAD.Aggressiveness = 2
	cfg.VAD.FrameMS = 20
	cfg.VAD.MinVoicedFrames = 5

	cfg.Backend.Kind = BackendWhisper

	cfg.Paths.ModelDir = filepath.Join(stateDir, "models")
	cfg.ASR.ModelPath = filepath.Join(cfg.Paths.ModelDir, "ggml-small.en.bin")
	cfg.ASR.Language = "en"
	cfg.ASR.Threads = runtime.NumCPU()

	cfg.HTTP.URL = defaultInferenceURL
	cfg.HTTP.Temperature = 0.2
	cfg.HTTP.TimeoutSec = 30

	cfg.RPC.Addr = "127.0.0.1:7860"
	cfg.RPC.ListenAddr = "127.0.0.1:7860"
	cfg.RPC.TimeoutSec = 30

	cfg.Google.Language = "en-US"

	cfg.Hook.TimeoutSec = 10
	cfg.Hook.Env = map[string]string{}

	cfg.Events.Enabled = false
	cfg.Events.Brokers = []string{"localhost:9092"}
	cfg.Events.Topic = "livecap.caption.final"
	cfg.Events.Principal = "livecap"

	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(stateDir, "history.sqlite")

	cfg.Live.Enabled = false
	cfg.Live.Addr = "127.0.0.1:9318"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"
	cfg.Logging.MaxSizeMB = 20
	cfg.Logging.MaxBackups = 3
	cfg.Logging.MaxAgeDays = 30

	cfg.Paths.StateDir = stateDir
	cfg.Paths.LogPath = filepath.Join(stateDir, "livecap.log")
	cfg.Paths.TranscriptPath = filepath.Join(stateDir, "captions.log")
	cfg.Paths.SocketPath = filepath.Join(stateDir, "livecap.sock")
	cfg.Paths.PidPath = filepath.Join(stateDir, "livecap.pid")

	cfg.UI.StatusTail = defaultStatusTail

	cfg.Metrics.Enabled = false
	cfg.Metrics.Addr = "127.0.0.1:9317"

	cfg.Transcripts.Enabled = true

	return cfg, nil
}

// Load loads config from file, applying defaults.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, defaultConfigDir, "config.toml")
	}

	// Read if exists; otherwise write template.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := Save(cfg, path); err != nil {
				return nil, err
			}
			cfg.Paths.ConfigPath = path
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Paths.ConfigPath = path
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

// Validate rejects settings the capture pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive (got %d)", c.Audio.SampleRate)
	}
	if c.Audio.Channels <= 0 {
		return fmt.Errorf("audio.channels must be positive (got %d)", c.Audio.Channels)
	}
	if c.Audio.ChunkSec <= 0 {
		return fmt.Errorf("audio.chunk_sec must be positive (got %g)", c.Audio.ChunkSec)
	}
	switch c.Backend.Kind {
	case BackendWhisper, BackendHTTP, BackendRPC, BackendGoogle:
	default:
		return fmt.Errorf("backend.kind must be one of whisper, http, grpc, google (got %q)", c.Backend.Kind)
	}
	switch strings.ToLower(c.Session.Overwrite) {
	case "ask", "always", "never":
	default:
		return fmt.Errorf("session.overwrite must be ask, always or never (got %q)", c.Session.Overwrite)
	}
	return nil
}

// MaxDuration is the cutoff on accumulated transcription time.
func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.Session.MaxDurationSec * float64(time.Second))
}

func isMac() bool {
	return runtime.GOOS == "darwin"
}

// MustStatePaths ensures state dirs exist.
func MustStatePaths(cfg *Config) error {
	for _, p := range []string{cfg.Paths.StateDir, filepath.Dir(cfg.Paths.LogPath), filepath.Dir(cfg.Paths.TranscriptPath)} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LIVECAP_BACKEND"); v != "" {
		cfg.Backend.Kind = strings.ToLower(v)
	}
	if v := os.Getenv("LIVECAP_HTTP_URL"); v != "" {
		cfg.HTTP.URL = v
	}
	if v := os.Getenv("LIVECAP_RPC_ADDR"); v != "" {
		cfg.RPC.Addr = v
	}
	if v := os.Getenv("LIVECAP_MAX_DURATION_SEC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Session.MaxDurationSec = f
		}
	}
	if v := os.Getenv("LIVECAP_OUTPUT_DIR"); v != "" {
		cfg.Session.OutputDir = v
	}
	if v := os.Getenv("LIVECAP_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
		cfg.Metrics.Enabled = true
	}
	if v := os.Getenv("LIVECAP_LIVE_ADDR"); v != "" {
		cfg.Live.Addr = v
		cfg.Live.Enabled = true
	}
	if v := os.Getenv("LIVECAP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LIVECAP_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("LIVECAP_TRANSCRIPTS_ENABLED"); v != "" {
		cfg.Transcripts.Enabled = v != "0" && strings.ToLower(v) != "false"
	}
}
