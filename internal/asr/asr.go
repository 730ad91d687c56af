// Package asr turns captured audio chunks into text.
package asr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"livecap/internal/audio"
	"livecap/internal/config"

	"github.com/sirupsen/logrus"
)

// ErrNotReady is returned by Transcribe before a backend has finished initializing.
var ErrNotReady = errors.New("transcription backend not ready")

// BackendError wraps a single failed transcription.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Backend converts one chunk into trimmed text.
type Backend interface {
	Name() string
	Ready() bool
	Transcribe(ctx context.Context, chunk audio.Chunk) (string, error)
	Close() error
}

// DefaultFillers are the placeholder outputs treated as silence.
var DefaultFillers = []string{"you", "[BLANK_AUDIO]"}

// IsFiller reports whether text is empty or a lone filler token.
func IsFiller(text string, tokens []string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return true
	}
	for _, tok := range tokens {
		if strings.EqualFold(t, strings.TrimSpace(tok)) {
			return true
		}
	}
	return false
}

// New returns the backend selected by backend.kind. Local models start
// loading in the background; callers check Ready before starting a session.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (Backend, error) {
	switch cfg.Backend.Kind {
	case config.BackendWhisper:
		l := NewLocal("whisper", WhisperLoader(cfg), logger)
		l.Init(ctx)
		return l, nil
	case config.BackendHTTP:
		return NewHTTP(cfg.HTTP.URL, cfg.HTTP.Temperature, seconds(cfg.HTTP.TimeoutSec)), nil
	case config.BackendRPC:
		return DialGRPC(cfg.RPC.Addr, seconds(cfg.RPC.TimeoutSec))
	case config.BackendGoogle:
		return NewGoogle(ctx, cfg.Google.Language)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend.Kind)
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
