//go:build whisper

package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"livecap/internal/config"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperLoader loads the whisper.cpp model at asr.model_path.
func WhisperLoader(cfg *config.Config) Loader {
	path := cfg.ASR.ModelPath
	lang := strings.TrimSpace(cfg.ASR.Language)
	threads := cfg.ASR.Threads
	return func(ctx context.Context) (Model, error) {
		m, err := whisper.New(path)
		if err != nil {
			return nil, fmt.Errorf("load model %s: %w", path, err)
		}
		return &whisperModel{model: m, language: lang, threads: threads}, nil
	}
}

type whisperModel struct {
	model    whisper.Model
	language string
	threads  int
}

func (w *whisperModel) Infer(ctx context.Context, samples []float32) (string, error) {
	wctx, err := w.model.NewContext()
	if err != nil {
		return "", err
	}
	if w.threads > 0 {
		wctx.SetThreads(uint(w.threads))
	}
	if w.language != "" {
		if err := wctx.SetLanguage(w.language); err != nil {
			return "", fmt.Errorf("set language: %w", err)
		}
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", err
	}
	var b strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		seg, err := wctx.NextSegment()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
		b.WriteString(seg.Text)
		if !strings.HasSuffix(seg.Text, " ") {
			b.WriteByte(' ')
		}
	}
	return b.String(), nil
}

func (w *whisperModel) Close() error { return w.model.Close() }
