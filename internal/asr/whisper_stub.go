//go:build !whisper

package asr

import (
	"context"
	"errors"

	"livecap/internal/config"
)

// WhisperLoader fails in builds without the whisper tag.
func WhisperLoader(cfg *config.Config) Loader {
	return func(ctx context.Context) (Model, error) {
		return nil, errors.New("whisper support not built; rebuild with -tags whisper or set backend.kind")
	}
}
