package asr

import (
	"context"
	"fmt"
	"strings"

	"livecap/internal/audio"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
)

type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// Google sends each chunk to Cloud Speech-to-Text as a synchronous request.
type Google struct {
	client   recognizer
	language string
}

// NewGoogle uses application default credentials.
func NewGoogle(ctx context.Context, language string) (*Google, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return &Google{client: c, language: language}, nil
}

func (g *Google) Name() string { return "google" }

func (g *Google) Ready() bool { return g.client != nil }

func (g *Google) Close() error { return g.client.Close() }

func (g *Google) Transcribe(ctx context.Context, chunk audio.Chunk) (string, error) {
	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:          speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:   int32(chunk.SampleRate),
			AudioChannelCount: int32(chunk.Channels),
			LanguageCode:      g.language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: chunk.Bytes()},
		},
	})
	if err != nil {
		return "", &BackendError{Backend: g.Name(), Err: err}
	}
	var parts []string
	for _, r := range resp.GetResults() {
		if alts := r.GetAlternatives(); len(alts) > 0 {
			parts = append(parts, strings.TrimSpace(alts[0].GetTranscript()))
		}
	}
	return strings.TrimSpace(strings.Join(parts, " ")), nil
}
