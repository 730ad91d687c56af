package asr

import (
	"context"
	"errors"
	"testing"

	"livecap/internal/audio"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
)

type fakeRecognizer struct {
	req  *speechpb.RecognizeRequest
	resp *speechpb.RecognizeResponse
	err  error
}

func (f *fakeRecognizer) Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error) {
	f.req = req
	return f.resp, f.err
}

func (f *fakeRecognizer) Close() error { return nil }

func TestGoogleJoinsResults(t *testing.T) {
	fake := &fakeRecognizer{resp: &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "hello "}}},
		{},
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " world"}, {Transcript: "word"}}},
	}}}
	g := &Google{client: fake, language: "en-US"}
	text, err := g.Transcribe(context.Background(), audio.Chunk{Samples: []int16{1, 2}, Channels: 1, SampleRate: 16000})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("text = %q", text)
	}
	cfg := fake.req.GetConfig()
	if cfg.GetEncoding() != speechpb.RecognitionConfig_LINEAR16 || cfg.GetSampleRateHertz() != 16000 || cfg.GetLanguageCode() != "en-US" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(fake.req.GetAudio().GetContent()) != 4 {
		t.Fatalf("content length %d", len(fake.req.GetAudio().GetContent()))
	}
}

func TestGoogleErrorWrapped(t *testing.T) {
	g := &Google{client: &fakeRecognizer{err: errors.New("quota")}}
	_, err := g.Transcribe(context.Background(), audio.Chunk{Samples: []int16{1}, Channels: 1, SampleRate: 16000})
	var be *BackendError
	if !errors.As(err, &be) || be.Backend != "google" {
		t.Fatalf("expected google BackendError, got %v", err)
	}
}
