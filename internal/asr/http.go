package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"livecap/internal/audio"

	"github.com/google/uuid"
)

// HTTP posts each chunk to a whisper.cpp-style /inference endpoint.
type HTTP struct {
	URL         string
	Temperature float64
	Client      *http.Client
}

// NewHTTP returns an HTTP backend. A zero timeout means no client timeout.
func NewHTTP(url string, temperature float64, timeout time.Duration) *HTTP {
	return &HTTP{URL: url, Temperature: temperature, Client: &http.Client{Timeout: timeout}}
}

func (h *HTTP) Name() string { return "http" }

func (h *HTTP) Ready() bool { return h.URL != "" }

func (h *HTTP) Close() error {
	h.Client.CloseIdleConnections()
	return nil
}

type inferenceResponse struct {
	Text string `json:"text"`
}

// Transcribe makes one POST; any failure is a *BackendError.
func (h *HTTP) Transcribe(ctx context.Context, chunk audio.Chunk) (string, error) {
	wav, err := audio.EncodeChunk(chunk)
	if err != nil {
		return "", h.fail(err)
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "chunk.wav")
	if err != nil {
		return "", h.fail(err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", h.fail(err)
	}
	_ = mw.WriteField("temperature", strconv.FormatFloat(h.Temperature, 'f', -1, 64))
	_ = mw.WriteField("response-format", "json")
	if err := mw.Close(); err != nil {
		return "", h.fail(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, &body)
	if err != nil {
		return "", h.fail(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Correlation-ID", uuid.NewString())

	resp, err := h.Client.Do(req)
	if err != nil {
		return "", h.fail(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", h.fail(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}
	var out inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", h.fail(fmt.Errorf("decode response: %w", err))
	}
	return strings.TrimSpace(out.Text), nil
}

func (h *HTTP) fail(err error) error {
	return &BackendError{Backend: h.Name(), Err: err}
}
