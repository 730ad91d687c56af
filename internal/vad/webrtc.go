//go:build whisper

package vad

import (
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

// NewWebRTC returns a Detector backed by the WebRTC voice activity detector.
func NewWebRTC(aggressiveness, frameMS, minVoiced int) (*Detector, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("vad init: %w", err)
	}
	if err := v.SetMode(aggressiveness); err != nil {
		return nil, fmt.Errorf("vad mode: %w", err)
	}
	return NewDetector(frameMS, minVoiced, v.Process)
}
