//go:build !whisper

package vad

import "errors"

// NewWebRTC is unavailable without the whisper build tag.
func NewWebRTC(aggressiveness, frameMS, minVoiced int) (*Detector, error) {
	return nil, errors.New("voice activity detection unavailable: build with -tags whisper")
}
