// Package vad skips chunks that carry no speech before they reach a backend.
package vad

import (
	"encoding/binary"
	"fmt"

	"livecap/internal/audio"
)

// Classifier reports whether one PCM16 frame holds voice.
type Classifier func(sampleRate int, frame []byte) (bool, error)

// Detector splits a chunk into fixed frames and counts voiced ones.
type Detector struct {
	FrameMS         int
	MinVoicedFrames int
	classify        Classifier
}

// NewDetector wraps classify. frameMS must be 10, 20 or 30.
func NewDetector(frameMS, minVoiced int, classify Classifier) (*Detector, error) {
	switch frameMS {
	case 10, 20, 30:
	default:
		return nil, fmt.Errorf("vad.frame_ms must be 10, 20, or 30 (got %d)", frameMS)
	}
	if minVoiced < 1 {
		minVoiced = 1
	}
	return &Detector{FrameMS: frameMS, MinVoicedFrames: minVoiced, classify: classify}, nil
}

// Voiced reports whether the first channel of c has at least MinVoicedFrames voiced frames.
func (d *Detector) Voiced(c audio.Chunk) (bool, error) {
	if err := checkRate(c.SampleRate); err != nil {
		return false, err
	}
	mono := c.MonoInt16()
	n := c.SampleRate * d.FrameMS / 1000
	frame := make([]byte, 2*n)
	voiced := 0
	for off := 0; off+n <= len(mono); off += n {
		for i, s := range mono[off : off+n] {
			binary.LittleEndian.PutUint16(frame[2*i:], uint16(s))
		}
		ok, err := d.classify(c.SampleRate, frame)
		if err != nil {
			return false, err
		}
		if ok {
			voiced++
			if voiced >= d.MinVoicedFrames {
				return true, nil
			}
		}
	}
	return false, nil
}

func checkRate(rate int) error {
	switch rate {
	case 8000, 16000, 32000, 48000:
		return nil
	}
	return fmt.Errorf("sample_rate must be 8k/16k/32k/48k for webrtc VAD (got %d)", rate)
}
