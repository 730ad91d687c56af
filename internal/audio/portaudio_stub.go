//go:build !whisper

package audio

import "errors"

var errNoPortAudio = errors.New("microphone capture unavailable: build with -tags whisper")

// Mic is unavailable without the whisper build tag.
type Mic struct{}

// NewMic always fails in this build.
func NewMic() (*Mic, error) {
	return nil, &DeviceError{Op: "init", Err: errNoPortAudio}
}

func (m *Mic) Close() error { return nil }

func (m *Mic) Devices() ([]Device, error) {
	return nil, &DeviceError{Op: "list", Err: errNoPortAudio}
}

func (m *Mic) Open(id string, sampleRate, channels int) (Stream, error) {
	return nil, &DeviceError{Device: id, Op: "open", Err: errNoPortAudio}
}
