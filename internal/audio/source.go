package audio

import (
	"errors"
	"fmt"
)

// ErrNoDevice is returned when no input device matches.
var ErrNoDevice = errors.New("no input devices found")

// Device describes one capture device.
type Device struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Channels  int     `json:"channels"`
	LatencyMs float64 `json:"latency_ms"`
	Default   bool    `json:"default"`
}

// Source enumerates and opens capture devices.
type Source interface {
	Devices() ([]Device, error)
	Open(id string, sampleRate, channels int) (Stream, error)
}

// Stream is an open capture stream.
type Stream interface {
	// Read blocks until n interleaved samples are available. At the end of a
	// finite input it returns the remaining samples with io.EOF.
	Read(n int) ([]int16, error)
	Close() error
}

// DeviceError reports a capture device that could not be opened or read.
type DeviceError struct {
	Device string
	Op     string
	Err    error
}

func (e *DeviceError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("audio %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("audio %s %q: %v", e.Op, e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }
