//go:build whisper

package audio

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Mic captures from PortAudio input devices.
type Mic struct {
	once sync.Once
}

// NewMic initializes PortAudio. Call Close when done.
func NewMic() (*Mic, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, &DeviceError{Op: "init", Err: err}
	}
	return &Mic{}, nil
}

// Close terminates PortAudio.
func (m *Mic) Close() error {
	var err error
	m.once.Do(func() { err = portaudio.Terminate() })
	return err
}

// Devices lists input-capable devices.
func (m *Mic) Devices() ([]Device, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, &DeviceError{Op: "list", Err: err}
	}
	def, _ := portaudio.DefaultInputDevice()
	var out []Device
	for i, d := range devs {
		if d.MaxInputChannels <= 0 {
			continue
		}
		out = append(out, Device{
			ID:        strconv.Itoa(i),
			Name:      d.Name,
			Channels:  d.MaxInputChannels,
			LatencyMs: float64(d.DefaultLowInputLatency.Microseconds()) / 1000,
			Default:   def != nil && def.Name == d.Name,
		})
	}
	return out, nil
}

// Open starts capturing from the device matching id: an index from Devices,
// a name substring, or empty for the system default.
func (m *Mic) Open(id string, sampleRate, channels int) (Stream, error) {
	dev, err := selectDevice(id)
	if err != nil {
		return nil, &DeviceError{Device: id, Op: "open", Err: err}
	}
	frames := sampleRate / 10
	if frames <= 0 {
		frames = 1
	}
	s := &micStream{buf: make([]int16, frames*channels), device: dev.Name}
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: frames,
	}, &s.buf)
	if err != nil {
		return nil, &DeviceError{Device: dev.Name, Op: "open", Err: err}
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, &DeviceError{Device: dev.Name, Op: "start", Err: err}
	}
	s.stream = stream
	return s, nil
}

type micStream struct {
	stream  *portaudio.Stream
	buf     []int16
	pending []int16
	device  string
}

func (s *micStream) Read(n int) ([]int16, error) {
	out := make([]int16, 0, n)
	if len(s.pending) > 0 {
		take := min(n, len(s.pending))
		out = append(out, s.pending[:take]...)
		s.pending = s.pending[take:]
	}
	for len(out) < n {
		if err := s.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			return out, &DeviceError{Device: s.device, Op: "read", Err: err}
		}
		need := n - len(out)
		if need >= len(s.buf) {
			out = append(out, s.buf...)
			continue
		}
		out = append(out, s.buf[:need]...)
		s.pending = append(s.pending[:0], s.buf[need:]...)
	}
	return out, nil
}

func (s *micStream) Close() error {
	_ = s.stream.Stop()
	return s.stream.Close()
}

func selectDevice(preferred string) (*portaudio.DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if preferred != "" {
		if i, err := strconv.Atoi(preferred); err == nil && i >= 0 && i < len(devs) && devs[i].MaxInputChannels > 0 {
			return devs[i], nil
		}
		for _, d := range devs {
			if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), strings.ToLower(preferred)) {
				return d, nil
			}
		}
		return nil, fmt.Errorf("no input device matches %q", preferred)
	}
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		return def, nil
	}
	for _, d := range devs {
		if d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, ErrNoDevice
}
