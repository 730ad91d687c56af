package audio

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"
)

// FileSource serves a decoded WAV file as a single capture device.
type FileSource struct {
	Path string
	clip Chunk
}

// NewFileSource decodes path up front.
func NewFileSource(path string) (*FileSource, error) {
	clip, err := ReadWAVFile(path)
	if err != nil {
		return nil, &DeviceError{Device: path, Op: "open", Err: err}
	}
	return &FileSource{Path: path, clip: clip}, nil
}

// Format returns the file's sample rate and channel count.
func (s *FileSource) Format() (sampleRate, channels int) {
	return s.clip.SampleRate, s.clip.Channels
}

// Devices lists the file as the only device.
func (s *FileSource) Devices() ([]Device, error) {
	return []Device{{ID: s.Path, Name: filepath.Base(s.Path), Channels: s.clip.Channels, Default: true}}, nil
}

// Open returns a stream over the file. The requested format must match.
func (s *FileSource) Open(id string, sampleRate, channels int) (Stream, error) {
	if sampleRate != s.clip.SampleRate || channels != s.clip.Channels {
		return nil, &DeviceError{Device: s.Path, Op: "open", Err: fmt.Errorf(
			"file is %d Hz/%d ch, requested %d Hz/%d ch", s.clip.SampleRate, s.clip.Channels, sampleRate, channels)}
	}
	return &FileStream{clip: s.clip}, nil
}

// FileStream reads a decoded clip sequentially. Position doubles as the
// session clock for offline runs.
type FileStream struct {
	mu   sync.Mutex
	clip Chunk
	pos  int
}

// Read returns the next n samples, or the tail with io.EOF.
func (f *FileStream) Read(n int) ([]int16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos >= len(f.clip.Samples) {
		return nil, io.EOF
	}
	end := f.pos + n
	if end >= len(f.clip.Samples) {
		out := append([]int16(nil), f.clip.Samples[f.pos:]...)
		f.pos = len(f.clip.Samples)
		return out, io.EOF
	}
	out := append([]int16(nil), f.clip.Samples[f.pos:end]...)
	f.pos = end
	return out, nil
}

// Position is how much audio has been consumed.
func (f *FileStream) Position() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clip.SampleRate <= 0 || f.clip.Channels <= 0 {
		return 0
	}
	frames := f.pos / f.clip.Channels
	return time.Duration(float64(frames) / float64(f.clip.SampleRate) * float64(time.Second))
}

// Close is a no-op.
func (f *FileStream) Close() error { return nil }
