package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const bitDepth = 16

// EncodeWAV returns a PCM16 WAV file holding samples.
func EncodeWAV(samples []int16, sampleRate, channels int) ([]byte, error) {
	ws := &seekBuffer{}
	if err := encode(ws, samples, sampleRate, channels); err != nil {
		return nil, err
	}
	return ws.buf, nil
}

// EncodeChunk is EncodeWAV for a single chunk.
func EncodeChunk(c Chunk) ([]byte, error) {
	return EncodeWAV(c.Samples, c.SampleRate, c.Channels)
}

// WriteWAV writes samples to path, replacing it atomically.
func WriteWAV(path string, samples []int16, sampleRate, channels int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, samples, sampleRate, channels); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func encode(w io.WriteSeeker, samples []int16, sampleRate, channels int) error {
	enc := wav.NewEncoder(w, sampleRate, bitDepth, channels, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wav encode: %w", err)
	}
	return enc.Close()
}

// DecodeWAV reads a PCM WAV file into 16-bit samples.
func DecodeWAV(r io.ReadSeeker) (Chunk, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Chunk{}, errors.New("not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Chunk{}, fmt.Errorf("wav decode: %w", err)
	}
	shift := int(dec.BitDepth) - bitDepth
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		switch {
		case shift > 0:
			v >>= shift
		case shift < 0:
			v <<= -shift
		}
		samples[i] = int16(v)
	}
	return Chunk{
		Samples:    samples,
		Channels:   int(dec.NumChans),
		SampleRate: int(dec.SampleRate),
	}, nil
}

// ReadWAVFile decodes the WAV file at path.
func ReadWAVFile(path string) (Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return Chunk{}, err
	}
	defer f.Close()
	return DecodeWAV(f)
}

// DecodeWAVBytes decodes an in-memory WAV file.
func DecodeWAVBytes(b []byte) (Chunk, error) {
	return DecodeWAV(bytes.NewReader(b))
}

// seekBuffer is an in-memory io.WriteSeeker; the wav encoder seeks back to
// patch chunk sizes on Close.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + len(p)
	if end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}
	copy(s.buf[s.pos:], p)
	s.pos = end
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(s.pos) + offset
	case io.SeekEnd:
		abs = int64(len(s.buf)) + offset
	default:
		return 0, errors.New("seekBuffer: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("seekBuffer: negative position")
	}
	s.pos = int(abs)
	return abs, nil
}
