// Package audio models captured PCM chunks and the sources that produce them.
package audio

import (
	"encoding/binary"
	"sync"
)

// Chunk is one fixed-duration slice of interleaved 16-bit PCM.
type Chunk struct {
	Samples    []int16
	Channels   int
	SampleRate int
	// Offset is seconds since session start when recording of the chunk began.
	Offset float64
}

// Frames returns the number of sample frames (samples per channel).
func (c Chunk) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Duration returns the chunk length in seconds.
func (c Chunk) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(c.Frames()) / float64(c.SampleRate)
}

// Mono extracts the first channel as float32 in [-1, 1).
func (c Chunk) Mono() []float32 {
	ch := c.Channels
	if ch <= 0 {
		ch = 1
	}
	out := make([]float32, 0, len(c.Samples)/ch)
	for i := 0; i < len(c.Samples); i += ch {
		out = append(out, float32(c.Samples[i])/32768.0)
	}
	return out
}

// MonoInt16 extracts the first channel unchanged.
func (c Chunk) MonoInt16() []int16 {
	if c.Channels <= 1 {
		return c.Samples
	}
	out := make([]int16, 0, c.Frames())
	for i := 0; i < len(c.Samples); i += c.Channels {
		out = append(out, c.Samples[i])
	}
	return out
}

// Bytes returns the samples as little-endian PCM16.
func (c Chunk) Bytes() []byte {
	out := make([]byte, 2*len(c.Samples))
	for i, s := range c.Samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// Buffer retains every chunk of a session for the final recording export.
type Buffer struct {
	mu     sync.Mutex
	chunks []Chunk
}

// Append retains c.
func (b *Buffer) Append(c Chunk) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = append(b.chunks, c)
}

// Len reports the number of retained chunks.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// Samples concatenates every retained chunk.
func (b *Buffer) Samples() []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.chunks {
		n += len(c.Samples)
	}
	out := make([]int16, 0, n)
	for _, c := range b.chunks {
		out = append(out, c.Samples...)
	}
	return out
}

// Seconds returns the total retained audio length.
func (b *Buffer) Seconds() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var d float64
	for _, c := range b.chunks {
		d += c.Duration()
	}
	return d
}

// Clear drops every retained chunk.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = nil
}
