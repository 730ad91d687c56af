// Package capture runs the record → transcribe loop for one session.
package capture

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"livecap/internal/asr"
	"livecap/internal/audio"
	"livecap/internal/caption"

	"github.com/sirupsen/logrus"
)

// DefaultStartClamp absorbs startup jitter: earlier chunk starts are reported as 0.
const DefaultStartClamp = 100 * time.Millisecond

// Sink receives accepted captions. Push must not block.
type Sink interface {
	Push(rec caption.Record)
}

// Gate decides whether a chunk is worth transcribing.
type Gate interface {
	Voiced(c audio.Chunk) (bool, error)
}

// Observer is notified of per-chunk outcomes.
type Observer interface {
	ChunkRecorded(seconds float64)
	ChunkTranscribed(backend string, latency time.Duration)
	ChunkFailed(backend string)
	ChunkSilent()
	CaptionAccepted()
}

type nopObserver struct{}

func (nopObserver) ChunkRecorded(float64) {}
func (nopObserver) ChunkTranscribed(string, time.Duration) {}
func (nopObserver) ChunkFailed(string) {}
func (nopObserver) ChunkSilent() {}
func (nopObserver) CaptionAccepted() {}

// Options configures a Scheduler.
type Options struct {
	SampleRate int
	Channels   int
	ChunkSec   float64
	// MaxDuration caps accumulated transcription time; zero disables the cutoff.
	MaxDuration time.Duration
	StartClamp  time.Duration
	Fillers     []string
	Gate        Gate
	Observer    Observer
	// Elapsed returns time since session start. Defaults to the wall clock.
	Elapsed func() time.Duration
}

// Scheduler owns the worker goroutine of one recording session.
type Scheduler struct {
	opts    Options
	stream  audio.Stream
	backend asr.Backend
	ledger  *caption.Ledger
	buffer  *audio.Buffer
	sink    Sink
	log     *logrus.Entry

	stopOnce  sync.Once
	stop      chan struct{}
	startOnce sync.Once
	done      chan struct{}

	mu     sync.Mutex
	ttime  time.Duration
	cutoff bool
	chunks int
	err    error
}

// New prepares a scheduler. sink may be nil.
func New(stream audio.Stream, backend asr.Backend, ledger *caption.Ledger, buffer *audio.Buffer, sink Sink, opts Options, logger *logrus.Logger) *Scheduler {
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.StartClamp < 0 {
		opts.StartClamp = 0
	}
	return &Scheduler{
		opts:    opts,
		stream:  stream,
		backend: backend,
		ledger:  ledger,
		buffer:  buffer,
		sink:    sink,
		log:     logger.WithField("component", "capture"),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// SamplesPerChunk is channels * sample_rate * chunk_sec, rounded down to whole frames.
func (s *Scheduler) SamplesPerChunk() int {
	frames := int(float64(s.opts.SampleRate) * s.opts.ChunkSec)
	if frames < 1 {
		frames = 1
	}
	return frames * s.opts.Channels
}

// Start launches the worker. Later calls do nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		if s.opts.Elapsed == nil {
			began := time.Now()
			s.opts.Elapsed = func() time.Duration { return time.Since(began) }
		}
		go s.loop(ctx)
	})
}

// RequestStop asks the worker to exit after its current chunk. It never blocks
// and is safe to call any number of times.
func (s *Scheduler) RequestStop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Done is closed when the worker has exited.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// Wait blocks until the worker exits and returns its device error, if any.
func (s *Scheduler) Wait() error {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cutoff reports whether the worker stopped itself at the duration limit.
func (s *Scheduler) Cutoff() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cutoff
}

// TTime is the accumulated chunk wall time.
func (s *Scheduler) TTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttime
}

// Chunks is the number of chunks recorded so far.
func (s *Scheduler) Chunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks
}

func (s *Scheduler) stopping() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	n := s.SamplesPerChunk()
	for !s.stopping() && ctx.Err() == nil {
		start := s.opts.Elapsed()
		if start < s.opts.StartClamp {
			start = 0
		}
		samples, err := s.stream.Read(n)
		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			s.fail(err)
			return
		}
		if len(samples) > 0 {
			s.process(ctx, start, samples)
		}
		if eof {
			s.log.Info("input exhausted")
			return
		}
	}
}

func (s *Scheduler) fail(err error) {
	var de *audio.DeviceError
	if !errors.As(err, &de) {
		err = &audio.DeviceError{Op: "read", Err: err}
	}
	s.log.Errorf("capture stopped: %v", err)
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Scheduler) process(ctx context.Context, start time.Duration, samples []int16) {
	chunk := audio.Chunk{
		Samples:    samples,
		Channels:   s.opts.Channels,
		SampleRate: s.opts.SampleRate,
		Offset:     start.Seconds(),
	}
	s.buffer.Append(chunk)
	s.opts.Observer.ChunkRecorded(chunk.Duration())

	text, skipped, err := s.transcribe(ctx, chunk)
	end := s.opts.Elapsed()

	s.mu.Lock()
	s.chunks++
	if end > start {
		s.ttime += end - start
	}
	ttime := s.ttime
	s.mu.Unlock()

	switch {
	case err != nil:
		s.log.WithField("offset", chunk.Offset).Warnf("chunk dropped: %v", err)
		s.opts.Observer.ChunkFailed(s.backend.Name())
	case skipped || asr.IsFiller(text, s.opts.Fillers):
		s.opts.Observer.ChunkSilent()
	default:
		rec := s.ledger.Append(caption.Record{Start: start.Seconds(), End: end.Seconds(), Text: text})
		if s.sink != nil {
			s.sink.Push(rec)
		}
		s.opts.Observer.CaptionAccepted()
	}

	if s.opts.MaxDuration > 0 && ttime > s.opts.MaxDuration {
		s.mu.Lock()
		s.cutoff = true
		s.mu.Unlock()
		s.log.Infof("max duration %s reached; stopping", s.opts.MaxDuration)
		s.RequestStop()
	}
}

// transcribe runs the gate and then the backend. skipped is true when the gate
// judged the chunk silent.
func (s *Scheduler) transcribe(ctx context.Context, chunk audio.Chunk) (text string, skipped bool, err error) {
	if s.opts.Gate != nil {
		voiced, gerr := s.opts.Gate.Voiced(chunk)
		if gerr != nil {
			s.log.Debugf("vad: %v", gerr)
		} else if !voiced {
			return "", true, nil
		}
	}
	began := time.Now()
	text, err = s.backend.Transcribe(ctx, chunk)
	if err == nil {
		s.opts.Observer.ChunkTranscribed(s.backend.Name(), time.Since(began))
	}
	return text, false, err
}
