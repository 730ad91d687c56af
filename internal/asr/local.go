package asr

import (
	"context"
	"errors"
	"strings"
	"sync"

	"livecap/internal/audio"

	"github.com/sirupsen/logrus"
)

// ModelSampleRate is the rate local models expect.
const ModelSampleRate = 16000

// State is the lifecycle of a local model.
type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Model runs inference on mono float32 samples at ModelSampleRate.
type Model interface {
	Infer(ctx context.Context, samples []float32) (string, error)
	Close() error
}

// Loader loads a Model. It may block for a long time.
type Loader func(ctx context.Context) (Model, error)

var errClosed = errors.New("backend closed")

// Local is an in-process model backend with an explicit init lifecycle.
type Local struct {
	name   string
	load   Loader
	logger *logrus.Logger

	initOnce sync.Once
	done     chan struct{}

	mu     sync.Mutex
	state  State
	model  Model
	err    error
	closed bool

	infer sync.Mutex
}

// NewLocal wraps load. Nothing is loaded until Init.
func NewLocal(name string, load Loader, logger *logrus.Logger) *Local {
	return &Local{name: name, load: load, logger: logger, done: make(chan struct{})}
}

// Init starts loading the model on its own goroutine. Later calls do nothing.
func (l *Local) Init(ctx context.Context) {
	l.initOnce.Do(func() {
		l.mu.Lock()
		l.state = Initializing
		l.mu.Unlock()
		go l.run(ctx)
	})
}

func (l *Local) run(ctx context.Context) {
	defer close(l.done)
	m, err := l.load(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case err != nil:
		l.state = Failed
		l.err = err
		l.logger.WithField("backend", l.name).Errorf("model load failed: %v", err)
	case l.closed:
		_ = m.Close()
		l.state = Failed
		l.err = errClosed
	default:
		l.model = m
		l.state = Ready
		l.logger.WithField("backend", l.name).Info("model ready")
	}
}

// Wait blocks until loading finishes and returns the load error, if any.
func (l *Local) Wait(ctx context.Context) error {
	select {
	case <-l.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// State reports the lifecycle state.
func (l *Local) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err returns the load failure once State is Failed.
func (l *Local) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Local) Name() string { return l.name }

func (l *Local) Ready() bool { return l.State() == Ready }

// Transcribe downmixes and resamples chunk, then runs the model. Calls are
// serialized with each other and with Close.
func (l *Local) Transcribe(ctx context.Context, chunk audio.Chunk) (string, error) {
	l.infer.Lock()
	defer l.infer.Unlock()
	l.mu.Lock()
	m, state := l.model, l.state
	l.mu.Unlock()
	if state != Ready || m == nil {
		return "", ErrNotReady
	}
	samples := resampleLinear(chunk.Mono(), chunk.SampleRate, ModelSampleRate)
	text, err := m.Infer(ctx, samples)
	if err != nil {
		return "", &BackendError{Backend: l.name, Err: err}
	}
	return strings.TrimSpace(text), nil
}

// Close releases the model. A load still in flight is discarded when it completes.
func (l *Local) Close() error {
	l.infer.Lock()
	defer l.infer.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.model == nil {
		return nil
	}
	err := l.model.Close()
	l.model = nil
	l.state = Uninitialized
	return err
}

func resampleLinear(in []float32, srcSR, dstSR int) []float32 {
	if srcSR <= 0 || srcSR == dstSR || len(in) == 0 {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}
	ratio := float64(dstSR) / float64(srcSR)
	outLen := int(float64(len(in))*ratio + 0.9999)
	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		pos := float64(i) / ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}
