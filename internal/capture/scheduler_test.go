package capture

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"livecap/internal/audio"
	"livecap/internal/caption"
	"livecap/internal/logging"
	"livecap/internal/subtitle"
)

const testRate = 8

// scriptedStream yields total chunks of n samples; the last read carries io.EOF.
// total < 0 means unlimited. failAt > 0 makes that read fail.
type scriptedStream struct {
	mu     sync.Mutex
	total  int
	failAt int
	reads  int
}

func (s *scriptedStream) Read(n int) ([]int16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.failAt > 0 && s.reads == s.failAt {
		return nil, errors.New("device unplugged")
	}
	out := make([]int16, n)
	if s.total >= 0 && s.reads >= s.total {
		return out, io.EOF
	}
	return out, nil
}

func (s *scriptedStream) Close() error { return nil }

// elapsed advances chunkSec per completed read, like a file position clock.
func (s *scriptedStream) elapsed(chunkSec float64) func() time.Duration {
	return func() time.Duration {
		s.mu.Lock()
		defer s.mu.Unlock()
		return time.Duration(float64(s.reads) * chunkSec * float64(time.Second))
	}
}

type scriptedBackend struct {
	mu    sync.Mutex
	texts []string
	fail  map[int]bool
	calls int
}

func (b *scriptedBackend) Name() string { return "scripted" }
func (b *scriptedBackend) Ready() bool  { return true }
func (b *scriptedBackend) Close() error { return nil }
func (b *scriptedBackend) Transcribe(ctx context.Context, c audio.Chunk) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.calls
	b.calls++
	if b.fail[i] {
		return "", errors.New("backend hiccup")
	}
	if i < len(b.texts) {
		return b.texts[i], nil
	}
	return "more", nil
}

type collectSink struct {
	mu   sync.Mutex
	recs []caption.Record
}

func (c *collectSink) Push(rec caption.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
}

type countingObserver struct {
	nopObserver
	mu       sync.Mutex
	failed   int
	silent   int
	accepted int
}

func (o *countingObserver) ChunkFailed(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed++
}

func (o *countingObserver) ChunkSilent() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.silent++
}

func (o *countingObserver) CaptionAccepted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.accepted++
}

type rig struct {
	stream  *scriptedStream
	backend *scriptedBackend
	ledger  *caption.Ledger
	buffer  *audio.Buffer
	sink    *collectSink
	sched   *Scheduler
}

func newRig(stream *scriptedStream, backend *scriptedBackend, mutate func(*Options)) *rig {
	r := &rig{
		stream:  stream,
		backend: backend,
		ledger:  caption.NewLedger(),
		buffer:  &audio.Buffer{},
		sink:    &collectSink{},
	}
	opts := Options{
		SampleRate: testRate,
		Channels:   1,
		ChunkSec:   2,
		StartClamp: DefaultStartClamp,
		Fillers:    []string{"you"},
		Elapsed:    stream.elapsed(2),
	}
	if mutate != nil {
		mutate(&opts)
	}
	r.sched = New(stream, backend, r.ledger, r.buffer, r.sink, opts, logging.NewTestLogger())
	return r
}

func (r *rig) run(t *testing.T) error {
	t.Helper()
	r.sched.Start(context.Background())
	select {
	case <-r.sched.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("scheduler did not finish")
	}
	return r.sched.Wait()
}

func TestHelloSilenceWorld(t *testing.T) {
	r := newRig(&scriptedStream{total: 3}, &scriptedBackend{texts: []string{"hello", "", "world"}}, nil)
	if err := r.run(t); err != nil {
		t.Fatalf("wait: %v", err)
	}
	recs := r.ledger.All()
	if len(recs) != 2 {
		t.Fatalf("ledger has %d records: %+v", len(recs), recs)
	}
	want := []caption.Record{{Start: 0, End: 2, Text: "hello"}, {Start: 4, End: 6, Text: "world"}}
	for i := range want {
		if recs[i] != want[i] {
			t.Fatalf("record %d = %+v, want %+v", i, recs[i], want[i])
		}
	}
	if got := subtitle.Text(recs); got != "hello\nworld" {
		t.Fatalf("txt = %q", got)
	}
	srt := subtitle.SubRip(recs)
	if srt != "1\n00:00:00,000 --> 00:00:02,000\nhello\n\n2\n00:00:04,000 --> 00:00:06,000\nworld\n\n" {
		t.Fatalf("srt = %q", srt)
	}
	if r.buffer.Len() != 3 {
		t.Fatalf("retained %d chunks, want 3", r.buffer.Len())
	}
	if len(r.sink.recs) != 2 || r.sink.recs[1].Text != "world" {
		t.Fatalf("sink got %+v", r.sink.recs)
	}
	if r.sched.TTime() != 6*time.Second {
		t.Fatalf("ttime = %v", r.sched.TTime())
	}
}

func TestOneFailingChunkIsSkipped(t *testing.T) {
	const n = 6
	obs := &countingObserver{}
	r := newRig(&scriptedStream{total: n}, &scriptedBackend{fail: map[int]bool{2: true}}, func(o *Options) {
		o.Observer = obs
	})
	if err := r.run(t); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got := r.ledger.Len(); got != n-1 {
		t.Fatalf("ledger len = %d, want %d", got, n-1)
	}
	if r.backend.calls != n {
		t.Fatalf("backend called %d times, want %d", r.backend.calls, n)
	}
	if obs.failed != 1 || obs.accepted != n-1 {
		t.Fatalf("observer failed=%d accepted=%d", obs.failed, obs.accepted)
	}
	recs := r.ledger.All()
	if recs[2].Start != 6 {
		t.Fatalf("chunk after failure has start %v, want 6", recs[2].Start)
	}
}

func TestFillerIsDropped(t *testing.T) {
	obs := &countingObserver{}
	r := newRig(&scriptedStream{total: 2}, &scriptedBackend{texts: []string{" You ", "kept"}}, func(o *Options) {
		o.Observer = obs
	})
	if err := r.run(t); err != nil {
		t.Fatalf("wait: %v", err)
	}
	recs := r.ledger.All()
	if len(recs) != 1 || recs[0].Text != "kept" {
		t.Fatalf("ledger = %+v", recs)
	}
	if obs.silent != 1 {
		t.Fatalf("silent = %d", obs.silent)
	}
}

func TestCutoffStopsAutonomously(t *testing.T) {
	r := newRig(&scriptedStream{total: -1}, &scriptedBackend{}, func(o *Options) {
		o.MaxDuration = 5 * time.Second
	})
	if err := r.run(t); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !r.sched.Cutoff() {
		t.Fatalf("expected cutoff")
	}
	if got := r.ledger.Len(); got != 3 {
		t.Fatalf("ledger len = %d, want 3", got)
	}
	if r.sched.Chunks() != 3 {
		t.Fatalf("chunks = %d", r.sched.Chunks())
	}
}

func TestRequestStopIsIdempotent(t *testing.T) {
	stream := &scriptedStream{total: -1}
	r := newRig(stream, &scriptedBackend{}, func(o *Options) { o.Elapsed = nil })
	r.sched.Start(context.Background())
	r.sched.RequestStop()
	r.sched.RequestStop()
	if err := r.sched.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	r.sched.RequestStop()
	if err := r.sched.Wait(); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if r.sched.Cutoff() {
		t.Fatalf("manual stop is not a cutoff")
	}
}

func TestDeviceErrorEndsSession(t *testing.T) {
	r := newRig(&scriptedStream{total: -1, failAt: 2}, &scriptedBackend{}, nil)
	err := r.run(t)
	var de *audio.DeviceError
	if !errors.As(err, &de) {
		t.Fatalf("expected DeviceError, got %v", err)
	}
	if r.ledger.Len() != 1 {
		t.Fatalf("ledger len = %d", r.ledger.Len())
	}
}

type rejectSecond struct{ n int }

func (g *rejectSecond) Voiced(audio.Chunk) (bool, error) {
	g.n++
	return g.n != 2, nil
}

func TestGateSkipsBackend(t *testing.T) {
	r := newRig(&scriptedStream{total: 3}, &scriptedBackend{texts: []string{"a", "b", "c"}}, func(o *Options) {
		o.Gate = &rejectSecond{}
	})
	if err := r.run(t); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if r.backend.calls != 2 {
		t.Fatalf("backend calls = %d", r.backend.calls)
	}
	recs := r.ledger.All()
	if len(recs) != 2 || recs[0].Text != "a" || recs[1].Text != "b" {
		t.Fatalf("ledger = %+v", recs)
	}
	if recs[1].Start != 4 {
		t.Fatalf("second record start = %v", recs[1].Start)
	}
}

func TestSamplesPerChunk(t *testing.T) {
	cases := []struct {
		rate, ch int
		sec      float64
		want     int
	}{
		{16000, 1, 2, 32000},
		{44100, 2, 2, 176400},
		{16000, 2, 0.5, 16000},
		{8, 1, 0.01, 1},
	}
	for _, c := range cases {
		s := New(&scriptedStream{}, &scriptedBackend{}, caption.NewLedger(), &audio.Buffer{}, nil,
			Options{SampleRate: c.rate, Channels: c.ch, ChunkSec: c.sec}, logging.NewTestLogger())
		if got := s.SamplesPerChunk(); got != c.want {
			t.Fatalf("%d Hz/%d ch/%gs = %d, want %d", c.rate, c.ch, c.sec, got, c.want)
		}
	}
}

func TestStartClamp(t *testing.T) {
	cases := []struct {
		name   string
		offset time.Duration
		clamp  time.Duration
		want   time.Duration
	}{
		{"below clamp reports zero", 50 * time.Millisecond, DefaultStartClamp, 0},
		{"at or above clamp is kept", 150 * time.Millisecond, DefaultStartClamp, 150 * time.Millisecond},
		{"exactly at clamp is kept", DefaultStartClamp, DefaultStartClamp, DefaultStartClamp},
		{"clamp disabled keeps raw start", 50 * time.Millisecond, 0, 50 * time.Millisecond},
	}
	for _, c := range cases {
		stream := &scriptedStream{total: 1}
		r := newRig(stream, &scriptedBackend{texts: []string{"hi"}}, func(o *Options) {
			o.StartClamp = c.clamp
			base := stream.elapsed(2)
			o.Elapsed = func() time.Duration { return c.offset + base() }
		})
		if err := r.run(t); err != nil {
			t.Fatalf("%s: wait: %v", c.name, err)
		}
		recs := r.ledger.All()
		if len(recs) != 1 {
			t.Fatalf("%s: ledger = %+v", c.name, recs)
		}
		if recs[0].Start != c.want.Seconds() {
			t.Fatalf("%s: start = %v, want %v", c.name, recs[0].Start, c.want.Seconds())
		}
		if end := (c.offset + 2*time.Second).Seconds(); recs[0].End != end {
			t.Fatalf("%s: end = %v, want %v", c.name, recs[0].End, end)
		}
	}
}
