// Package live hands accepted captions from the capture worker to displays.
package live

import (
	"context"
	"sync"

	"livecap/internal/caption"
)

// Sink displays caption text.
type Sink interface {
	Show(text string)
}

// Handler consumes one caption on the queue's consumer goroutine.
type Handler func(rec caption.Record)

// ShowText adapts a Sink to a Handler.
func ShowText(s Sink) Handler {
	return func(rec caption.Record) { s.Show(rec.Text) }
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(text string)

func (f SinkFunc) Show(text string) { f(text) }

// Queue is an unbounded FIFO with a single consumer. Push never blocks.
type Queue struct {
	mu     sync.Mutex
	items  []caption.Record
	closed bool
	wake   chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Push enqueues rec. Records pushed after Close are dropped.
func (q *Queue) Push(rec caption.Record) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, rec)
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len reports records waiting for delivery.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting records. Run delivers what is queued and returns.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Run delivers records in push order to every handler until Close drains the
// queue or ctx is cancelled. Only one Run may be active.
func (q *Queue) Run(ctx context.Context, handlers ...Handler) {
	for {
		q.mu.Lock()
		batch := q.items
		q.items = nil
		closed := q.closed
		q.mu.Unlock()

		for _, rec := range batch {
			for _, h := range handlers {
				h(rec)
			}
		}
		if closed && len(batch) == 0 {
			return
		}
		if len(batch) > 0 {
			continue
		}
		select {
		case <-q.wake:
		case <-ctx.Done():
			return
		}
	}
}
