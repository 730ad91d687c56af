// Package events publishes accepted captions and saved sessions to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"livecap/internal/caption"
	"livecap/internal/config"
	"livecap/internal/session"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const publishTimeout = 5 * time.Second

// Event types carried in the eventType header.
const (
	TypeCaption = "caption.final"
	TypeSaved   = "session.saved"
)

// CaptionEvent is the payload of one accepted caption.
type CaptionEvent struct {
	SessionID string    `json:"sessionId"`
	Seq       int       `json:"seq"`
	Start     float64   `json:"start"`
	End       float64   `json:"end"`
	Text      string    `json:"text"`
	Emitted   time.Time `json:"emittedAt"`
}

// SavedEvent announces a written recording.
type SavedEvent struct {
	SessionID string    `json:"sessionId"`
	Audio     string    `json:"audio"`
	Captions  int       `json:"captions"`
	Seconds   float64   `json:"seconds"`
	Saved     time.Time `json:"savedAt"`
}

// Recorder receives publish outcomes.
type Recorder interface {
	Published(topic string, err error, latency time.Duration)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes events to one topic. When disabled it only logs.
type Publisher struct {
	writer    messageWriter
	topic     string
	principal string
	logger    *logrus.Logger
	recorder  Recorder
	session   func() string

	mu  sync.Mutex
	seq int
}

// New builds a publisher from the events config section. session returns the
// current session ID used as the message key.
func New(cfg *config.Config, session func() string, recorder Recorder, logger *logrus.Logger) *Publisher {
	p := &Publisher{
		topic:     cfg.Events.Topic,
		principal: cfg.Events.Principal,
		logger:    logger,
		recorder:  recorder,
		session:   session,
	}
	if !cfg.Events.Enabled || len(cfg.Events.Brokers) == 0 {
		logger.Debug("kafka disabled, using log-only mode")
		return p
	}
	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Events.Brokers...),
		Topic:        cfg.Events.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}
	logger.WithFields(logrus.Fields{"brokers": cfg.Events.Brokers, "topic": cfg.Events.Topic}).Info("kafka publisher initialized")
	return p
}

// Enabled reports whether events reach a broker.
func (p *Publisher) Enabled() bool { return p.writer != nil }

// Caption publishes rec; it is meant to run as a live queue handler.
func (p *Publisher) Caption(rec caption.Record) {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.mu.Unlock()
	sid := p.currentSession()
	ev := CaptionEvent{SessionID: sid, Seq: seq, Start: rec.Start, End: rec.End, Text: rec.Text, Emitted: time.Now().UTC()}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.publish(ctx, TypeCaption, sid, ev); err != nil {
		p.logger.Warnf("publish caption: %v", err)
	}
}

// AfterSave publishes a saved-session event.
func (p *Publisher) AfterSave(ctx context.Context, res session.SaveResult) error {
	p.mu.Lock()
	p.seq = 0
	p.mu.Unlock()
	return p.publish(ctx, TypeSaved, res.SessionID, SavedEvent{
		SessionID: res.SessionID,
		Audio:     res.Files.Audio,
		Captions:  res.Captions,
		Seconds:   res.Seconds,
		Saved:     res.Saved,
	})
}

func (p *Publisher) currentSession() string {
	if p.session == nil {
		return ""
	}
	return p.session()
}

func (p *Publisher) publish(ctx context.Context, eventType, key string, event any) error {
	start := time.Now()
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	p.logger.WithFields(logrus.Fields{"topic": p.topic, "type": eventType, "key": key}).Debugf("event %s", payload)
	if p.writer == nil {
		return nil
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	})
	if p.recorder != nil {
		p.recorder.Published(p.topic, err, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("kafka write %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
