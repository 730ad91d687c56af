// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "livecap"

// Pipeline holds the capture and session metrics. Each instance owns its own
// registry so tests and multiple controllers do not collide.
type Pipeline struct {
	reg *prometheus.Registry

	ChunksRecorded   prometheus.Counter
	AudioSeconds     prometheus.Counter
	ChunksFailed     *prometheus.CounterVec
	ChunksSilent     prometheus.Counter
	CaptionsAccepted prometheus.Counter
	BackendLatency   *prometheus.HistogramVec

	SessionsStarted prometheus.Counter
	SessionsSaved   prometheus.Counter
	SavesFailed     prometheus.Counter
	SavedSeconds    prometheus.Histogram
	Recording       prometheus.Gauge

	EventsPublished *prometheus.CounterVec
	EventLatency    prometheus.Histogram
}

// New registers every metric on a fresh registry, plus Go runtime collectors.
func New() *Pipeline {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Pipeline{
		reg: reg,
		ChunksRecorded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_recorded_total",
			Help:      "Audio chunks read from the capture device",
		}),
		AudioSeconds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_seconds_total",
			Help:      "Seconds of audio captured",
		}),
		ChunksFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_failed_total",
			Help:      "Chunks dropped because the backend failed",
		}, []string{"backend"}),
		ChunksSilent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_silent_total",
			Help:      "Chunks with empty or filler text",
		}),
		CaptionsAccepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captions_total",
			Help:      "Captions appended to the ledger",
		}),
		BackendLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_latency_seconds",
			Help:      "Time spent transcribing one chunk",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"backend"}),
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Recording sessions started",
		}),
		SessionsSaved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_saved_total",
			Help:      "Recording sessions written to disk",
		}),
		SavesFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_failed_total",
			Help:      "Saves that failed to write",
		}),
		SavedSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_audio_seconds",
			Help:      "Audio length of saved sessions",
			Buckets:   []float64{10, 30, 60, 300, 600, 1800, 3600, 7200},
		}),
		Recording: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recording",
			Help:      "1 while a session is recording",
		}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Caption events handed to the broker",
		}, []string{"topic", "status"}),
		EventLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_publish_seconds",
			Help:      "Broker write latency",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Registry returns the underlying registry.
func (p *Pipeline) Registry() *prometheus.Registry { return p.reg }

// Handler serves the registry in the Prometheus text format.
func (p *Pipeline) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *Pipeline) ChunkRecorded(seconds float64) {
	p.ChunksRecorded.Inc()
	p.AudioSeconds.Add(seconds)
}

func (p *Pipeline) ChunkTranscribed(backend string, latency time.Duration) {
	p.BackendLatency.WithLabelValues(backend).Observe(latency.Seconds())
}

func (p *Pipeline) ChunkFailed(backend string) { p.ChunksFailed.WithLabelValues(backend).Inc() }

func (p *Pipeline) ChunkSilent() { p.ChunksSilent.Inc() }

func (p *Pipeline) CaptionAccepted() { p.CaptionsAccepted.Inc() }

func (p *Pipeline) SessionStarted() {
	p.SessionsStarted.Inc()
	p.Recording.Set(1)
}

func (p *Pipeline) SessionSaved(ok bool, seconds float64) {
	p.Recording.Set(0)
	if !ok {
		p.SavesFailed.Inc()
		return
	}
	p.SessionsSaved.Inc()
	p.SavedSeconds.Observe(seconds)
}

// Published records one broker write.
func (p *Pipeline) Published(topic string, err error, latency time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.EventsPublished.WithLabelValues(topic, status).Inc()
	p.EventLatency.Observe(latency.Seconds())
}
