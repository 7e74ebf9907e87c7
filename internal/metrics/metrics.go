// Package metrics exports picture type statistics of monitored streams in
// the Prometheus format.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zsiec/pictype/bitstream"
	"github.com/zsiec/pictype/internal/probe"
)

// Namespace prefixes every metric name.
const Namespace = "pictype"

// Metrics holds the per-stream collectors. It implements probe.Observer.
type Metrics struct {
	reg *prometheus.Registry

	frames           *prometheus.CounterVec
	frameBytes       *prometheus.CounterVec
	parseErrors      *prometheus.CounterVec
	discontinuities  *prometheus.CounterVec
	keyframeInterval *prometheus.GaugeVec
	activeStreams    prometheus.Gauge

	mu      sync.Mutex
	lastKey map[string]int64
}

// New creates Metrics registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "frames_total",
			Help:      "Access units classified, by picture type.",
		}, []string{"stream", "codec", "type"}),
		frameBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "frame_bytes_total",
			Help:      "Bytes of classified access units, by picture type.",
		}, []string{"stream", "codec", "type"}),
		parseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "parse_errors_total",
			Help:      "Access units whose headers could not be parsed.",
		}, []string{"stream", "codec"}),
		discontinuities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "discontinuities_total",
			Help:      "Access units that followed lost data.",
		}, []string{"stream"}),
		keyframeInterval: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "keyframe_interval_frames",
			Help:      "Access units between the two most recent I pictures.",
		}, []string{"stream"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_streams",
			Help:      "Streams currently being probed.",
		}),
		lastKey: make(map[string]int64),
	}
	m.reg.MustRegister(m.frames, m.frameBytes, m.parseErrors, m.discontinuities, m.keyframeInterval, m.activeStreams)
	return m
}

// Register adds another collector to the registry.
func (m *Metrics) Register(c prometheus.Collector) error {
	return m.reg.Register(c)
}

// Gatherer returns the registry for scraping.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Observe implements probe.Observer.
func (m *Metrics) Observe(stream, codec string, r probe.Result) {
	typ := r.Type.String()
	m.frames.WithLabelValues(stream, codec, typ).Inc()
	m.frameBytes.WithLabelValues(stream, codec, typ).Add(float64(r.Size))
	if r.Err != nil {
		m.parseErrors.WithLabelValues(stream, codec).Inc()
	}
	if r.Discontinuity {
		m.discontinuities.WithLabelValues(stream).Inc()
	}
	if r.Type != bitstream.PictureI {
		return
	}

	m.mu.Lock()
	last, ok := m.lastKey[stream]
	m.lastKey[stream] = r.Index
	m.mu.Unlock()
	if ok && r.Index > last {
		m.keyframeInterval.WithLabelValues(stream).Set(float64(r.Index - last))
	}
}

// StreamStarted counts a stream as active.
func (m *Metrics) StreamStarted(stream string) {
	m.activeStreams.Inc()
}

// StreamEnded counts a stream as inactive and drops its series.
func (m *Metrics) StreamEnded(stream string) {
	m.activeStreams.Dec()
	labels := prometheus.Labels{"stream": stream}
	m.frames.DeletePartialMatch(labels)
	m.frameBytes.DeletePartialMatch(labels)
	m.parseErrors.DeletePartialMatch(labels)
	m.discontinuities.DeletePartialMatch(labels)
	m.keyframeInterval.DeletePartialMatch(labels)

	m.mu.Lock()
	delete(m.lastKey, stream)
	m.mu.Unlock()
}
