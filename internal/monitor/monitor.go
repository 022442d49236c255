// Package monitor exposes arena counters to Prometheus. A nil *Metrics is a
// valid no-op so callers never branch on it.
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	MatchesCreated   *prometheus.CounterVec
	MatchesCompleted *prometheus.CounterVec
	Claims           *prometheus.CounterVec
	Adjudications    *prometheus.CounterVec
	FramesReceived   prometheus.Counter
	QueueDepth       prometheus.Gauge
	JudgeLatency     prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		MatchesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_created_total",
			Help:      "Matches created, by origin",
		}, []string{"origin"}),
		MatchesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_completed_total",
			Help:      "Matches completed, by method and outcome",
		}, []string{"method", "outcome"}),
		Claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_total",
			Help:      "Victory claims, by result",
		}, []string{"result"}),
		Adjudications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adjudications_total",
			Help:      "Timeout adjudications, by verdict source",
		}, []string{"source"}),
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Frames pushed by agents",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Tickets waiting in the matchmaking queue",
		}),
		JudgeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "adjudication_seconds",
			Help:      "Time spent producing a timeout verdict",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
	reg.MustRegister(
		m.MatchesCreated,
		m.MatchesCompleted,
		m.Claims,
		m.Adjudications,
		m.FramesReceived,
		m.QueueDepth,
		m.JudgeLatency,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) MatchCreated(origin string) {
	if m == nil {
		return
	}
	m.MatchesCreated.WithLabelValues(origin).Inc()
}

func (m *Metrics) MatchCompleted(method, outcome string) {
	if m == nil {
		return
	}
	m.MatchesCompleted.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) Claim(result string) {
	if m == nil {
		return
	}
	m.Claims.WithLabelValues(result).Inc()
}

func (m *Metrics) Adjudicated(source string, took time.Duration) {
	if m == nil {
		return
	}
	m.Adjudications.WithLabelValues(source).Inc()
	m.JudgeLatency.Observe(took.Seconds())
}

func (m *Metrics) FrameReceived() {
	if m == nil {
		return
	}
	m.FramesReceived.Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}
