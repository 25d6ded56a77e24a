// Package metrics exposes Prometheus collectors for generation calls and
// the media job queue.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	generations *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	polls       prometheus.Counter
	jobs        *prometheus.GaugeVec
	turns       *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crewdesk",
			Name:      "generations_total",
			Help:      "Generation calls by kind and outcome.",
		}, []string{"kind", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crewdesk",
			Name:      "generation_duration_seconds",
			Help:      "Wall time of generation calls.",
			Buckets:   []float64{0.25, 1, 2.5, 5, 15, 60, 180, 600},
		}, []string{"kind"}),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crewdesk",
			Name:      "video_polls_total",
			Help:      "Video operation status polls.",
		}),
		jobs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "crewdesk",
			Name:      "studio_jobs_active",
			Help:      "Media jobs currently running by kind.",
		}, []string{"kind"}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crewdesk",
			Name:      "chat_turns_total",
			Help:      "Chat turns by routing reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		m.generations, m.latency, m.polls, m.jobs, m.turns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveGeneration records one finished call. A nil Metrics is a no-op.
func (m *Metrics) ObserveGeneration(kind string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.generations.WithLabelValues(kind, outcome).Inc()
	m.latency.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}

// VideoPoll counts one status poll.
func (m *Metrics) VideoPoll() {
	if m == nil {
		return
	}
	m.polls.Inc()
}

// JobStarted and JobFinished track running studio jobs.
func (m *Metrics) JobStarted(kind string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(kind).Inc()
}

func (m *Metrics) JobFinished(kind string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(kind).Dec()
}

// ChatTurn counts a routed chat turn.
func (m *Metrics) ChatTurn(reason string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(reason).Inc()
}

// Registry returns the underlying registry, for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
