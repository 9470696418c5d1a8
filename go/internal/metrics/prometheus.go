package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scoutsync"

// Prometheus implements Collector on its own registry so several instances
// can coexist in one process (tests, CLI subcommands).
type Prometheus struct {
	registry *prometheus.Registry

	patches       *prometheus.CounterVec
	polls         *prometheus.CounterVec
	pollDuration  prometheus.Histogram
	probes        *prometheus.CounterVec
	quality       prometheus.Gauge
	events        *prometheus.CounterVec
	subscriptions prometheus.Gauge
	clients       prometheus.Gauge
}

func NewPrometheus() *Prometheus {
	m := &Prometheus{
		registry: prometheus.NewRegistry(),
		patches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_mutations_total",
			Help:      "Claim, answer and submit calls by outcome.",
		}, []string{"kind", "status"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Live-update poll cycles by outcome.",
		}, []string{"status"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of one poll fetch.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reachability_probes_total",
			Help:      "Backend reachability probes by outcome.",
		}, []string{"status"}),
		quality: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_quality",
			Help:      "Last computed connection quality in [0,1].",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Claim events published by type and outcome.",
		}, []string{"event_type", "status"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poll_subscriptions_active",
			Help:      "Number of live poll subscriptions.",
		}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitor_clients",
			Help:      "Connected monitor websocket clients.",
		}),
	}

	m.registry.MustRegister(
		m.patches,
		m.polls,
		m.pollDuration,
		m.probes,
		m.quality,
		m.events,
		m.subscriptions,
		m.clients,
	)
	return m
}

// Registry exposes the underlying registry for gathering in tests.
func (m *Prometheus) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Prometheus) RecordPatch(kind string, success bool) {
	m.patches.WithLabelValues(kind, status(success)).Inc()
}

func (m *Prometheus) RecordPoll(success bool, duration time.Duration) {
	m.polls.WithLabelValues(status(success)).Inc()
	m.pollDuration.Observe(duration.Seconds())
}

func (m *Prometheus) RecordProbe(reachable bool, quality float64) {
	m.probes.WithLabelValues(status(reachable)).Inc()
	m.quality.Set(quality)
}

func (m *Prometheus) RecordEventPublished(eventType string, success bool) {
	m.events.WithLabelValues(eventType, status(success)).Inc()
}

func (m *Prometheus) SetActiveSubscriptions(n int) {
	m.subscriptions.Set(float64(n))
}

func (m *Prometheus) SetMonitorClients(n int) {
	m.clients.Set(float64(n))
}
