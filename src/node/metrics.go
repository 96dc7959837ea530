package node

import (
	"time"

	"github.com/lholznagel/carina/src/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "carina"

// Metrics holds the prometheus collectors of one node. Each node owns its
// registry so that several nodes can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	received *prometheus.CounterVec
	sent     *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	handled  *prometheus.HistogramVec
	rounds   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them together with the
// gauges reading from the session.
func NewMetrics(session *Session) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		received: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "datagrams_received_total",
				Help:      "Decoded datagrams by event.",
			},
			[]string{"event"},
		),
		sent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "datagrams_sent_total",
				Help:      "Sent datagrams by event.",
			},
			[]string{"event"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "datagrams_dropped_total",
				Help:      "Datagrams dropped before dispatch, by reason.",
			},
			[]string{"reason"},
		),
		handled: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Time spent running the hooks of an event.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			[]string{"event"},
		),
		rounds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "vote_rounds_total",
				Help:      "Hash vote rounds by outcome.",
			},
			[]string{"outcome"},
		),
	}

	peersGauge := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "known_peers",
			Help:      "Number of peers in the session.",
		},
		func() float64 { return float64(session.Stats().Peers) },
	)

	currentGauge := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "current_index",
			Help:      "Index of the current candidate.",
		},
		func() float64 { return float64(session.Stats().Current) },
	)

	m.registry.MustRegister(m.received, m.sent, m.dropped, m.handled, m.rounds, peersGauge, currentGauge)

	return m
}

// Registry returns the registry to expose over HTTP.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeDispatch(event protocol.EventCode, start time.Time) {
	m.received.WithLabelValues(event.String()).Inc()
	m.handled.WithLabelValues(event.String()).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeSend(event protocol.EventCode) {
	m.sent.WithLabelValues(event.String()).Inc()
}

func (m *Metrics) observeDrop(reason string) {
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeRound(outcome string) {
	m.rounds.WithLabelValues(outcome).Inc()
}
