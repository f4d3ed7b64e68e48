// Package telemetry holds the Prometheus collectors for the query pipeline.
// A nil *Metrics is valid and records nothing.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	CacheLookups     *prometheus.CounterVec
	StoreReads       *prometheus.CounterVec
	ProviderAttempts *prometheus.CounterVec
	Responses        *prometheus.CounterVec
	Clarifications   *prometheus.CounterVec
	TurnDuration     prometheus.Histogram
	NetworkOnline    prometheus.Gauge
	ActiveSessions   prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthq_cache_lookups_total",
				Help: "Aggregation cache lookups by query kind and result",
			},
			[]string{"query", "result"},
		),
		StoreReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthq_store_reads_total",
				Help: "Metric store reads by metric and outcome",
			},
			[]string{"metric", "outcome"},
		),
		ProviderAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthq_provider_attempts_total",
				Help: "Text provider attempts by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		Responses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthq_responses_total",
				Help: "Assistant responses by source",
			},
			[]string{"source"},
		),
		Clarifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthq_clarifications_total",
				Help: "Clarification prompts by ambiguity type",
			},
			[]string{"ambiguity"},
		),
		TurnDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "healthq_turn_duration_seconds",
				Help:    "End-to-end conversation turn latency",
				Buckets: prometheus.DefBuckets,
			},
		),
		NetworkOnline: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "healthq_network_online",
				Help: "1 when the remote provider was reachable at the last probe",
			},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "healthq_active_sessions",
				Help: "Conversation sessions held in memory",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.CacheLookups,
			m.StoreReads,
			m.ProviderAttempts,
			m.Responses,
			m.Clarifications,
			m.TurnDuration,
			m.NetworkOnline,
			m.ActiveSessions,
		)
	}
	return m
}

func (m *Metrics) CacheLookup(query string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(query, result).Inc()
}

func (m *Metrics) StoreRead(metricName string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.StoreReads.WithLabelValues(metricName, outcome).Inc()
}

func (m *Metrics) ProviderAttempt(provider, outcome string) {
	if m == nil {
		return
	}
	m.ProviderAttempts.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) Response(source string) {
	if m == nil {
		return
	}
	m.Responses.WithLabelValues(source).Inc()
}

func (m *Metrics) Clarification(ambiguity string) {
	if m == nil {
		return
	}
	m.Clarifications.WithLabelValues(ambiguity).Inc()
}

func (m *Metrics) ObserveTurn(started time.Time) {
	if m == nil {
		return
	}
	m.TurnDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) SetNetworkOnline(online bool) {
	if m == nil {
		return
	}
	if online {
		m.NetworkOnline.Set(1)
		return
	}
	m.NetworkOnline.Set(0)
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}
