package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.CacheLookup("trend", true)
	m.StoreRead("steps", errors.New("x"))
	m.ProviderAttempt("remote", "ok")
	m.Response("fallbackTemplate")
	m.Clarification("ambiguousMetric")
	m.ObserveTurn(time.Now())
	m.SetNetworkOnline(true)
	m.SetActiveSessions(3)
}

func TestCountersRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CacheLookup("trend", true)
	m.CacheLookup("trend", false)
	m.CacheLookup("trend", false)
	m.SetNetworkOnline(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("trend", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("trend", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NetworkOnline))
}
