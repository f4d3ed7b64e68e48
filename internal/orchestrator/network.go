package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/telemetry"
)

// ProbeFunc reports nil when the remote side is reachable.
type ProbeFunc func(ctx context.Context) error

// NetworkMonitor caches connectivity as a flag. The scheduled probe is its
// only writer apart from SetOnline; routing reads it without blocking.
type NetworkMonitor struct {
	online  atomic.Bool
	probe   ProbeFunc
	timeout time.Duration
	cron    *cron.Cron
	metrics *telemetry.Metrics
	logger  zerolog.Logger
}

type MonitorOption func(*NetworkMonitor)

func WithProbeTimeout(d time.Duration) MonitorOption {
	return func(m *NetworkMonitor) { m.timeout = d }
}

func WithMonitorMetrics(metrics *telemetry.Metrics) MonitorOption {
	return func(m *NetworkMonitor) { m.metrics = metrics }
}

func WithMonitorLogger(logger zerolog.Logger) MonitorOption {
	return func(m *NetworkMonitor) { m.logger = logger }
}

// NewNetworkMonitor starts optimistic: the network is assumed up until a
// probe says otherwise.
func NewNetworkMonitor(probe ProbeFunc, opts ...MonitorOption) *NetworkMonitor {
	m := &NetworkMonitor{
		probe:   probe,
		timeout: 5 * time.Second,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.online.Store(true)
	m.metrics.SetNetworkOnline(true)
	return m
}

func (m *NetworkMonitor) Online() bool {
	if m == nil {
		return true
	}
	return m.online.Load()
}

func (m *NetworkMonitor) SetOnline(online bool) {
	previous := m.online.Swap(online)
	m.metrics.SetNetworkOnline(online)
	if previous != online {
		m.logger.Info().Bool("online", online).Msg("network state changed")
	}
}

// Probe runs the probe once and records the result.
func (m *NetworkMonitor) Probe(ctx context.Context) bool {
	if m.probe == nil {
		return m.Online()
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	err := m.probe(ctx)
	if err != nil {
		m.logger.Debug().Err(err).Msg("network probe failed")
	}
	m.SetOnline(err == nil)
	return err == nil
}

// Start schedules the probe (cron spec or "@every 30s") and runs it once.
func (m *NetworkMonitor) Start(ctx context.Context, schedule string) error {
	m.cron = cron.New()
	if _, err := m.cron.AddFunc(schedule, func() { m.Probe(ctx) }); err != nil {
		return fmt.Errorf("schedule network probe: %w", err)
	}
	m.Probe(ctx)
	m.cron.Start()
	return nil
}

func (m *NetworkMonitor) Stop() {
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
}

// HTTPProbe treats any HTTP response as reachable; only transport failures
// count as offline.
func HTTPProbe(client *http.Client, url string) ProbeFunc {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	}
}
