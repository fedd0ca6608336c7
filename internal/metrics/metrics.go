// Package metrics exposes Prometheus metrics gathered at scrape time.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineStatusProvider exposes the state of the engine socket.
type EngineStatusProvider interface {
	Connected() bool
	ReconnectAttempts() int64
}

// ActiveCallsProvider exposes the number of live tracked calls.
type ActiveCallsProvider interface {
	ActiveCount() int
}

// CDRDirectionCounter returns CDR counts grouped by direction.
type CDRDirectionCounter interface {
	CountByDirection(ctx context.Context) (map[string]int64, error)
}

// Collector is a prometheus.Collector that gathers metrics at scrape time.
type Collector struct {
	engine    EngineStatusProvider
	calls     ActiveCallsProvider
	cdrs      CDRDirectionCounter
	startTime time.Time

	engineConnectedDesc *prometheus.Desc
	reconnectsDesc      *prometheus.Desc
	activeCallsDesc     *prometheus.Desc
	callsTotalDesc      *prometheus.Desc
	uptimeDesc          *prometheus.Desc
}

// NewCollector creates a new metrics collector. Any provider may be nil if
// unavailable.
func NewCollector(
	engine EngineStatusProvider,
	calls ActiveCallsProvider,
	cdrs CDRDirectionCounter,
	startTime time.Time,
) *Collector {
	return &Collector{
		engine:    engine,
		calls:     calls,
		cdrs:      cdrs,
		startTime: startTime,

		engineConnectedDesc: prometheus.NewDesc(
			"voxgate_engine_connected",
			"Whether the engine event socket is connected (1=connected)",
			nil, nil,
		),
		reconnectsDesc: prometheus.NewDesc(
			"voxgate_engine_reconnect_attempts_total",
			"Total engine reconnect attempts since start",
			nil, nil,
		),
		activeCallsDesc: prometheus.NewDesc(
			"voxgate_active_calls",
			"Number of currently tracked live calls",
			nil, nil,
		),
		callsTotalDesc: prometheus.NewDesc(
			"voxgate_calls_total",
			"Total number of calls processed (from CDR)",
			[]string{"direction"}, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"voxgate_uptime_seconds",
			"Seconds since the process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.engineConnectedDesc
	ch <- c.reconnectsDesc
	ch <- c.activeCallsDesc
	ch <- c.callsTotalDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries all providers at
// scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.engine != nil {
		connected := 0.0
		if c.engine.Connected() {
			connected = 1.0
		}
		ch <- prometheus.MustNewConstMetric(
			c.engineConnectedDesc, prometheus.GaugeValue, connected,
		)
		ch <- prometheus.MustNewConstMetric(
			c.reconnectsDesc, prometheus.CounterValue,
			float64(c.engine.ReconnectAttempts()),
		)
	}

	if c.calls != nil {
		ch <- prometheus.MustNewConstMetric(
			c.activeCallsDesc, prometheus.GaugeValue,
			float64(c.calls.ActiveCount()),
		)
	}

	if c.cdrs != nil {
		counts, err := c.cdrs.CountByDirection(ctx)
		if err != nil {
			slog.Error("metrics: failed to count cdrs by direction", "error", err)
		} else {
			for _, dir := range []string{"inbound", "outbound", "internal"} {
				ch <- prometheus.MustNewConstMetric(
					c.callsTotalDesc, prometheus.CounterValue,
					float64(counts[dir]), dir,
				)
			}
		}
	}

	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}
