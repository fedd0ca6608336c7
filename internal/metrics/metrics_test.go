package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeEngine struct {
	connected  bool
	reconnects int64
}

func (f *fakeEngine) Connected() bool          { return f.connected }
func (f *fakeEngine) ReconnectAttempts() int64 { return f.reconnects }

type fakeCalls struct{ n int }

func (f *fakeCalls) ActiveCount() int { return f.n }

type fakeCDRs struct {
	counts map[string]int64
	err    error
}

func (f *fakeCDRs) CountByDirection(_ context.Context) (map[string]int64, error) {
	return f.counts, f.err
}

func TestCollectorGathersAllMetrics(t *testing.T) {
	c := NewCollector(
		&fakeEngine{connected: true, reconnects: 3},
		&fakeCalls{n: 7},
		&fakeCDRs{counts: map[string]int64{"inbound": 12, "outbound": 5}},
		time.Now().Add(-time.Minute),
	)

	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}

	expected := `
# HELP voxgate_engine_connected Whether the engine event socket is connected (1=connected)
# TYPE voxgate_engine_connected gauge
voxgate_engine_connected 1
# HELP voxgate_engine_reconnect_attempts_total Total engine reconnect attempts since start
# TYPE voxgate_engine_reconnect_attempts_total counter
voxgate_engine_reconnect_attempts_total 3
# HELP voxgate_active_calls Number of currently tracked live calls
# TYPE voxgate_active_calls gauge
voxgate_active_calls 7
# HELP voxgate_calls_total Total number of calls processed (from CDR)
# TYPE voxgate_calls_total counter
voxgate_calls_total{direction="inbound"} 12
voxgate_calls_total{direction="internal"} 0
voxgate_calls_total{direction="outbound"} 5
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"voxgate_engine_connected",
		"voxgate_engine_reconnect_attempts_total",
		"voxgate_active_calls",
		"voxgate_calls_total",
	)
	if err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
}

func TestCollectorToleratesNilProviders(t *testing.T) {
	c := NewCollector(nil, nil, nil, time.Now())

	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	// Only uptime remains when no providers are wired.
	if len(families) != 1 || families[0].GetName() != "voxgate_uptime_seconds" {
		names := make([]string, len(families))
		for i, f := range families {
			names[i] = f.GetName()
		}
		t.Errorf("families = %v, want only voxgate_uptime_seconds", names)
	}
}

func TestCollectorSkipsFailedCDRCount(t *testing.T) {
	c := NewCollector(nil, nil, &fakeCDRs{err: errors.New("db closed")}, time.Now())

	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "voxgate_calls_total" {
			t.Error("calls_total should be absent when the count query fails")
		}
	}
}
