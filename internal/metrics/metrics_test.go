package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestFlowCounters(t *testing.T) {
	m := New()
	m.FlowStarted()
	m.FlowStarted()
	m.FlowFinished("gen", "done")

	if got := testutil.ToFloat64(m.inFlight); got != 1 {
		t.Fatalf("in flight = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.flows.WithLabelValues("gen", "done")); got != 1 {
		t.Fatalf("flows = %v, want 1", got)
	}
}

func TestObserveStage(t *testing.T) {
	m := New()
	m.ObserveStage("submit", 100*time.Millisecond, nil)
	m.ObserveStage("submit", time.Second, errors.New("boom"))
	if n := testutil.CollectAndCount(m.stageDuration); n != 2 {
		t.Fatalf("series = %d, want 2", n)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.FlowStarted()
	m.FlowFinished("gen", "failed")
	m.ObserveStage("poll", time.Second, nil)
	m.Update("photo")
	m.SessionsSwept(3)
	if m.Registry() != nil {
		t.Fatalf("nil metrics must not expose a registry")
	}
}
