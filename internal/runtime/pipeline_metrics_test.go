package runtime

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilPipelineMetricsIsSafe(t *testing.T) {
	var m *PipelineMetrics
	if err := m.Register(); err != nil {
		t.Fatalf("nil register: %v", err)
	}
	m.observeRouted("q")
	m.observeProtocolViolation("event")
	m.observeQuarantined("q")
	m.observePublished(1)
	m.observeRebuild(0.5, 10)
}

func TestPipelineMetricsRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)
	if err := m.Register(); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := m.Register(); err != nil {
		t.Fatalf("second register: %v", err)
	}
}

func TestPipelineMetricsObservations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)
	if err := m.Register(); err != nil {
		t.Fatalf("register: %v", err)
	}

	m.observeRouted("entity-commands")
	m.observeRouted("entity-commands")
	m.observeQuarantined("func-0")
	m.observePublished(7)

	if got := testutil.ToFloat64(m.routedTotal.WithLabelValues("entity-commands")); got != 2 {
		t.Fatalf("routed_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.quarantinedTotal.WithLabelValues("func-0")); got != 1 {
		t.Fatalf("quarantined_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.publisherPos); got != 7 {
		t.Fatalf("publisher_checkpoint = %v, want 7", got)
	}
}
