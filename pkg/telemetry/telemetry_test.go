package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/vango-dev/vrender/pkg/protocol"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(mfs))
	for _, mf := range mfs {
		out[mf.GetName()] = mf
	}
	return out
}

func counter(mf *dto.MetricFamily, label, value string) float64 {
	if mf == nil {
		return 0
	}
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label && lp.GetValue() == value {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg), WithNamespace("test"))

	m.InstructionApplied(protocol.OpCreateElement)
	m.InstructionApplied(protocol.OpCreateElement)
	m.InstructionSkipped(protocol.OpSetAttribute)
	m.ProtocolViolation("R001")
	m.EventDispatched("click")
	m.EventDropped("click", "no_handler")
	m.BatchApplied("ok", 2*time.Millisecond, 12)

	mfs := gather(t, reg)
	checks := []struct {
		family, label, value string
		want                 float64
	}{
		{"test_instructions_total", "op", "CreateElement", 2},
		{"test_instructions_skipped_total", "op", "SetAttribute", 1},
		{"test_protocol_violations_total", "code", "R001", 1},
		{"test_events_total", "category", "click", 1},
		{"test_events_dropped_total", "reason", "no_handler", 1},
		{"test_batches_total", "status", "ok", 1},
	}
	for _, c := range checks {
		if got := counter(mfs[c.family], c.label, c.value); got != c.want {
			t.Errorf("%s{%s=%q} = %v, want %v", c.family, c.label, c.value, got, c.want)
		}
	}
	live := mfs["test_live_nodes"]
	if live == nil || live.GetMetric()[0].GetGauge().GetValue() != 12 {
		t.Errorf("live_nodes = %v", live)
	}
	hist := mfs["test_batch_duration_seconds"]
	if hist == nil || hist.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
		t.Errorf("batch_duration_seconds = %v", hist)
	}
}

func TestTracerWithoutProvider(t *testing.T) {
	tr := NewTracer("")
	ctx, span := tr.Start(context.Background(), "vrender.apply")
	if ctx == nil || span == nil {
		t.Fatal("Start returned nil")
	}
	End(span, errors.New("boom"))
}
