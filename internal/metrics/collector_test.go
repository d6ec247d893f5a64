package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/menhera-org/etherip-rs/internal/metrics"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	if c.FramesSent == nil || c.FramesReceived == nil || c.BytesSent == nil ||
		c.BytesReceived == nil || c.FramesDropped == nil || c.LinksConfigured == nil ||
		c.ReloadsTotal == nil {
		t.Fatal("NewCollector returned a Collector with a nil metric")
	}

	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
}

func TestRecordSentReceived(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RecordSent("tap0", 64)
	c.RecordSent("tap0", 100)
	c.RecordReceived("tap0", 1500)

	if got := counterValue(t, c.FramesSent, "tap0"); got != 2 {
		t.Errorf("FramesSent = %v, want 2", got)
	}
	if got := counterValue(t, c.BytesSent, "tap0"); got != 164 {
		t.Errorf("BytesSent = %v, want 164", got)
	}
	if got := counterValue(t, c.FramesReceived, "tap0"); got != 1 {
		t.Errorf("FramesReceived = %v, want 1", got)
	}
	if got := counterValue(t, c.BytesReceived, "tap0"); got != 1500 {
		t.Errorf("BytesReceived = %v, want 1500", got)
	}
}

func TestRecordDropped(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RecordDropped("tap0", metrics.DropInvalidHeader)
	c.RecordDropped("", metrics.DropUnknownSource)
	c.RecordDropped("", metrics.DropUnknownSource)

	if got := counterValue(t, c.FramesDropped, "tap0", string(metrics.DropInvalidHeader)); got != 1 {
		t.Errorf("FramesDropped(tap0, invalid_header) = %v, want 1", got)
	}
	if got := counterValue(t, c.FramesDropped, "", string(metrics.DropUnknownSource)); got != 2 {
		t.Errorf("FramesDropped(\"\", unknown_source) = %v, want 2", got)
	}
}

func TestSetLinksConfiguredAndRecordReload(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.SetLinksConfigured(3)
	if got := gaugeValue(t, c.LinksConfigured); got != 3 {
		t.Errorf("LinksConfigured = %v, want 3", got)
	}

	c.RecordReload(true)
	c.RecordReload(false)
	c.RecordReload(true)

	if got := counterValue(t, c.ReloadsTotal, "success"); got != 2 {
		t.Errorf("ReloadsTotal(success) = %v, want 2", got)
	}
	if got := counterValue(t, c.ReloadsTotal, "failure"); got != 1 {
		t.Errorf("ReloadsTotal(failure) = %v, want 1", got)
	}
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}
	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}
