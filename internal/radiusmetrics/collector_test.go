package radiusmetrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/dlp-radius/goradius/internal/radiusmetrics"
	"github.com/dlp-radius/goradius/internal/radius"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := radiusmetrics.NewCollector(reg)

	if c.PacketsReceived == nil {
		t.Error("PacketsReceived is nil")
	}
	if c.PacketsReplied == nil {
		t.Error("PacketsReplied is nil")
	}
	if c.PacketsDropped == nil {
		t.Error("PacketsDropped is nil")
	}
	if c.AuthFailures == nil {
		t.Error("AuthFailures is nil")
	}
	if c.ClientLatency == nil {
		t.Error("ClientLatency is nil")
	}

	// Verify all metrics are registered by gathering them.
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
}

func TestPacketReceivedReplied(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := radiusmetrics.NewCollector(reg)

	c.PacketReceived("radius1", radius.CodeAccessRequest)
	c.PacketReceived("radius1", radius.CodeAccessRequest)
	c.PacketReplied("radius1", radius.CodeAccessAccept)

	if got := counterValue(t, c.PacketsReceived, "radius1", radius.CodeAccessRequest.String()); got != 2 {
		t.Errorf("PacketsReceived = %v, want 2", got)
	}
	if got := counterValue(t, c.PacketsReplied, "radius1", radius.CodeAccessAccept.String()); got != 1 {
		t.Errorf("PacketsReplied = %v, want 1", got)
	}
}

func TestPacketDroppedIncrementsAuthFailures(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := radiusmetrics.NewCollector(reg)

	c.PacketDropped("radius1", "malformed")
	c.PacketDropped("radius1", "auth-mismatch")
	c.PacketDropped("radius1", "auth-mismatch")

	if got := counterValue(t, c.PacketsDropped, "radius1", "malformed"); got != 1 {
		t.Errorf("PacketsDropped(malformed) = %v, want 1", got)
	}
	if got := counterValue(t, c.PacketsDropped, "radius1", "auth-mismatch"); got != 2 {
		t.Errorf("PacketsDropped(auth-mismatch) = %v, want 2", got)
	}

	// Only auth-mismatch drops also bump AuthFailures.
	authFailures, err := c.AuthFailures.GetMetricWithLabelValues("radius1")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	m := &dto.Metric{}
	if err := authFailures.Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := m.GetCounter().GetValue(); got != 2 {
		t.Errorf("AuthFailures = %v, want 2", got)
	}
}

func TestPacketDroppedUnrelatedReasonLeavesAuthFailuresAtZero(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := radiusmetrics.NewCollector(reg)

	c.PacketDropped("radius1", "unknown-host")

	authFailures, err := c.AuthFailures.GetMetricWithLabelValues("radius1")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	m := &dto.Metric{}
	if err := authFailures.Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := m.GetCounter().GetValue(); got != 0 {
		t.Errorf("AuthFailures = %v, want 0", got)
	}
}

func TestObserveClientLatency(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := radiusmetrics.NewCollector(reg)

	c.ObserveClientLatency("radius1", radius.CodeAccessRequest, 25*time.Millisecond)
	c.ObserveClientLatency("radius1", radius.CodeAccessRequest, 75*time.Millisecond)

	hist, err := c.ClientLatency.GetMetricWithLabelValues("radius1", radius.CodeAccessRequest.String())
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	m := &dto.Metric{}
	if err := hist.(prometheus.Histogram).Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := m.GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("SampleCount = %v, want 2", got)
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

// counterValue reads the current value of a CounterVec with the given labels.
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
