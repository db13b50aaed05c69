package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/telegram-mtproto/mtclient/internal/metrics"
)

func TestNewCollectorRegistersAllMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	if c.HandshakeAttempts == nil {
		t.Error("HandshakeAttempts is nil")
	}
	if c.HandshakeDuration == nil {
		t.Error("HandshakeDuration is nil")
	}
	if c.TransportBytes == nil {
		t.Error("TransportBytes is nil")
	}

	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
}

func TestRecordHandshakeIncrementsCounterAndHistogram(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RecordHandshake(metrics.OutcomeOK, 120*time.Millisecond)
	c.RecordHandshake(metrics.OutcomeSecurityError, 5*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	var attemptsTotal float64
	var sawHistogram bool
	for _, mf := range families {
		switch mf.GetName() {
		case "mtclient_handshake_attempts_total":
			for _, m := range mf.GetMetric() {
				attemptsTotal += m.GetCounter().GetValue()
			}
		case "mtclient_handshake_duration_seconds":
			sawHistogram = true
			for _, m := range mf.GetMetric() {
				if got := m.GetHistogram().GetSampleCount(); got != 2 {
					t.Errorf("histogram sample count = %d, want 2", got)
				}
			}
		}
	}
	if attemptsTotal != 2 {
		t.Fatalf("attempts total = %v, want 2", attemptsTotal)
	}
	if !sawHistogram {
		t.Fatalf("did not find mtclient_handshake_duration_seconds family")
	}
}

func TestAddTransportBytesLabelsByModeAndDirection(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.AddTransportBytes("abridged", metrics.DirectionSent, 9)
	c.AddTransportBytes("abridged", metrics.DirectionReceived, 8)
	c.AddTransportBytes("full", metrics.DirectionSent, 16)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	var got []*dto.Metric
	for _, mf := range families {
		if mf.GetName() == "mtclient_transport_bytes_total" {
			got = mf.GetMetric()
		}
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 labeled series, got %d", len(got))
	}
}
