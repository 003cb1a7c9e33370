package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPipelineMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)
	m.ObserveWebhookEvent("message", "processed")
	m.ObserveWebhookEvent("message", "processed")
	m.ObserveResponse("Sent", 0.25)
	m.ObserveExtraction(0.1)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var webhook *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "concierge_webhook_events_total" {
			webhook = mf
		}
	}
	if webhook == nil {
		t.Fatal("webhook counter not registered")
	}
	if got := webhook.GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Errorf("expected counter 2, got %v", got)
	}
}

func TestPipelineMetricsNilSafe(t *testing.T) {
	var m *PipelineMetrics
	m.ObserveWebhookEvent("message", "processed")
	m.ObserveResponse("Failed", 0.1)
	m.ObserveExtraction(0.1)
}
