package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the webhook intake and
// auto-response pipeline. A nil receiver is a no-op so wiring stays optional.
type PipelineMetrics struct {
	webhookTotal      *prometheus.CounterVec
	responsesTotal    *prometheus.CounterVec
	pipelineLatency   *prometheus.HistogramVec
	extractionLatency prometheus.Histogram
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Total WhatsApp webhook events received",
		}, []string{"event_type", "status"}),
		responsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "responder",
			Name:      "responses_total",
			Help:      "Total automated responses attempted",
		}, []string{"status"}),
		pipelineLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "responder",
			Name:      "pipeline_latency_seconds",
			Help:      "End to end latency of message processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		extractionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "responder",
			Name:      "extraction_latency_seconds",
			Help:      "Latency of AI intent extraction calls",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookTotal, m.responsesTotal, m.pipelineLatency, m.extractionLatency)
	return m
}

func (m *PipelineMetrics) ObserveWebhookEvent(eventType, status string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(eventType, status).Inc()
}

func (m *PipelineMetrics) ObserveResponse(status string, seconds float64) {
	if m == nil {
		return
	}
	m.responsesTotal.WithLabelValues(status).Inc()
	m.pipelineLatency.WithLabelValues(status).Observe(seconds)
}

func (m *PipelineMetrics) ObserveExtraction(seconds float64) {
	if m == nil {
		return
	}
	m.extractionLatency.Observe(seconds)
}
