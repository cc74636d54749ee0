package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records the outcome of processed payment-provider events.
type WebhookMetrics struct {
	processed *prometheus.CounterVec
	duplicate *prometheus.CounterVec
	malformed *prometheus.CounterVec
}

// NewWebhookMetrics registers webhook counters on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_processed_total",
		Help: "Webhook events that resulted in a state transition.",
	}, []string{"event_type"})
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_duplicate_total",
		Help: "Webhook events acknowledged as redeliveries without writes.",
	}, []string{"event_type"})
	malformed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_malformed_total",
		Help: "Webhook events acknowledged despite missing or invalid metadata.",
	}, []string{"event_type"})
	reg.MustRegister(processed, duplicate, malformed)
	return &WebhookMetrics{
		processed: processed,
		duplicate: duplicate,
		malformed: malformed,
	}
}

// IncProcessed increments the processed counter for the event type.
func (m *WebhookMetrics) IncProcessed(eventType string) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncDuplicate increments the duplicate counter for the event type.
func (m *WebhookMetrics) IncDuplicate(eventType string) {
	if m == nil || m.duplicate == nil {
		return
	}
	m.duplicate.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncMalformed increments the malformed counter for the event type.
func (m *WebhookMetrics) IncMalformed(eventType string) {
	if m == nil || m.malformed == nil {
		return
	}
	m.malformed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func normalizeLabel(eventType string) string {
	if eventType == "" {
		return "unknown"
	}
	return eventType
}
