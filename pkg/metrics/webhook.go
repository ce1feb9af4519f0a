package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Webhook outcomes.
const (
	WebhookOutcomeProcessed = "processed"
	WebhookOutcomeDuplicate = "duplicate"
	WebhookOutcomeIgnored   = "ignored"
	WebhookOutcomeFailed    = "failed"
	WebhookOutcomeRejected  = "rejected"
)

// WebhookMetrics counts Stripe deliveries by event type and outcome.
type WebhookMetrics struct {
	deliveries *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook counter on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stripe_webhook_deliveries_total",
		Help:      "Stripe webhook deliveries by event type and outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(deliveries)
	return &WebhookMetrics{deliveries: deliveries}
}

// Observe increments the delivery counter.
func (w *WebhookMetrics) Observe(eventType, outcome string) {
	if w == nil || w.deliveries == nil {
		return
	}
	w.deliveries.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
