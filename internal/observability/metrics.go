// Package observability holds the prometheus instrumentation shared across
// the reconciliation pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

type Metrics struct {
	registry *prometheus.Registry

	// WebhookEvents counts classified deliveries by gateway and outcome
	// (reconciled, unsupported, ignored, rejected, failed).
	WebhookEvents *prometheus.CounterVec
	// CatchupPayments counts payments touched by the bulk scan by outcome.
	CatchupPayments *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campuspay",
			Name:      "webhook_events_total",
			Help:      "Webhook deliveries by gateway and outcome.",
		}, []string{"gateway", "outcome"}),
		CatchupPayments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campuspay",
			Name:      "catchup_payments_total",
			Help:      "Payments processed by the reconciliation catch-up scan.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(m.WebhookEvents, m.CatchupPayments)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

var Module = fx.Module("observability",
	fx.Provide(NewMetrics),
)
