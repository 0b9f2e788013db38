package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics counts fulfillment and spend outcomes.
type LedgerMetrics struct {
	fulfillments *prometheus.CounterVec
	spends       *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	fulfillments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillments_total",
		Help: "Checkout fulfillment attempts by catalog kind and outcome.",
	}, []string{"kind", "outcome"})
	spends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "token_spends_total",
		Help: "Wallet spend attempts by kind and outcome.",
	}, []string{"kind", "outcome"})
	reg.MustRegister(fulfillments, spends)
	return &LedgerMetrics{
		fulfillments: fulfillments,
		spends:       spends,
	}
}

// IncFulfillment increments the fulfillment counter.
func (m *LedgerMetrics) IncFulfillment(kind, outcome string) {
	if m == nil || m.fulfillments == nil {
		return
	}
	m.fulfillments.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

// IncSpend increments the spend counter.
func (m *LedgerMetrics) IncSpend(kind, outcome string) {
	if m == nil || m.spends == nil {
		return
	}
	m.spends.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
