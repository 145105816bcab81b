package authorizer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/volaas/volauth"
)

type decisionMetrics struct {
	decisions *prometheus.CounterVec
}

// WithMetrics registers the engine's decision counter with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(a *Authorizer) {
		m := &decisionMetrics{
			decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "volauth",
				Subsystem: "authorizer",
				Name:      "decisions_total",
				Help:      "Count of authorization decisions by operation, outcome and deny reason.",
			}, []string{"operation", "outcome", "reason"}),
		}
		reg.MustRegister(m.decisions)
		a.metrics = m
	}
}

func (m *decisionMetrics) record(op volauth.Operation, reason volauth.DenyReason) {
	if m == nil {
		return
	}
	outcome := "allow"
	if reason != "" {
		outcome = "deny"
	}
	m.decisions.WithLabelValues(string(op), outcome, string(reason)).Inc()
}
