// Package metrics exposes the engine's operational counters as Prometheus
// collectors.  Everything registers against an injected registerer so tests
// can use a private registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions       *prometheus.CounterVec
	Alerts          *prometheus.CounterVec
	RiskScore       prometheus.Histogram
	Anomalies       prometheus.Counter
	LockTransitions *prometheus.CounterVec
	CaptureFailures prometheus.Counter
	ChannelFailures *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "facegate_decisions_total",
				Help: "Access decisions by outcome and reason",
			},
			[]string{"outcome", "reason"}, // outcome: granted, denied
		),

		Alerts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "facegate_alerts_total",
				Help: "Alerts dispatched by type and severity",
			},
			[]string{"type", "severity"},
		),

		RiskScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "facegate_risk_score",
				Help:    "Risk scores computed per identification event",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
		),

		Anomalies: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "facegate_anomalies_total",
				Help: "Events whose risk score exceeded the anomaly threshold",
			},
		),

		LockTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "facegate_lock_transitions_total",
				Help: "Lock commands issued by kind",
			},
			[]string{"kind"}, // kind: unlock, manual_unlock, manual_lock
		),

		CaptureFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "facegate_capture_failures_total",
				Help: "Polling cycles where the identity source yielded no frame",
			},
		),

		ChannelFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "facegate_channel_failures_total",
				Help: "Notification channel send failures",
			},
			[]string{"channel"},
		),
	}
}

func (m *Metrics) RecordDecision(granted bool, reason string) {
	outcome := "denied"
	if granted {
		outcome = "granted"
	}
	m.Decisions.WithLabelValues(outcome, reason).Inc()
}

func (m *Metrics) RecordAlert(typ, severity string) {
	m.Alerts.WithLabelValues(typ, severity).Inc()
}

func (m *Metrics) RecordRisk(score float64, anomalous bool) {
	m.RiskScore.Observe(score)
	if anomalous {
		m.Anomalies.Inc()
	}
}
