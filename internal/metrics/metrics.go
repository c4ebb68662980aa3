// Package metrics exposes Prometheus counters for auth operations and email
// delivery. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	operations    *prometheus.CounterVec
	notifications *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "securesign",
			Subsystem: "auth",
			Name:      "operations_total",
			Help:      "Auth operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "securesign",
			Subsystem: "email",
			Name:      "notifications_total",
			Help:      "Email notifications by template and result.",
		}, []string{"template", "result"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "securesign",
			Subsystem: "ratelimit",
			Name:      "rejected_total",
			Help:      "Requests rejected by the attempt limiter.",
		}, []string{"action"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.notifications, m.rateLimited)
	}
	return m
}

// ObserveOperation counts one finished operation; outcome is "success" or an
// error kind.
func (m *Metrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveNotification(template string, err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.notifications.WithLabelValues(template, result).Inc()
}

func (m *Metrics) ObserveRateLimited(action string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(action).Inc()
}

// OperationCounter returns the counter behind ObserveOperation for one label
// pair, for inspection with prometheus testutil.
func (m *Metrics) OperationCounter(operation, outcome string) prometheus.Counter {
	return m.operations.WithLabelValues(operation, outcome)
}
