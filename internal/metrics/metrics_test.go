package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveOperation("login", "success")
	m.ObserveOperation("login", "invalid_credentials")
	m.ObserveOperation("login", "invalid_credentials")
	m.ObserveNotification("welcome", nil)
	m.ObserveNotification("welcome", errors.New("smtp down"))
	m.ObserveRateLimited("verify_email")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("login", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("login", "invalid_credentials")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("welcome", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited.WithLabelValues("verify_email")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("login", "success")
		m.ObserveNotification("welcome", nil)
		m.ObserveRateLimited("login")
	})
}
