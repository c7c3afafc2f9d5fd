package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOutboxMetricsObserveBatch(t *testing.T) {
	m := NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())

	m.ObserveBatch("ok", 7, 20*time.Millisecond)
	m.ObserveBatch("ok", 3, 10*time.Millisecond)
	m.HandlerError("lead_converted")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.dispatch.WithLabelValues("ok")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.backlog))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.handlerErrors.WithLabelValues("lead_converted")))
}
