package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSearch("phone", time.Millisecond)
		m.IncrementCheckinItem("recorded")
		m.IncrementCodeSpaceExhausted()
	})
}

func TestCounters(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())
	m.IncrementCheckinItem("recorded")
	m.IncrementCheckinItem("recorded")
	m.IncrementCheckinItem("duplicate_checkin")
	m.IncrementSearchBudgetExceeded()

	assert.Equal(t, 2.0, counterValue(t, m.CheckinItems.WithLabelValues("recorded")))
	assert.Equal(t, 1.0, counterValue(t, m.CheckinItems.WithLabelValues("duplicate_checkin")))
	assert.Equal(t, 1.0, counterValue(t, m.SearchBudgetExceeded))
}
