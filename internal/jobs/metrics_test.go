package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("receiving:recorded").End(nil))
	err := errors.New("boom")
	require.ErrorIs(t, m.Track("receiving:recorded").End(err), err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("receiving:recorded", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("receiving:recorded", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("receiving:recorded")))
}

func TestObserveFulfillment(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveFulfillment("over_delivered")
	m.ObserveFulfillment("over_delivered")
	m.ObserveFulfillment("")
	require.Equal(t, 2.0, testutil.ToFloat64(m.fulfillment.WithLabelValues("over_delivered")))

	var nilMetrics *Metrics
	nilMetrics.ObserveFulfillment("complete")
	require.NoError(t, nilMetrics.Track("x").End(nil))
}
