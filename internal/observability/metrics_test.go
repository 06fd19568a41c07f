package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetricsForTesting()

	m.RefreshDone("success", 250*time.Millisecond)
	m.RefreshDone("feed_error", time.Second)
	m.FeedRequest("openweathermap", nil)
	m.FeedRequest("openweathermap", errors.New("rate limited"))
	m.FeedRequest("openmeteo", nil)
	m.DayReported("ok")
	m.DayReported("no_data")
	m.DayReported("no_data")
	m.SinkFailed()
	m.SetETo("Paris:FR", "1", 5.55)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues("feed_error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RefreshDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedRequests.WithLabelValues("openweathermap", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedRequests.WithLabelValues("openmeteo", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DayReports.WithLabelValues("no_data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkErrors))
	assert.Equal(t, 5.55, testutil.ToFloat64(m.EToMillimeters.WithLabelValues("Paris:FR", "1")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RefreshDone("success", time.Second)
		m.FeedRequest("openmeteo", nil)
		m.DayReported("ok")
		m.SinkFailed()
		m.SetETo("Paris:FR", "0", 1)
	})
}
