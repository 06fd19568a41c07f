package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_eto"

// Metrics holds the Prometheus counters, histograms, and gauges for the refresh pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Refreshes       *prometheus.CounterVec // labels: outcome={success,invalid_site,feed_error,aggregate_error,eto_error}
	RefreshDuration prometheus.Histogram
	FeedRequests    *prometheus.CounterVec // labels: provider, outcome={success,error}
	DayReports      *prometheus.CounterVec // labels: status={ok,no_data}
	SinkErrors      prometheus.Counter
	EToMillimeters  *prometheus.GaugeVec // labels: location, day
}

func newMetrics() *Metrics {
	return &Metrics{
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Forecast refreshes by outcome.",
		}, []string{"outcome"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete fetch-aggregate-publish cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		FeedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_requests_total",
			Help:      "Forecast feed requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		DayReports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "day_reports_total",
			Help:      "Rendered day slots by status.",
		}, []string{"status"}),
		SinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Day reports a sink failed to accept.",
		}),
		EToMillimeters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "eto_millimeters",
			Help:      "Latest reference evapotranspiration per location and day ordinal, mm/day.",
		}, []string{"location", "day"}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Refreshes,
		m.RefreshDuration,
		m.FeedRequests,
		m.DayReports,
		m.SinkErrors,
		m.EToMillimeters,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func (m *Metrics) RefreshDone(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(outcome).Inc()
	m.RefreshDuration.Observe(took.Seconds())
}

func (m *Metrics) FeedRequest(provider string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.FeedRequests.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) DayReported(status string) {
	if m == nil {
		return
	}
	m.DayReports.WithLabelValues(status).Inc()
}

func (m *Metrics) SinkFailed() {
	if m == nil {
		return
	}
	m.SinkErrors.Inc()
}

func (m *Metrics) SetETo(location, day string, mm float64) {
	if m == nil {
		return
	}
	m.EToMillimeters.WithLabelValues(location, day).Set(mm)
}
