package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics wraps Prometheus collectors for rauc-health.
type Metrics struct {
	registry               *prometheus.Registry
	checkDurationSeconds   prometheus.Histogram
	checksTotal            prometheus.Counter
	failingServices        prometheus.Gauge
	statusFetchErrorsTotal prometheus.Counter
	outcomesTotal          *prometheus.CounterVec
	lastRunGauge           prometheus.Gauge
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		checkDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rauc_health_check_duration_seconds",
			Help:    "Duration of a single status fetch and evaluation in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		checksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rauc_health_checks_total",
			Help: "Total health checks performed during the session.",
		}),
		failingServices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rauc_health_failing_services",
			Help: "Required services not started at the last check.",
		}),
		statusFetchErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rauc_health_status_fetch_errors_total",
			Help: "Total failures to obtain a service status report.",
		}),
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rauc_health_outcomes_total",
			Help: "Terminal session outcomes by result.",
		}, []string{"result"}),
		lastRunGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rauc_health_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last completed session.",
		}),
	}

	registry.MustRegister(
		m.checkDurationSeconds,
		m.checksTotal,
		m.failingServices,
		m.statusFetchErrorsTotal,
		m.outcomesTotal,
		m.lastRunGauge,
	)

	return m
}

// WriteTextfile writes the registry in the text exposition format for the
// node exporter textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// ObserveCheck records one completed check and the failures it found.
func (m *Metrics) ObserveCheck(duration time.Duration, failing int) {
	if m == nil {
		return
	}
	m.checkDurationSeconds.Observe(duration.Seconds())
	m.checksTotal.Inc()
	m.failingServices.Set(float64(failing))
}

// IncStatusFetchErrors increments the status fetch error counter.
func (m *Metrics) IncStatusFetchErrors() {
	if m == nil {
		return
	}
	m.statusFetchErrorsTotal.Inc()
}

// RecordOutcome counts a terminal result and stamps the completion time.
func (m *Metrics) RecordOutcome(result string, finished time.Time) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(result).Inc()
	m.lastRunGauge.Set(float64(finished.Unix()))
}
