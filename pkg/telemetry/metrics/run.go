package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RunMetrics tracks whole cleanup runs.
//
// Metrics:
//   - cleaner_runs_total: Runs by result ("success", "failed", "interrupted")
//   - cleaner_last_run_timestamp_seconds: Start time of the last run
//   - cleaner_last_run_duration_seconds: Duration of the last run
//   - cleaner_last_success_timestamp_seconds: Start time of the last successful run
type RunMetrics struct {
	runsTotal       *prometheus.CounterVec
	lastRunTime     prometheus.Gauge
	lastRunDuration prometheus.Gauge
	lastSuccessTime prometheus.Gauge
}

// NewRunMetrics creates and registers run metrics with the provided registry.
func NewRunMetrics(namespace string, registry prometheus.Registerer) *RunMetrics {
	rm := &RunMetrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of cleanup runs by result",
			},
			[]string{"result"},
		),
		lastRunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last cleanup run started",
		}),
		lastRunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last cleanup run in seconds",
		}),
		lastSuccessTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the last successful cleanup run started",
		}),
	}

	registry.MustRegister(
		rm.runsTotal,
		rm.lastRunTime,
		rm.lastRunDuration,
		rm.lastSuccessTime,
	)

	return rm
}

// RecordRun records a finished run.
func (rm *RunMetrics) RecordRun(result string, started time.Time, duration time.Duration) {
	rm.runsTotal.WithLabelValues(result).Inc()
	rm.lastRunTime.Set(float64(started.Unix()))
	rm.lastRunDuration.Set(duration.Seconds())
	if result == ResultSuccess {
		rm.lastSuccessTime.Set(float64(started.Unix()))
	}
}
