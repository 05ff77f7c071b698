package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BatchMetrics tracks per-batch cleanup work.
//
// Metrics:
//   - cleaner_batches_total: Batches processed by table, mode, result
//   - cleaner_batch_duration_seconds: Batch duration histogram
//   - cleaner_rows_total: Rows deleted (live) or counted (dry_run) by table
//   - cleaner_cycles_total: Relation cycles dropped while planning
type BatchMetrics struct {
	batchesTotal  *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	rowsTotal     *prometheus.CounterVec
	cyclesTotal   *prometheus.CounterVec
}

// NewBatchMetrics creates and registers batch metrics with the provided registry.
func NewBatchMetrics(namespace string, registry prometheus.Registerer) *BatchMetrics {
	bm := &BatchMetrics{
		batchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Total number of cleanup batches by result",
			},
			[]string{"table", "mode", "result"},
		),

		batchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Duration of cleanup batches in seconds",
				// Batches range from milliseconds to the statement timeout.
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 300},
			},
			[]string{"table", "mode"},
		),

		rowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_total",
				Help:      "Total number of rows deleted or counted",
			},
			[]string{"table", "mode"},
		),

		cyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Total number of relation cycles dropped while planning",
			},
			[]string{"table"},
		),
	}

	registry.MustRegister(
		bm.batchesTotal,
		bm.batchDuration,
		bm.rowsTotal,
		bm.cyclesTotal,
	)

	return bm
}

// RecordBatch records one finished batch.
func (bm *BatchMetrics) RecordBatch(table, mode, result string, duration time.Duration) {
	bm.batchesTotal.WithLabelValues(table, mode, result).Inc()
	bm.batchDuration.WithLabelValues(table, mode).Observe(duration.Seconds())
}

// AddRows adds n rows for table.
func (bm *BatchMetrics) AddRows(table, mode string, n int64) {
	if n <= 0 {
		return
	}
	bm.rowsTotal.WithLabelValues(table, mode).Add(float64(n))
}

// AddCycles adds n dropped cycles for the root table.
func (bm *BatchMetrics) AddCycles(table string, n int) {
	if n <= 0 {
		return
	}
	bm.cyclesTotal.WithLabelValues(table).Add(float64(n))
}
