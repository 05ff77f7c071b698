package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/cleaner/pkg/cleaner"
	"mercator-hq/cleaner/pkg/config"
)

// Run results.
const (
	ResultSuccess     = "success"
	ResultFailed      = "failed"
	ResultInterrupted = "interrupted"
)

// Collector owns the cleaner's Prometheus metrics and implements
// cleaner.Recorder. A disabled collector records nothing.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	batchMetrics *BatchMetrics
	runMetrics   *RunMetrics

	cardinalityLimiter *CardinalityLimiter
}

var _ cleaner.Recorder = (*Collector)(nil)

// otherTable replaces table labels past the cardinality limit.
const otherTable = "other"

// NewCollector creates a collector with its own registry when registry is nil.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		batchMetrics:       NewBatchMetrics(cfg.Namespace, registry),
		runMetrics:         NewRunMetrics(cfg.Namespace, registry),
		cardinalityLimiter: NewCardinalityLimiter(1000),
	}
}

// ObserveBatch records one batch.
func (c *Collector) ObserveBatch(table, mode, result string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.batchMetrics.RecordBatch(c.tableLabel(table), mode, result, duration)
}

// AddRows records rows deleted or counted for a table.
func (c *Collector) AddRows(table, mode string, n int64) {
	if !c.config.Enabled {
		return
	}
	c.batchMetrics.AddRows(c.tableLabel(table), mode, n)
}

// AddCycles records relation cycles dropped while planning a root table.
func (c *Collector) AddCycles(table string, n int) {
	if !c.config.Enabled {
		return
	}
	c.batchMetrics.AddCycles(c.tableLabel(table), n)
}

// RecordRun records the outcome of a whole run.
func (c *Collector) RecordRun(summary *cleaner.RunSummary, err error) {
	if !c.config.Enabled || summary == nil {
		return
	}
	result := ResultSuccess
	switch {
	case err != nil || summary.Failed() > 0:
		result = ResultFailed
	case summary.Interrupted:
		result = ResultInterrupted
	}
	c.runMetrics.RecordRun(result, summary.Started, summary.Duration)
}

func (c *Collector) tableLabel(table string) string {
	if !c.cardinalityLimiter.Allow(fmt.Sprintf("table:%s", table)) {
		return otherTable
	}
	return table
}

// CardinalityLimiter caps the number of distinct label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet is already known or still fits under the
// limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
