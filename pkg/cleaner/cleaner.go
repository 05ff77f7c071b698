package cleaner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"mercator-hq/cleaner/pkg/config"
)

// Options control a cleanup run.
type Options struct {
	// DryRun counts rows without deleting them.
	DryRun bool

	SkipTables  []string
	SkipColumns []string

	// AutoDiscover is the global discovery default; tables may override it.
	AutoDiscover *bool

	// StopOnError aborts the run on the first failed table.
	StopOnError bool

	// BatchPause is waited between two batches of one table.
	BatchPause time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// SinkFactory returns the row sink for an archive_path.
type SinkFactory func(archivePath string) (RowSink, error)

// Recorder receives run metrics.
type Recorder interface {
	ObserveBatch(table, mode, result string, duration time.Duration)
	AddRows(table, mode string, n int64)
	AddCycles(table string, n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveBatch(string, string, string, time.Duration) {}
func (nopRecorder) AddRows(string, string, int64)                      {}
func (nopRecorder) AddCycles(string, int)                              {}

// MultiRecorder fans metrics out to several recorders.
func MultiRecorder(rs ...Recorder) Recorder {
	return multiRecorder(rs)
}

type multiRecorder []Recorder

func (m multiRecorder) ObserveBatch(table, mode, result string, d time.Duration) {
	for _, r := range m {
		r.ObserveBatch(table, mode, result, d)
	}
}

func (m multiRecorder) AddRows(table, mode string, n int64) {
	for _, r := range m {
		r.AddRows(table, mode, n)
	}
}

func (m multiRecorder) AddCycles(table string, n int) {
	for _, r := range m {
		r.AddCycles(table, n)
	}
}

// Cleaner runs the configured tables one after another. It is not safe for
// concurrent runs.
type Cleaner struct {
	db       Database
	opts     Options
	sinks    SinkFactory
	recorder Recorder
	logger   *slog.Logger
	builder  *GraphBuilder
	engine   *Engine
}

// New creates a Cleaner.
func New(db Database, opts Options, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cleaner{
		db:       db,
		opts:     opts,
		recorder: nopRecorder{},
		logger:   logger.With("component", "cleaner"),
		builder:  NewGraphBuilder(db.Introspector(), db.Dialect(), logger),
		engine:   NewEngine(db.Dialect(), logger),
	}
}

// WithSinkFactory sets the archive sink factory.
func (c *Cleaner) WithSinkFactory(f SinkFactory) *Cleaner {
	c.sinks = f
	return c
}

// WithRecorder sets the metrics recorder.
func (c *Cleaner) WithRecorder(r Recorder) *Cleaner {
	if r != nil {
		c.recorder = r
	}
	return c
}

// TableCount is the per-table figure of a summary.
type TableCount struct {
	Count  int64 `json:"count"`
	DryRun bool  `json:"dry_run"`
}

// TableSummary is the outcome of cleaning one root table.
type TableSummary struct {
	Table       string
	RunID       string
	DryRun      bool
	Skipped     string // Reason the table was skipped, empty otherwise
	Totals      *Totals
	Batches     int
	Keys        int // Root keys processed
	Cycles      []CycleEvent
	Duration    time.Duration
	Interrupted bool
	Err         error
}

// Counts returns {table: {count, dry_run}} for every table touched.
func (s *TableSummary) Counts() map[string]TableCount {
	out := make(map[string]TableCount)
	for _, t := range s.Totals.Tables() {
		out[t] = TableCount{Count: s.Totals.Get(t), DryRun: s.DryRun}
	}
	return out
}

// RunSummary is the outcome of a whole run.
type RunSummary struct {
	RunID       string
	DryRun      bool
	Started     time.Time
	Duration    time.Duration
	Tables      []*TableSummary
	Interrupted bool
}

// Failed returns the number of tables that ended with an error.
func (r *RunSummary) Failed() int {
	n := 0
	for _, t := range r.Tables {
		if t.Err != nil {
			n++
		}
	}
	return n
}

// Run cleans tables in order. With StopOnError the first failure ends the
// run; otherwise failures are collected and joined. Cancelling ctx stops
// the run between batches.
func (c *Cleaner) Run(ctx context.Context, tables []config.TableConfig) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:   uuid.NewString(),
		DryRun:  c.opts.DryRun,
		Started: c.opts.Now(),
	}
	start := time.Now()
	defer func() { summary.Duration = time.Since(start) }()

	c.logger.Info("Cleanup run started",
		"run_id", summary.RunID,
		"dry_run", c.opts.DryRun,
		"tables", len(tables),
	)

	var errs []error
	for _, tc := range tables {
		if ctx.Err() != nil {
			summary.Interrupted = true
			c.logger.Warn("Cleanup run interrupted", "run_id", summary.RunID, "remaining_table", tc.Name)
			break
		}

		ts, err := c.cleanTable(ctx, tc, summary.RunID)
		summary.Tables = append(summary.Tables, ts)
		if ts.Interrupted {
			summary.Interrupted = true
		}
		if err != nil {
			c.logger.Error("Table cleanup failed", "table", tc.Name, "error", err)
			if c.opts.StopOnError {
				return summary, err
			}
			errs = append(errs, err)
		}
	}

	c.logger.Info("Cleanup run finished",
		"run_id", summary.RunID,
		"tables", len(summary.Tables),
		"failed", summary.Failed(),
		"interrupted", summary.Interrupted,
	)

	return summary, errors.Join(errs...)
}

// CleanTable cleans a single root table with a fresh run id.
func (c *Cleaner) CleanTable(ctx context.Context, tc config.TableConfig) (*TableSummary, error) {
	return c.cleanTable(ctx, tc, uuid.NewString())
}

// Plan builds the relation plan of a table without touching data.
func (c *Cleaner) Plan(ctx context.Context, tc config.TableConfig) (*Plan, error) {
	d := c.db.Dialect()
	manual, err := ManualRelations(tc.Name, tc.Related, d.DefaultSchema())
	if err != nil {
		return nil, err
	}
	return c.builder.Build(ctx, BuildOptions{
		Root:           tc.Name,
		RootKeyColumns: tc.KeyColumns,
		Manual:         manual,
		AutoDiscover:   tc.AutoDiscover(c.opts.AutoDiscover),
		ExcludeCascade: tc.ExcludeCascade(),
		SkipTables:     c.opts.SkipTables,
		SkipColumns:    c.opts.SkipColumns,
	})
}

// SkipReason returns why a table is not processed, or "".
func (c *Cleaner) SkipReason(tc config.TableConfig) string {
	if !tc.IsEnabled() {
		return "disabled"
	}
	schema := c.db.Dialect().DefaultSchema()
	qualified := QualifyTable(tc.Name, schema)
	_, short := SplitTable(qualified)
	for _, t := range c.opts.SkipTables {
		if t = strings.ToLower(t); t == short || QualifyTable(t, schema) == qualified {
			return "table in skip_tables"
		}
	}
	if tc.DateColumn != "" {
		for _, col := range c.opts.SkipColumns {
			if strings.EqualFold(col, tc.DateColumn) {
				return "date column in skip_columns"
			}
		}
	}
	return ""
}

func (c *Cleaner) cleanTable(ctx context.Context, tc config.TableConfig, runID string) (*TableSummary, error) {
	d := c.db.Dialect()
	table := QualifyTable(tc.Name, d.DefaultSchema())
	summary := &TableSummary{
		Table:  table,
		RunID:  runID,
		DryRun: c.opts.DryRun,
		Totals: NewTotals(),
	}
	start := time.Now()
	defer func() { summary.Duration = time.Since(start) }()

	if reason := c.SkipReason(tc); reason != "" {
		summary.Skipped = reason
		c.logger.Warn("Table skipped", "table", table, "reason", reason)
		return summary, nil
	}

	// Statements are never interrupted by cancellation; only the
	// statement timeout stops them. ctx is checked between batches.
	stmtCtx := context.WithoutCancel(ctx)

	plan, err := c.Plan(stmtCtx, tc)
	if err != nil {
		summary.Err = err
		return summary, err
	}
	summary.Cycles = plan.Cycles
	c.recorder.AddCycles(table, len(plan.Cycles))

	spec, err := c.batchSpec(tc, plan)
	if err != nil {
		summary.Err = err
		return summary, err
	}

	var sink RowSink
	if tc.Archive && !c.opts.DryRun {
		if c.sinks == nil {
			err := fmt.Errorf("archive enabled for %s but no archive sink is configured", table)
			summary.Err = err
			return summary, err
		}
		if sink, err = c.sinks(tc.ArchivePath); err != nil {
			err = fmt.Errorf("failed to open archive %q: %w", tc.ArchivePath, err)
			summary.Err = err
			return summary, err
		}
	}

	c.logger.Info("Table cleanup started",
		"table", table,
		"run_id", runID,
		"dry_run", c.opts.DryRun,
		"tables", strings.Join(plan.Tables(), ","),
		"cycles", len(plan.Cycles),
		"cutoff", spec.Cutoff,
	)

	var cursor Key
	for batch := 1; ; batch++ {
		if tc.MaxBatches > 0 && batch > tc.MaxBatches {
			c.logger.Info("Batch limit reached", "table", table, "max_batches", tc.MaxBatches)
			break
		}
		if ctx.Err() != nil {
			summary.Interrupted = true
			c.logger.Warn("Table cleanup interrupted between batches", "table", table, "batches", summary.Batches)
			break
		}

		keys, err := c.runBatch(stmtCtx, tc, plan, spec, cursor, sink, runID, batch, summary.Totals)
		if err != nil {
			err = &BatchError{Table: table, Batch: batch, Cause: err}
			summary.Err = err
			return summary, err
		}
		if len(keys) == 0 {
			break
		}

		cursor = keys[len(keys)-1]
		summary.Batches++
		summary.Keys += len(keys)

		if !c.pause(ctx) {
			summary.Interrupted = true
			break
		}
	}

	c.logger.Info("Table cleanup finished",
		"table", table,
		"dry_run", c.opts.DryRun,
		"batches", summary.Batches,
		"keys", summary.Keys,
		"rows", summary.Totals.Sum(),
	)
	return summary, nil
}

func (c *Cleaner) batchSpec(tc config.TableConfig, plan *Plan) (BatchSpec, error) {
	d := c.db.Dialect()
	where, err := CompileConditions(d, tc.Conditions)
	if err != nil {
		return BatchSpec{}, fmt.Errorf("table %s: %w", tc.Name, err)
	}

	spec := BatchSpec{
		Table:       plan.Root.Table,
		KeyColumns:  plan.Root.KeyColumns,
		Where:       where,
		BatchSize:   tc.BatchSize,
		ColumnTypes: plan.Root.ColumnTypes,
	}
	if spec.BatchSize <= 0 {
		spec.BatchSize = config.DefaultBatchSize
	}
	if !tc.DisableCutoff {
		spec.DateColumn = strings.ToLower(tc.DateColumn)
		if _, ok := plan.Root.ColumnTypes[spec.DateColumn]; !ok {
			return BatchSpec{}, NewInvalidRelationError(plan.Root.Table,
				fmt.Sprintf("date column %q does not exist", tc.DateColumn))
		}
		cutoff := Cutoff(c.opts.Now(), tc.ExpireDays)
		spec.Cutoff = &cutoff
	}
	return spec, nil
}

// runBatch selects and processes one batch in its own transaction and
// returns the selected keys. Archived rows are written only after commit.
func (c *Cleaner) runBatch(ctx context.Context, tc config.TableConfig, plan *Plan, spec BatchSpec, cursor Key,
	sink RowSink, runID string, batch int, totals *Totals) (keys []Key, err error) {
	mode := "live"
	if c.opts.DryRun {
		mode = "dry_run"
	}
	start := time.Now()
	result := "ok"
	defer func() {
		if err != nil {
			result = "error"
			if IsStatementTimeout(err) {
				result = "timeout"
			}
		}
		if err != nil || len(keys) > 0 {
			c.recorder.ObserveBatch(spec.Table, mode, result, time.Since(start))
		}
	}()

	tx, err := c.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			c.logger.Warn("Rollback failed", "table", spec.Table, "error", rbErr)
		}
	}()

	if tc.TimeOut > 0 {
		if err := tx.SetStatementTimeout(ctx, tc.Timeout()); err != nil {
			return nil, fmt.Errorf("failed to set statement timeout: %w", err)
		}
	}

	keys, err = SelectBatch(ctx, tx, c.db.Dialect(), spec, cursor)
	if err != nil || len(keys) == 0 {
		return nil, err
	}

	var archiver *Archiver
	if sink != nil {
		archiver = NewArchiver(sink, runID, batch)
	}

	batchTotals, err := c.engine.Run(ctx, tx, plan, keys, RunOptions{DryRun: c.opts.DryRun, Archiver: archiver})
	if err != nil {
		if archiver != nil {
			archiver.Discard()
		}
		return nil, err
	}

	if !c.opts.DryRun {
		if err := tx.Commit(); err != nil {
			if archiver != nil {
				archiver.Discard()
			}
			return nil, fmt.Errorf("failed to commit: %w", err)
		}
		committed = true
	}

	// Committed rows count even when archiving them fails below.
	totals.Merge(batchTotals)
	for _, t := range batchTotals.Tables() {
		c.recorder.AddRows(t, mode, batchTotals.Get(t))
	}

	if archiver != nil && !c.opts.DryRun {
		if err := archiver.Flush(ctx); err != nil {
			return nil, fmt.Errorf("rows deleted but archiving failed: %w", err)
		}
	}

	c.logger.Info("Batch processed",
		"table", spec.Table,
		"batch", batch,
		"keys", len(keys),
		"rows", batchTotals.Sum(),
		"dry_run", c.opts.DryRun,
	)
	return keys, nil
}

// pause waits BatchPause and reports false when ctx was cancelled.
func (c *Cleaner) pause(ctx context.Context) bool {
	if c.opts.BatchPause <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(c.opts.BatchPause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
