package cleaner

import (
	"context"
	"fmt"
	"slices"
)

// RowBatch is the set of archived rows of one table for one transaction.
type RowBatch struct {
	Table    string
	Columns  []string
	Rows     [][]any
	RunID    string
	Sequence int // Batch number within the run, 1-based
}

// RowSink persists archived rows. It is only called after the owning
// transaction committed.
type RowSink interface {
	WriteRows(ctx context.Context, batch RowBatch) error
}

type stagedTable struct {
	columns []string
	rows    [][]any
}

// Archiver buffers rows selected before deletion and writes them to the
// sink once the transaction committed. It belongs to one transaction and
// is not safe for concurrent use.
type Archiver struct {
	sink     RowSink
	runID    string
	sequence int

	order   []string
	buffers map[string]*stagedTable
	flushed bool
}

// NewArchiver creates an archiver for one batch transaction.
func NewArchiver(sink RowSink, runID string, sequence int) *Archiver {
	return &Archiver{
		sink:     sink,
		runID:    runID,
		sequence: sequence,
		buffers:  make(map[string]*stagedTable),
	}
}

// Stage appends rows to the table's buffer. No I/O happens.
func (a *Archiver) Stage(table string, columns []string, rows [][]any) {
	if len(rows) == 0 {
		return
	}
	buf, ok := a.buffers[table]
	if !ok {
		buf = &stagedTable{columns: slices.Clone(columns)}
		a.buffers[table] = buf
		a.order = append(a.order, table)
	}
	buf.rows = append(buf.rows, rows...)
}

// Staged returns the number of rows buffered for table.
func (a *Archiver) Staged(table string) int {
	if buf, ok := a.buffers[table]; ok {
		return len(buf.rows)
	}
	return 0
}

// Flush writes every buffered table to the sink, in staging order, and
// clears the buffers. It must be called once, after commit.
func (a *Archiver) Flush(ctx context.Context) error {
	if a.flushed {
		return fmt.Errorf("archive for batch %d already flushed", a.sequence)
	}
	a.flushed = true
	defer a.Discard()

	for _, table := range a.order {
		buf := a.buffers[table]
		err := a.sink.WriteRows(ctx, RowBatch{
			Table:    table,
			Columns:  buf.columns,
			Rows:     buf.rows,
			RunID:    a.runID,
			Sequence: a.sequence,
		})
		if err != nil {
			return fmt.Errorf("failed to archive %d rows of %s: %w", len(buf.rows), table, err)
		}
	}
	return nil
}

// Discard drops every buffered row without writing it.
func (a *Archiver) Discard() {
	a.order = nil
	a.buffers = make(map[string]*stagedTable)
}
