package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// BatchProgress prints one line per finished batch. It implements
// cleaner.Recorder so it can be combined with the metrics collector.
type BatchProgress struct {
	mu      sync.Mutex
	writer  io.Writer
	batches map[string]int
	rows    map[string]int64
}

// NewBatchProgress creates a progress printer writing to w.
// If w is nil, it defaults to os.Stderr.
func NewBatchProgress(w io.Writer) *BatchProgress {
	if w == nil {
		w = os.Stderr
	}
	return &BatchProgress{
		writer:  w,
		batches: make(map[string]int),
		rows:    make(map[string]int64),
	}
}

// ObserveBatch prints the finished batch of a root table.
func (p *BatchProgress) ObserveBatch(table, mode, result string, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.batches[table]++
	mark := "✓"
	if result != "ok" {
		mark = "✗"
	}
	fmt.Fprintf(p.writer, "%s %s batch %d %s in %s (%d rows so far)\n",
		mark, table, p.batches[table], result, duration.Round(time.Millisecond), p.rows[table])
}

// AddRows accumulates rows per table.
func (p *BatchProgress) AddRows(table, mode string, n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows[table] += n
}

// AddCycles prints dropped cycles.
func (p *BatchProgress) AddCycles(table string, n int) {
	if n == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.writer, "! %s: %d relation cycle(s) dropped\n", table, n)
}
