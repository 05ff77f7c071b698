package cleaner

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"mercator-hq/cleaner/pkg/dialect"
)

// DefaultChunkSize is the maximum number of tuples matched per statement.
const DefaultChunkSize = 1000

// Totals accumulates counted or deleted rows per table, in the order the
// tables were acted upon.
type Totals struct {
	order  []string
	counts map[string]int64
}

// NewTotals creates empty totals.
func NewTotals() *Totals {
	return &Totals{counts: make(map[string]int64)}
}

// Add adds n rows to table.
func (t *Totals) Add(table string, n int64) {
	if _, ok := t.counts[table]; !ok {
		t.order = append(t.order, table)
	}
	t.counts[table] += n
}

// Merge adds every table of other.
func (t *Totals) Merge(other *Totals) {
	for _, table := range other.order {
		t.Add(table, other.counts[table])
	}
}

// Get returns the rows recorded for table.
func (t *Totals) Get(table string) int64 {
	return t.counts[table]
}

// Tables returns the recorded tables in order.
func (t *Totals) Tables() []string {
	return slices.Clone(t.order)
}

// Sum returns the total over all tables.
func (t *Totals) Sum() int64 {
	var n int64
	for _, c := range t.counts {
		n += c
	}
	return n
}

// RunOptions control one cascade.
type RunOptions struct {
	// DryRun counts rows and never issues a DELETE.
	DryRun bool

	// Archiver, when set, receives full rows before they are deleted.
	Archiver *Archiver
}

// Engine counts or deletes a batch of root keys across a Plan. Children
// are always processed before their parent.
type Engine struct {
	dialect   dialect.Dialect
	logger    *slog.Logger
	chunkSize int
}

// NewEngine creates an Engine.
func NewEngine(d dialect.Dialect, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		dialect:   d,
		logger:    logger.With("component", "cleaner.cascade"),
		chunkSize: DefaultChunkSize,
	}
}

// WithChunkSize sets the number of tuples per statement.
func (e *Engine) WithChunkSize(n int) *Engine {
	if n > 0 {
		e.chunkSize = n
	}
	return e
}

type cascade struct {
	*Engine
	q      Querier
	opts   RunOptions
	totals *Totals
}

// Run processes keys of plan.Root within q's transaction. The first
// failing statement aborts the cascade; the caller rolls back.
func (e *Engine) Run(ctx context.Context, q Querier, plan *Plan, keys []Key, opts RunOptions) (*Totals, error) {
	c := &cascade{Engine: e, q: q, opts: opts, totals: NewTotals()}
	keys = dedupKeys(keys, true)
	if len(keys) == 0 {
		return c.totals, nil
	}
	if err := c.visit(ctx, plan.Root, keys, false, nil); err != nil {
		return nil, err
	}
	return c.totals, nil
}

// visit handles one node: resolve parent values per edge, process every
// child subtree, then count or delete the node's own rows. counted is set
// when the rows were already counted through the edge leading here.
func (c *cascade) visit(ctx context.Context, node *Node, keys []Key, counted bool, path []string) error {
	if slices.Contains(path, node.Table) {
		return fmt.Errorf("cascade revisited %s (path: %s)", node.Table, strings.Join(path, " -> "))
	}
	path = append(slices.Clone(path), node.Table)

	for _, edge := range node.Edges {
		rel := edge.Relation

		values, err := c.parentValues(ctx, node, keys, rel)
		if err != nil {
			return err
		}
		if len(values) == 0 {
			continue
		}

		child := edge.Child
		if c.opts.DryRun {
			n, err := c.countMatches(ctx, child.Table, rel, rel.ChildColumns, child.ColumnTypes, values, edge.Predicate)
			if err != nil {
				return err
			}
			c.totals.Add(child.Table, n)
			c.logger.Debug("Counted child rows", "relation", rel.String(), "rows", n)

			// Leaves need no keys: nothing below them to count.
			if len(child.Edges) == 0 {
				continue
			}
		}

		childKeys, err := c.selectColumns(ctx, child.Table, rel.String(), child.KeyColumns,
			rel.ChildColumns, child.ColumnTypes, values, edge.Predicate)
		if err != nil {
			return err
		}
		childKeys = dedupKeys(childKeys, false)
		if len(childKeys) == 0 {
			continue
		}

		if err := c.visit(ctx, child, childKeys, c.opts.DryRun, path); err != nil {
			return err
		}
	}

	return c.actOnSelf(ctx, node, keys, counted)
}

func (c *cascade) actOnSelf(ctx context.Context, node *Node, keys []Key, counted bool) error {
	if c.opts.DryRun {
		if counted {
			return nil
		}
		n, err := c.countMatches(ctx, node.Table, Relation{}, node.KeyColumns, node.ColumnTypes, keys, node.Filter)
		if err != nil {
			return err
		}
		c.totals.Add(node.Table, n)
		return nil
	}

	table := c.dialect.QuoteTable(node.Table)
	for _, chunk := range chunkKeys(keys, c.chunkSize) {
		match := And(matchPredicate(c.dialect, node.KeyColumns, node.ColumnTypes, chunk), parenthesize(node.Filter))

		if c.opts.Archiver != nil {
			rs, err := c.q.Query(ctx, "SELECT * FROM "+table+whereClause(match), match.Args...)
			if err != nil {
				return NewQueryError(node.Table, "", "archive", err)
			}
			c.opts.Archiver.Stage(node.Table, rs.Columns, rs.Rows)
		}

		n, err := c.q.Exec(ctx, "DELETE FROM "+table+whereClause(match), match.Args...)
		if err != nil {
			return NewQueryError(node.Table, "", "delete", err)
		}
		c.totals.Add(node.Table, n)
	}
	c.logger.Debug("Deleted rows", "table", node.Table, "rows", c.totals.Get(node.Table))
	return nil
}

// parentValues returns the distinct, NULL-free parent column tuples for
// rel. They are projected from the keys when the mapping uses key columns
// only, otherwise selected from the parent table.
func (c *cascade) parentValues(ctx context.Context, node *Node, keys []Key, rel Relation) ([]Key, error) {
	if idx, ok := columnIndexes(node.KeyColumns, rel.ParentColumns); ok {
		values := make([]Key, len(keys))
		for i, k := range keys {
			v := make(Key, len(idx))
			for j, p := range idx {
				v[j] = k[p]
			}
			values[i] = v
		}
		return dedupKeys(values, true), nil
	}

	values, err := c.selectColumns(ctx, node.Table, rel.String(), rel.ParentColumns,
		node.KeyColumns, node.ColumnTypes, keys, node.Filter)
	if err != nil {
		return nil, err
	}
	return dedupKeys(values, true), nil
}

// selectColumns selects cols from table for the rows whose matchCols are
// in tuples, chunked.
func (c *cascade) selectColumns(ctx context.Context, table, relation string, cols, matchCols []string,
	types map[string]string, tuples []Key, extra Predicate) ([]Key, error) {
	var out []Key
	for _, chunk := range chunkKeys(tuples, c.chunkSize) {
		where := And(matchPredicate(c.dialect, matchCols, types, chunk), parenthesize(extra))
		query := "SELECT " + quoteColumns(c.dialect, cols) + " FROM " + c.dialect.QuoteTable(table) + whereClause(where)

		rs, err := c.q.Query(ctx, query, where.Args...)
		if err != nil {
			return nil, NewQueryError(table, relation, "select", err)
		}
		out = append(out, rowsToKeys(rs.Rows)...)
	}
	return out, nil
}

// countMatches counts rows of table whose matchCols are in tuples.
func (c *cascade) countMatches(ctx context.Context, table string, rel Relation, matchCols []string,
	types map[string]string, tuples []Key, extra Predicate) (int64, error) {
	relation := ""
	if rel.ChildTable != "" {
		relation = rel.String()
	}

	var total int64
	for _, chunk := range chunkKeys(tuples, c.chunkSize) {
		where := And(matchPredicate(c.dialect, matchCols, types, chunk), parenthesize(extra))
		query := "SELECT COUNT(*) FROM " + c.dialect.QuoteTable(table) + whereClause(where)

		n, err := c.q.QueryCount(ctx, query, where.Args...)
		if err != nil {
			return 0, NewQueryError(table, relation, "count", err)
		}
		total += n
	}
	return total, nil
}

func parenthesize(p Predicate) Predicate {
	if p.IsEmpty() {
		return p
	}
	return Predicate{SQL: "(" + p.SQL + ")", Args: p.Args}
}
