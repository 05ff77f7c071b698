package cleaner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mercator-hq/cleaner/pkg/dialect"
)

// fakeQuerier answers statements from scripted responses, matched by SQL
// substring in registration order, and records every statement.
type fakeQuerier struct {
	responses []fakeResponse
	calls     []fakeCall
}

type fakeResponse struct {
	contains string
	result   *ResultSet
	count    int64
	err      error
}

type fakeCall struct {
	query string
	args  []any
}

func (f *fakeQuerier) on(contains string, result *ResultSet) *fakeQuerier {
	f.responses = append(f.responses, fakeResponse{contains: contains, result: result})
	return f
}

func (f *fakeQuerier) onCount(contains string, n int64) *fakeQuerier {
	f.responses = append(f.responses, fakeResponse{contains: contains, count: n})
	return f
}

func (f *fakeQuerier) onError(contains string, err error) *fakeQuerier {
	f.responses = append(f.responses, fakeResponse{contains: contains, err: err})
	return f
}

func (f *fakeQuerier) match(query string, args []any) (fakeResponse, error) {
	f.calls = append(f.calls, fakeCall{query: query, args: args})
	for _, r := range f.responses {
		if strings.Contains(query, r.contains) {
			return r, r.err
		}
	}
	return fakeResponse{}, fmt.Errorf("unexpected statement: %s", query)
}

func (f *fakeQuerier) Query(_ context.Context, query string, args ...any) (*ResultSet, error) {
	r, err := f.match(query, args)
	if err != nil {
		return nil, err
	}
	if r.result == nil {
		return &ResultSet{}, nil
	}
	return r.result, nil
}

func (f *fakeQuerier) QueryCount(_ context.Context, query string, args ...any) (int64, error) {
	r, err := f.match(query, args)
	return r.count, err
}

func (f *fakeQuerier) Exec(_ context.Context, query string, args ...any) (int64, error) {
	r, err := f.match(query, args)
	return r.count, err
}

// statements returns the recorded statements starting with prefix.
func (f *fakeQuerier) statements(prefix string) []fakeCall {
	var out []fakeCall
	for _, c := range f.calls {
		if strings.HasPrefix(c.query, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// fakeTx wraps fakeQuerier with transaction bookkeeping.
type fakeTx struct {
	*fakeQuerier
	timeout    time.Duration
	committed  bool
	rolledBack bool
}

func (t *fakeTx) SetStatementTimeout(_ context.Context, d time.Duration) error {
	t.timeout = d
	return nil
}

func (t *fakeTx) Commit() error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback() error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

// fakeDB hands out transactions created by newTx.
type fakeDB struct {
	introspector Introspector
	newTx        func(n int) *fakeTx
	txs          []*fakeTx
}

func (d *fakeDB) Begin(context.Context) (Tx, error) {
	tx := d.newTx(len(d.txs) + 1)
	d.txs = append(d.txs, tx)
	return tx, nil
}

func (d *fakeDB) Introspector() Introspector { return d.introspector }
func (d *fakeDB) Dialect() dialect.Dialect   { return dialect.Postgres }

// fakeIntrospector serves a static schema.
type fakeIntrospector struct {
	columns map[string]map[string]string
	pks     map[string][]string
	fks     map[string][]Relation
	err     error
	fkCalls map[string]int
}

func newFakeIntrospector() *fakeIntrospector {
	return &fakeIntrospector{
		columns: make(map[string]map[string]string),
		pks:     make(map[string][]string),
		fks:     make(map[string][]Relation),
		fkCalls: make(map[string]int),
	}
}

// table registers a table; the first column is the primary key.
func (f *fakeIntrospector) table(name string, cols ...string) *fakeIntrospector {
	types := make(map[string]string, len(cols))
	for _, c := range cols {
		types[c] = "bigint"
	}
	f.columns[name] = types
	if len(cols) > 0 {
		f.pks[name] = cols[:1]
	}
	return f
}

func (f *fakeIntrospector) fk(parent, parentCol, child, childCol string) *fakeIntrospector {
	f.fks[parent] = append(f.fks[parent], Relation{
		Name:          child + "_" + childCol + "_fkey",
		ParentTable:   parent,
		ParentColumns: []string{parentCol},
		ChildTable:    child,
		ChildColumns:  []string{childCol},
	})
	return f
}

func (f *fakeIntrospector) TableExists(_ context.Context, table string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.columns[table]
	return ok, nil
}

func (f *fakeIntrospector) ForeignKeys(_ context.Context, table string, _ bool) ([]Relation, error) {
	f.fkCalls[table]++
	if f.err != nil {
		return nil, f.err
	}
	return f.fks[table], nil
}

func (f *fakeIntrospector) PrimaryKey(_ context.Context, table string) ([]string, error) {
	return f.pks[table], nil
}

func (f *fakeIntrospector) ColumnTypes(_ context.Context, table string) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.columns[table], nil
}

func rows(cols []string, values ...[]any) *ResultSet {
	return &ResultSet{Columns: cols, Rows: values}
}

// memorySink collects archived batches.
type memorySink struct {
	batches []RowBatch
	err     error
}

func (s *memorySink) WriteRows(_ context.Context, b RowBatch) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, b)
	return nil
}
