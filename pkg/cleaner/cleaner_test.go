package cleaner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/cleaner/pkg/config"
)

var fixedNow = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

func alertIntrospector() *fakeIntrospector {
	return newFakeIntrospector().
		table("public.alert", "id", "timestamp").
		table("public.alertenrichment", "id", "alert_fingerprint").
		fk("public.alert", "id", "public.alertenrichment", "alert_fingerprint")
}

func alertTable() config.TableConfig {
	return config.TableConfig{
		Name:       "alert",
		KeyColumns: []string{"id"},
		DateColumn: "timestamp",
		ExpireDays: 45,
		BatchSize:  2,
		TimeOut:    30,
	}
}

// batchTx scripts a transaction whose root select returns ids.
func batchTx(ids ...int64) *fakeTx {
	var rootRows [][]any
	for _, id := range ids {
		rootRows = append(rootRows, []any{id})
	}
	q := (&fakeQuerier{}).
		on(`SELECT "id" FROM "public"."alert"`, &ResultSet{Columns: []string{"id"}, Rows: rootRows}).
		on(`SELECT "id" FROM "public"."alertenrichment"`, rows([]string{"id"}, []any{int64(100)})).
		on(`SELECT * FROM "public"."alertenrichment"`, rows([]string{"id", "alert_fingerprint"}, []any{int64(100), int64(1)})).
		on(`SELECT * FROM "public"."alert"`, rows([]string{"id", "timestamp"}, []any{int64(1), "2020-01-01"})).
		onCount(`COUNT(*) FROM "public"."alertenrichment"`, 1).
		onCount(`COUNT(*) FROM "public"."alert"`, int64(len(ids))).
		onCount(`DELETE FROM "public"."alertenrichment"`, 1).
		onCount(`DELETE FROM "public"."alert"`, int64(len(ids)))
	return &fakeTx{fakeQuerier: q}
}

// scriptedDB returns batches in order, then empty batches.
func scriptedDB(batches ...[]int64) *fakeDB {
	return &fakeDB{
		introspector: alertIntrospector(),
		newTx: func(n int) *fakeTx {
			if n <= len(batches) {
				return batchTx(batches[n-1]...)
			}
			return batchTx()
		},
	}
}

type recordingRecorder struct {
	batches map[string]int
	rows    map[string]int64
}

func (r *recordingRecorder) ObserveBatch(table, mode, result string, _ time.Duration) {
	r.batches[table+"/"+mode+"/"+result]++
}

func (r *recordingRecorder) AddRows(table, mode string, n int64) {
	r.rows[table+"/"+mode] += n
}

func (r *recordingRecorder) AddCycles(string, int) {}

func TestCleanTable_DryRun(t *testing.T) {
	db := scriptedDB([]int64{1, 2}, []int64{3})
	c := New(db, Options{DryRun: true, Now: fixedNow}, nil)

	summary, err := c.CleanTable(context.Background(), alertTable())
	if err != nil {
		t.Fatalf("CleanTable failed: %v", err)
	}

	if summary.Batches != 2 || summary.Keys != 3 {
		t.Errorf("Expected 2 batches with 3 keys, got %d/%d", summary.Batches, summary.Keys)
	}
	if got := summary.Totals.Get("public.alert"); got != 3 {
		t.Errorf("Expected 3 alert rows counted, got %d", got)
	}
	counts := summary.Counts()
	if !counts["public.alertenrichment"].DryRun || counts["public.alertenrichment"].Count != 2 {
		t.Errorf("Unexpected child count %+v", counts["public.alertenrichment"])
	}

	for i, tx := range db.txs {
		if tx.committed {
			t.Errorf("tx %d: expected dry run never to commit", i)
		}
		if !tx.rolledBack {
			t.Errorf("tx %d: expected rollback", i)
		}
		if tx.timeout != 30*time.Second {
			t.Errorf("tx %d: expected statement timeout 30s, got %v", i, tx.timeout)
		}
		if n := len(tx.statements("DELETE")); n != 0 {
			t.Errorf("tx %d: expected no DELETE, got %d", i, n)
		}
	}
}

func TestCleanTable_KeysetCursorAdvances(t *testing.T) {
	db := scriptedDB([]int64{1, 2}, []int64{3})
	c := New(db, Options{DryRun: true, Now: fixedNow}, nil)

	if _, err := c.CleanTable(context.Background(), alertTable()); err != nil {
		t.Fatalf("CleanTable failed: %v", err)
	}

	if len(db.txs) != 3 {
		t.Fatalf("Expected 3 transactions (2 batches + empty), got %d", len(db.txs))
	}
	first := db.txs[0].calls[0]
	if strings.Contains(first.query, `("id") >`) {
		t.Errorf("Expected no cursor on first batch: %s", first.query)
	}
	second := db.txs[1].calls[0]
	if !strings.Contains(second.query, `("id") > (?::bigint)`) {
		t.Fatalf("Expected keyset cursor on second batch: %s", second.query)
	}
	// cutoff, cursor, limit
	if got := second.args[1]; got != int64(2) {
		t.Errorf("Expected cursor value 2, got %v", got)
	}
	cutoff, ok := second.args[0].(time.Time)
	if !ok || !cutoff.Equal(time.Date(2024, 4, 17, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected midnight cutoff 45 days back, got %v", second.args[0])
	}
}

func TestCleanTable_LiveCommitsThenArchives(t *testing.T) {
	db := scriptedDB([]int64{1})
	sink := &memorySink{}
	rec := &recordingRecorder{batches: map[string]int{}, rows: map[string]int64{}}
	c := New(db, Options{Now: fixedNow}, nil).
		WithSinkFactory(func(path string) (RowSink, error) {
			if path != "./archive" {
				t.Errorf("Unexpected archive path %q", path)
			}
			return sink, nil
		}).
		WithRecorder(rec)

	tc := alertTable()
	tc.Archive = true
	tc.ArchivePath = "./archive"

	summary, err := c.CleanTable(context.Background(), tc)
	if err != nil {
		t.Fatalf("CleanTable failed: %v", err)
	}

	if !db.txs[0].committed {
		t.Error("Expected live batch to commit")
	}
	if len(sink.batches) != 2 {
		t.Fatalf("Expected archive batches for child and root, got %d", len(sink.batches))
	}
	if sink.batches[0].Table != "public.alertenrichment" || sink.batches[0].RunID != summary.RunID {
		t.Errorf("Unexpected first archive batch %+v", sink.batches[0])
	}
	if rec.rows["public.alert/live"] != 1 || rec.batches["public.alert/live/ok"] != 1 {
		t.Errorf("Unexpected metrics: %v %v", rec.rows, rec.batches)
	}
}

func TestCleanTable_FailureRollsBackAndDiscardsArchive(t *testing.T) {
	db := &fakeDB{
		introspector: alertIntrospector(),
		newTx: func(int) *fakeTx {
			tx := batchTx(1)
			failing := &fakeQuerier{}
			failing.onError(`DELETE FROM "public"."alert"`, errors.New("foreign key violation"))
			failing.responses = append(failing.responses, tx.responses...)
			return &fakeTx{fakeQuerier: failing}
		},
	}
	sink := &memorySink{}
	c := New(db, Options{Now: fixedNow}, nil).
		WithSinkFactory(func(string) (RowSink, error) { return sink, nil })

	tc := alertTable()
	tc.Archive = true

	summary, err := c.CleanTable(context.Background(), tc)

	var batchErr *BatchError
	if !errors.As(err, &batchErr) || batchErr.Batch != 1 {
		t.Fatalf("Expected BatchError for batch 1, got %v", err)
	}
	var qe *QueryError
	if !errors.As(err, &qe) || qe.Table != "public.alert" {
		t.Errorf("Expected QueryError on public.alert, got %v", err)
	}
	if summary.Err == nil {
		t.Error("Expected error recorded in summary")
	}
	tx := db.txs[0]
	if tx.committed || !tx.rolledBack {
		t.Errorf("Expected rollback without commit, committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
	if len(sink.batches) != 0 {
		t.Errorf("Expected no archive output for a rolled back batch, got %d", len(sink.batches))
	}
}

func TestCleanTable_ArchiveFailureKeepsCommittedTotals(t *testing.T) {
	db := scriptedDB([]int64{1})
	sink := &memorySink{err: errors.New("bucket not found")}
	rec := &recordingRecorder{batches: map[string]int{}, rows: map[string]int64{}}
	c := New(db, Options{Now: fixedNow}, nil).
		WithSinkFactory(func(string) (RowSink, error) { return sink, nil }).
		WithRecorder(rec)

	tc := alertTable()
	tc.Archive = true
	tc.ArchivePath = "./archive"

	summary, err := c.CleanTable(context.Background(), tc)
	if err == nil || !strings.Contains(err.Error(), "archiving failed") {
		t.Fatalf("Expected archiving error, got %v", err)
	}
	if !db.txs[0].committed {
		t.Error("Expected the batch to stay committed")
	}
	if got := summary.Totals.Get("public.alert"); got != 1 {
		t.Errorf("Expected 1 committed alert in totals, got %d", got)
	}
	if got := summary.Totals.Get("public.alertenrichment"); got != 1 {
		t.Errorf("Expected 1 committed enrichment in totals, got %d", got)
	}
	if rec.rows["public.alert/live"] != 1 || rec.batches["public.alert/live/error"] != 1 {
		t.Errorf("Unexpected metrics: %v %v", rec.rows, rec.batches)
	}
}

func TestCleanTable_MaxBatches(t *testing.T) {
	db := scriptedDB([]int64{1, 2}, []int64{3, 4}, []int64{5})
	c := New(db, Options{DryRun: true, Now: fixedNow}, nil)

	tc := alertTable()
	tc.MaxBatches = 2

	summary, err := c.CleanTable(context.Background(), tc)
	if err != nil {
		t.Fatalf("CleanTable failed: %v", err)
	}
	if summary.Batches != 2 || len(db.txs) != 2 {
		t.Errorf("Expected 2 batches, got %d (%d transactions)", summary.Batches, len(db.txs))
	}
}

func TestCleanTable_Skipped(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		modify func(*config.TableConfig)
		reason string
	}{
		{"disabled", Options{}, func(tc *config.TableConfig) { tc.Enable = config.Bool(false) }, "disabled"},
		{"skip table", Options{SkipTables: []string{"public.alert"}}, func(*config.TableConfig) {}, "table in skip_tables"},
		{"skip date column", Options{SkipColumns: []string{"Timestamp"}}, func(*config.TableConfig) {}, "date column in skip_columns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := scriptedDB([]int64{1})
			tt.opts.Now = fixedNow
			tc := alertTable()
			tt.modify(&tc)

			summary, err := New(db, tt.opts, nil).CleanTable(context.Background(), tc)
			if err != nil {
				t.Fatalf("CleanTable failed: %v", err)
			}
			if summary.Skipped != tt.reason {
				t.Errorf("Expected skip reason %q, got %q", tt.reason, summary.Skipped)
			}
			if len(db.txs) != 0 {
				t.Errorf("Expected no transaction for a skipped table")
			}
		})
	}
}

func TestCleanTable_UnknownDateColumn(t *testing.T) {
	db := scriptedDB()
	tc := alertTable()
	tc.DateColumn = "created_at"

	_, err := New(db, Options{Now: fixedNow}, nil).CleanTable(context.Background(), tc)

	var relErr *InvalidRelationError
	if !errors.As(err, &relErr) {
		t.Fatalf("Expected InvalidRelationError, got %v", err)
	}
	if len(db.txs) != 0 {
		t.Error("Expected failure before any transaction")
	}
}

func TestCleanTable_CancelledBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	db := scriptedDB([]int64{1, 2}, []int64{3, 4})
	inner := db.newTx
	db.newTx = func(n int) *fakeTx {
		cancel()
		return inner(n)
	}

	summary, err := New(db, Options{DryRun: true, Now: fixedNow}, nil).CleanTable(ctx, alertTable())
	if err != nil {
		t.Fatalf("CleanTable failed: %v", err)
	}
	if !summary.Interrupted {
		t.Error("Expected summary marked interrupted")
	}
	if summary.Batches != 1 || len(db.txs) != 1 {
		t.Errorf("Expected the in-flight batch to finish and no further batch, got %d batches", summary.Batches)
	}
}

func TestRun_StopOnError(t *testing.T) {
	broken := alertTable()
	broken.Name = "missing"

	tables := []config.TableConfig{broken, alertTable()}

	summary, err := New(scriptedDB([]int64{1}), Options{DryRun: true, StopOnError: true, Now: fixedNow}, nil).
		Run(context.Background(), tables)
	if err == nil {
		t.Fatal("Expected error")
	}
	if len(summary.Tables) != 1 {
		t.Errorf("Expected run to stop after first table, got %d summaries", len(summary.Tables))
	}

	summary, err = New(scriptedDB([]int64{1}), Options{DryRun: true, Now: fixedNow}, nil).
		Run(context.Background(), tables)
	if err == nil {
		t.Fatal("Expected joined error")
	}
	if len(summary.Tables) != 2 || summary.Failed() != 1 {
		t.Errorf("Expected both tables attempted with one failure, got %d/%d", len(summary.Tables), summary.Failed())
	}
	if summary.Tables[1].Totals.Get("public.alert") != 1 {
		t.Errorf("Expected second table processed")
	}
}
