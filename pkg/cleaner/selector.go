package cleaner

import (
	"context"
	"fmt"
	"time"

	"mercator-hq/cleaner/pkg/dialect"
)

// BatchSpec describes how root keys are selected.
type BatchSpec struct {
	Table      string   // Qualified root table
	KeyColumns []string // Ordering and keyset columns
	DateColumn string   // Compared against Cutoff, ignored when Cutoff is nil
	Cutoff     *time.Time
	Where      Predicate // Compiled table conditions
	BatchSize  int

	// ColumnTypes provides casts for the keyset cursor.
	ColumnTypes map[string]string
}

// Cutoff returns midnight of the day expireDays before now, in now's
// location.
func Cutoff(now time.Time, expireDays int) time.Time {
	d := now.AddDate(0, 0, -expireDays)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

// SelectBatch returns up to spec.BatchSize keys ordered by the key columns.
// Only keys strictly after cursor are returned, so deleted or skipped rows
// are never selected twice and concurrent inserts do not shift the window.
// An empty result means the table is exhausted.
func SelectBatch(ctx context.Context, q Querier, d dialect.Dialect, spec BatchSpec, cursor Key) ([]Key, error) {
	query, args := selectBatchSQL(d, spec, cursor)

	rs, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, NewQueryError(spec.Table, "", "select", err)
	}

	keys := dedupKeys(rowsToKeys(rs.Rows), false)
	if len(keys) > spec.BatchSize {
		keys = keys[:spec.BatchSize]
	}
	return keys, nil
}

func selectBatchSQL(d dialect.Dialect, spec BatchSpec, cursor Key) (string, []any) {
	var preds []Predicate
	if spec.Cutoff != nil {
		preds = append(preds, Predicate{
			SQL:  d.QuoteIdent(spec.DateColumn) + " < ?",
			Args: []any{*spec.Cutoff},
		})
	}
	if !spec.Where.IsEmpty() {
		preds = append(preds, Predicate{SQL: "(" + spec.Where.SQL + ")", Args: spec.Where.Args})
	}
	if len(cursor) > 0 {
		preds = append(preds, Predicate{
			SQL:  "(" + quoteColumns(d, spec.KeyColumns) + ") > " + typedPlaceholders(d, spec.KeyColumns, spec.ColumnTypes),
			Args: cursor,
		})
	}
	where := And(preds...)

	cols := quoteColumns(d, spec.KeyColumns)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT ?",
		cols, d.QuoteTable(spec.Table), whereClause(where), cols)

	return query, append(where.Args, spec.BatchSize)
}
