package sqldb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"mercator-hq/cleaner/pkg/cleaner"
	"mercator-hq/cleaner/pkg/dialect"
)

// Tx is a batch transaction. Statements are written with "?" placeholders
// and rebound for the driver.
type Tx struct {
	tx      *sqlx.Tx
	dialect dialect.Dialect
	logger  *slog.Logger

	// timeout bounds each statement when the database has no server-side
	// statement timeout (SQLite).
	timeout time.Duration
}

// SetStatementTimeout bounds every following statement of the transaction.
// PostgreSQL enforces it server-side with a transaction-local setting.
func (t *Tx) SetStatementTimeout(ctx context.Context, timeout time.Duration) error {
	if timeout < 0 {
		timeout = 0
	}
	if t.dialect != dialect.Postgres {
		t.timeout = timeout
		return nil
	}
	var previous string
	err := t.tx.QueryRowxContext(ctx,
		t.tx.Rebind("SELECT set_config('statement_timeout', ?, true)"),
		fmt.Sprintf("%dms", timeout.Milliseconds()),
	).Scan(&previous)
	if err != nil {
		return fmt.Errorf("failed to set statement timeout: %w", err)
	}
	return nil
}

// Query runs a SELECT and returns all rows.
func (t *Tx) Query(ctx context.Context, query string, args ...any) (*cleaner.ResultSet, error) {
	ctx, cancel := t.statementContext(ctx)
	defer cancel()

	query = t.tx.Rebind(query)
	rows, err := t.tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, t.failed(ctx, query, args, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	rs := &cleaner.ResultSet{Columns: cols}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, t.failed(ctx, query, args, err)
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, t.failed(ctx, query, args, err)
	}
	return rs, nil
}

// QueryCount runs a statement returning a single integer.
func (t *Tx) QueryCount(ctx context.Context, query string, args ...any) (int64, error) {
	ctx, cancel := t.statementContext(ctx)
	defer cancel()

	var n int64
	query = t.tx.Rebind(query)
	if err := t.tx.GetContext(ctx, &n, query, args...); err != nil {
		return 0, t.failed(ctx, query, args, err)
	}
	return n, nil
}

// Exec runs a statement and returns the number of affected rows.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	ctx, cancel := t.statementContext(ctx)
	defer cancel()

	query = t.tx.Rebind(query)
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, t.failed(ctx, query, args, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback aborts the transaction.
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// failed logs the statement as sent to the driver, with its arguments, and
// returns the classified error.
func (t *Tx) failed(ctx context.Context, query string, args []any, err error) error {
	err = classify(ctx, err)
	if t.logger != nil {
		t.logger.Error("Statement failed",
			"sql", query,
			"args", fmt.Sprint(args),
			"error", err,
		)
	}
	return err
}

func (t *Tx) statementContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, t.timeout)
}
