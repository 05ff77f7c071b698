package sqldb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/lib/pq"

	"mercator-hq/cleaner/pkg/cleaner"
)

// queryCanceled is the SQLSTATE PostgreSQL reports when statement_timeout
// fires.
const queryCanceled = "57014"

// classify appends the server diagnostics PostgreSQL attaches to an error
// and marks errors caused by a statement timeout with
// cleaner.ErrStatementTimeout.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if d, ok := diagnosticsOf(err); ok {
		if extra := d.String(); extra != "" {
			err = fmt.Errorf("%w (%s)", err, extra)
		}
	}
	if isTimeout(ctx, err) {
		return fmt.Errorf("%w: %w", cleaner.ErrStatementTimeout, err)
	}
	return err
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == queryCanceled
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == queryCanceled
	}
	return false
}

// Diagnostics are the fields of a PostgreSQL error that its message leaves
// out. Detail names the referencing row on a foreign key violation.
type Diagnostics struct {
	Code       string
	Detail     string
	Hint       string
	Constraint string
	Table      string
}

func (d Diagnostics) String() string {
	var parts []string
	add := func(name, value string) {
		if value != "" {
			parts = append(parts, name+": "+value)
		}
	}
	add("detail", d.Detail)
	add("hint", d.Hint)
	add("constraint", d.Constraint)
	add("table", d.Table)
	return strings.Join(parts, "; ")
}

// diagnosticsOf extracts Diagnostics from a pgx or lib/pq error.
func diagnosticsOf(err error) (Diagnostics, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return Diagnostics{
			Code:       pgErr.Code,
			Detail:     pgErr.Detail,
			Hint:       pgErr.Hint,
			Constraint: pgErr.ConstraintName,
			Table:      pgErr.TableName,
		}, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return Diagnostics{
			Code:       string(pqErr.Code),
			Detail:     pqErr.Detail,
			Hint:       pqErr.Hint,
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
		}, true
	}
	return Diagnostics{}, false
}
