package cleaner

import (
	"context"
	"time"

	"mercator-hq/cleaner/pkg/dialect"
)

// ResultSet holds the rows returned by a query.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Querier runs parameterized statements inside a caller-managed
// transaction. Statements use "?" placeholders; implementations rebind
// them for their driver.
type Querier interface {
	// Query runs a SELECT and returns all rows.
	Query(ctx context.Context, query string, args ...any) (*ResultSet, error)

	// QueryCount runs a statement returning a single integer.
	QueryCount(ctx context.Context, query string, args ...any) (int64, error)

	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
}

// Tx is one batch transaction.
type Tx interface {
	Querier

	// SetStatementTimeout bounds every following statement. Zero disables it.
	SetStatementTimeout(ctx context.Context, timeout time.Duration) error

	Commit() error
	Rollback() error
}

// Database opens batch transactions and exposes the catalog.
type Database interface {
	Begin(ctx context.Context) (Tx, error)
	Introspector() Introspector
	Dialect() dialect.Dialect
}

// Introspector reads catalog metadata. Table names are schema-qualified
// and lower-case.
type Introspector interface {
	// TableExists reports whether the table exists.
	TableExists(ctx context.Context, table string) (bool, error)

	// ForeignKeys returns the foreign keys whose parent is table, in
	// catalog order with stable column ordering. With excludeCascade,
	// keys declared ON DELETE CASCADE are left out.
	ForeignKeys(ctx context.Context, table string, excludeCascade bool) ([]Relation, error)

	// PrimaryKey returns the primary key columns, or nil if there is none.
	PrimaryKey(ctx context.Context, table string) ([]string, error)

	// ColumnTypes maps every column of table to its declared type.
	ColumnTypes(ctx context.Context, table string) (map[string]string, error)
}
