// Package dialect describes the SQL flavour differences the cleaner has to
// care about: identifier quoting, the default schema, placeholder style and
// how a bound value is cast to a column type inside a VALUES list.
package dialect

import (
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Dialect renders the dialect-specific parts of generated statements.
type Dialect interface {
	// Name returns the dialect name ("postgres", "sqlite").
	Name() string

	// DefaultSchema is used to qualify unqualified table names.
	DefaultSchema() string

	// BindType is the sqlx bind type used to rebind "?" placeholders.
	BindType() int

	// QuoteIdent quotes a single identifier.
	QuoteIdent(name string) string

	// QuoteTable quotes a schema-qualified table name ("schema.table").
	QuoteTable(qualified string) string

	// Cast returns the suffix appended to a placeholder so the database
	// knows the parameter type, or "" when no cast is needed.
	Cast(columnType string) string
}

// Postgres is the PostgreSQL dialect.
var Postgres Dialect = postgres{}

// SQLite is the SQLite dialect.
var SQLite Dialect = sqlite{}

type postgres struct{}

func (postgres) Name() string          { return "postgres" }
func (postgres) DefaultSchema() string { return "public" }
func (postgres) BindType() int         { return sqlx.DOLLAR }

func (postgres) QuoteIdent(name string) string { return pq.QuoteIdentifier(name) }

func (p postgres) QuoteTable(qualified string) string {
	return quoteQualified(p, qualified)
}

// Cast returns "::type". VALUES lists lose the column type, so PostgreSQL
// would otherwise compare text against the column.
func (postgres) Cast(columnType string) string {
	if columnType == "" {
		return ""
	}
	return "::" + columnType
}

type sqlite struct{}

func (sqlite) Name() string          { return "sqlite" }
func (sqlite) DefaultSchema() string { return "main" }
func (sqlite) BindType() int         { return sqlx.QUESTION }

// QuoteIdent uses the same double-quote rule as PostgreSQL.
func (sqlite) QuoteIdent(name string) string { return pq.QuoteIdentifier(name) }

func (s sqlite) QuoteTable(qualified string) string {
	return quoteQualified(s, qualified)
}

// Cast is a no-op: SQLite compares with column affinity.
func (sqlite) Cast(string) string { return "" }

func quoteQualified(d Dialect, qualified string) string {
	schema, table, ok := strings.Cut(qualified, ".")
	if !ok {
		return d.QuoteIdent(d.DefaultSchema()) + "." + d.QuoteIdent(qualified)
	}
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

// ForDriver maps a database/sql driver name to its dialect.
func ForDriver(driver string) (Dialect, bool) {
	switch driver {
	case "pgx", "postgres":
		return Postgres, true
	case "sqlite", "sqlite3":
		return SQLite, true
	default:
		return nil, false
	}
}
