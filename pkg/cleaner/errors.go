package cleaner

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrStatementTimeout marks database errors caused by the statement timeout.
// Collaborators wrap driver errors with it so the engine can classify them.
var ErrStatementTimeout = errors.New("statement timeout")

// SchemaIntrospectionError is returned when catalog metadata cannot be read.
// It is fatal for the run: no data is touched without relation data.
type SchemaIntrospectionError struct {
	Table string // Table being introspected
	Cause error  // Underlying error
}

// Error implements the error interface.
func (e *SchemaIntrospectionError) Error() string {
	return fmt.Sprintf("schema introspection failed [table=%s]: %v", e.Table, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *SchemaIntrospectionError) Unwrap() error {
	return e.Cause
}

// NewSchemaIntrospectionError creates a new SchemaIntrospectionError.
func NewSchemaIntrospectionError(table string, cause error) *SchemaIntrospectionError {
	return &SchemaIntrospectionError{Table: table, Cause: cause}
}

// InvalidRelationError is returned at build time for a relation that
// references a missing table or column or has a malformed mapping.
type InvalidRelationError struct {
	Relation string // Relation description
	Reason   string // Why the relation is invalid
}

// Error implements the error interface.
func (e *InvalidRelationError) Error() string {
	return fmt.Sprintf("invalid relation %s: %s", e.Relation, e.Reason)
}

// NewInvalidRelationError creates a new InvalidRelationError.
func NewInvalidRelationError(relation, reason string) *InvalidRelationError {
	return &InvalidRelationError{Relation: relation, Reason: reason}
}

// UnsupportedOperatorError is returned when a condition uses an operator
// outside the supported set.
type UnsupportedOperatorError struct {
	Column string
	Op     string
}

// Error implements the error interface.
func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("unsupported operator %q on column %q", e.Op, e.Column)
}

// QueryErrorKind classifies runtime database failures.
type QueryErrorKind int

const (
	// QueryExecution is any failure other than a timeout.
	QueryExecution QueryErrorKind = iota
	// StatementTimeout means the statement hit the configured time_out.
	StatementTimeout
)

// String returns the kind name.
func (k QueryErrorKind) String() string {
	if k == StatementTimeout {
		return "statement_timeout"
	}
	return "query_execution"
}

// QueryError is a runtime statement failure. The batch transaction is
// rolled back; the same keys are selected again on the next run.
type QueryError struct {
	Kind      QueryErrorKind
	Table     string // Table the statement ran against
	Relation  string // Relation being followed, empty for the table itself
	Operation string // "select", "count", "delete", "archive"
	Cause     error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [table=%s, operation=%s", e.Kind, e.Table, e.Operation)
	if e.Relation != "" {
		fmt.Fprintf(&sb, ", relation=%s", e.Relation)
	}
	fmt.Fprintf(&sb, "]: %v", e.Cause)
	return sb.String()
}

// Unwrap returns the underlying cause error.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// NewQueryError creates a QueryError, classifying the cause.
func NewQueryError(table, relation, operation string, cause error) *QueryError {
	kind := QueryExecution
	if errors.Is(cause, ErrStatementTimeout) || errors.Is(cause, context.DeadlineExceeded) {
		kind = StatementTimeout
	}
	return &QueryError{
		Kind:      kind,
		Table:     table,
		Relation:  relation,
		Operation: operation,
		Cause:     cause,
	}
}

// IsStatementTimeout reports whether err was caused by a statement timeout.
func IsStatementTimeout(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind == StatementTimeout
	}
	return errors.Is(err, ErrStatementTimeout)
}

// BatchError wraps a failure of one batch of a table.
type BatchError struct {
	Table string
	Batch int // 1-based batch number
	Cause error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d of %s failed: %v", e.Batch, e.Table, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *BatchError) Unwrap() error {
	return e.Cause
}
