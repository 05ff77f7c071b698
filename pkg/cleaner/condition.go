package cleaner

import (
	"fmt"
	"reflect"
	"strings"

	"mercator-hq/cleaner/pkg/config"
	"mercator-hq/cleaner/pkg/dialect"
)

// Predicate is a SQL boolean expression with "?" placeholders and the
// values bound to them, in order.
type Predicate struct {
	SQL  string
	Args []any
}

// IsEmpty reports whether the predicate has no SQL.
func (p Predicate) IsEmpty() bool {
	return p.SQL == ""
}

// And joins the non-empty predicates with AND.
func And(preds ...Predicate) Predicate {
	var parts []string
	var args []any
	for _, p := range preds {
		if p.IsEmpty() {
			continue
		}
		parts = append(parts, p.SQL)
		args = append(args, p.Args...)
	}
	return Predicate{SQL: strings.Join(parts, " AND "), Args: args}
}

type operandKind int

const (
	operandScalar operandKind = iota
	operandList
	operandNone
)

type operator struct {
	sql     string
	operand operandKind
}

// operators is the closed set of supported condition operators.
var operators = map[string]operator{
	"=":           {"=", operandScalar},
	"!=":          {"<>", operandScalar},
	"<>":          {"<>", operandScalar},
	">":           {">", operandScalar},
	">=":          {">=", operandScalar},
	"<":           {"<", operandScalar},
	"<=":          {"<=", operandScalar},
	"LIKE":        {"LIKE", operandScalar},
	"NOT LIKE":    {"NOT LIKE", operandScalar},
	"IN":          {"IN", operandList},
	"NOT IN":      {"NOT IN", operandList},
	"IS NULL":     {"IS NULL", operandNone},
	"IS NOT NULL": {"IS NOT NULL", operandNone},
}

// CompileConditions renders conditions as one parameterized predicate.
// Values are always bound, never interpolated. Column names are quoted as
// written, so mixed-case columns must be spelled with their exact case.
func CompileConditions(d dialect.Dialect, conds []config.Condition) (Predicate, error) {
	var parts []string
	var args []any

	for i, c := range conds {
		if c.RawSQL != "" {
			if n := strings.Count(c.RawSQL, "?"); n != len(c.Params) {
				return Predicate{}, fmt.Errorf("condition %d: raw_sql has %d placeholders but %d params", i, n, len(c.Params))
			}
			parts = append(parts, "("+c.RawSQL+")")
			args = append(args, c.Params...)
			continue
		}

		if c.Column == "" {
			return Predicate{}, fmt.Errorf("condition %d: column is required", i)
		}
		opName := normalizeOp(c.Op)
		op, ok := operators[opName]
		if !ok {
			return Predicate{}, &UnsupportedOperatorError{Column: c.Column, Op: c.Op}
		}
		col := d.QuoteIdent(c.Column)

		switch op.operand {
		case operandNone:
			parts = append(parts, col+" "+op.sql)

		case operandScalar:
			if c.Value == nil {
				return Predicate{}, fmt.Errorf("condition %d: operator %s on %q requires a value", i, opName, c.Column)
			}
			if _, isList := listValues(c.Value); isList {
				return Predicate{}, fmt.Errorf("condition %d: operator %s on %q takes a single value", i, opName, c.Column)
			}
			parts = append(parts, col+" "+op.sql+" ?")
			args = append(args, c.Value)

		case operandList:
			values, isList := listValues(c.Value)
			if !isList {
				return Predicate{}, fmt.Errorf("condition %d: operator %s on %q requires a list", i, opName, c.Column)
			}
			if len(values) == 0 {
				return Predicate{}, fmt.Errorf("condition %d: operator %s on %q requires a non-empty list", i, opName, c.Column)
			}
			parts = append(parts, col+" "+op.sql+" ("+placeholders(len(values))+")")
			args = append(args, values...)
		}
	}

	return Predicate{SQL: strings.Join(parts, " AND "), Args: args}, nil
}

// normalizeOp upper-cases op and collapses whitespace ("not  in" → "NOT IN").
func normalizeOp(op string) string {
	return strings.Join(strings.Fields(strings.ToUpper(op)), " ")
}

// listValues flattens slices and arrays. Strings and byte slices are scalars.
func listValues(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if _, ok := v.([]byte); ok {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
