package cleaner

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"mercator-hq/cleaner/pkg/config"
	"mercator-hq/cleaner/pkg/dialect"
)

func TestCompileConditions(t *testing.T) {
	tests := []struct {
		name     string
		conds    []config.Condition
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "empty",
			conds:    nil,
			wantSQL:  "",
			wantArgs: nil,
		},
		{
			name:     "equality",
			conds:    []config.Condition{{Column: "status", Op: "=", Value: "closed"}},
			wantSQL:  `"status" = ?`,
			wantArgs: []any{"closed"},
		},
		{
			name:     "not equal renders standard operator",
			conds:    []config.Condition{{Column: "status", Op: "!=", Value: "open"}},
			wantSQL:  `"status" <> ?`,
			wantArgs: []any{"open"},
		},
		{
			name:     "in list",
			conds:    []config.Condition{{Column: "status", Op: "IN", Value: []any{"active", "pending"}}},
			wantSQL:  `"status" IN (?, ?)`,
			wantArgs: []any{"active", "pending"},
		},
		{
			name:     "not in with typed slice and loose spelling",
			conds:    []config.Condition{{Column: "severity", Op: "not  in", Value: []int{1, 2, 3}}},
			wantSQL:  `"severity" NOT IN (?, ?, ?)`,
			wantArgs: []any{1, 2, 3},
		},
		{
			name:     "mixed-case column keeps its case",
			conds:    []config.Condition{{Column: "createdAt", Op: "<", Value: "2024-01-01"}},
			wantSQL:  `"createdAt" < ?`,
			wantArgs: []any{"2024-01-01"},
		},
		{
			name:     "null checks take no value",
			conds:    []config.Condition{{Column: "deleted_at", Op: "is not null"}, {Column: "owner", Op: "IS NULL"}},
			wantSQL:  `"deleted_at" IS NOT NULL AND "owner" IS NULL`,
			wantArgs: nil,
		},
		{
			name:     "like",
			conds:    []config.Condition{{Column: "name", Op: "NOT LIKE", Value: "keep-%"}},
			wantSQL:  `"name" NOT LIKE ?`,
			wantArgs: []any{"keep-%"},
		},
		{
			name: "raw fragment keeps its params in order",
			conds: []config.Condition{
				{Column: "kind", Op: "=", Value: "alert"},
				{RawSQL: "score BETWEEN ? AND ?", Params: []any{1, 5}},
				{Column: "id", Op: ">", Value: 10},
			},
			wantSQL:  `"kind" = ? AND (score BETWEEN ? AND ?) AND "id" > ?`,
			wantArgs: []any{"alert", 1, 5, 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := CompileConditions(dialect.Postgres, tt.conds)
			if err != nil {
				t.Fatalf("CompileConditions failed: %v", err)
			}
			if pred.SQL != tt.wantSQL {
				t.Errorf("Expected SQL %q, got %q", tt.wantSQL, pred.SQL)
			}
			if !reflect.DeepEqual(pred.Args, tt.wantArgs) {
				t.Errorf("Expected args %v, got %v", tt.wantArgs, pred.Args)
			}
		})
	}
}

func TestCompileConditions_ValuesAreNeverInlined(t *testing.T) {
	pred, err := CompileConditions(dialect.Postgres, []config.Condition{
		{Column: "status", Op: "IN", Value: []any{"active", "pending"}},
	})
	if err != nil {
		t.Fatalf("CompileConditions failed: %v", err)
	}
	for _, v := range []string{"active", "pending"} {
		if strings.Contains(pred.SQL, v) {
			t.Errorf("SQL %q contains literal value %q", pred.SQL, v)
		}
	}
	if strings.Count(pred.SQL, "?") != 2 || len(pred.Args) != 2 {
		t.Errorf("Expected two bound parameters, got SQL %q args %v", pred.SQL, pred.Args)
	}
}

func TestCompileConditions_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cond    config.Condition
		wantErr string
	}{
		{"missing value", config.Condition{Column: "a", Op: "="}, "requires a value"},
		{"list for scalar op", config.Condition{Column: "a", Op: ">", Value: []any{1}}, "single value"},
		{"scalar for IN", config.Condition{Column: "a", Op: "IN", Value: "x"}, "requires a list"},
		{"empty IN", config.Condition{Column: "a", Op: "NOT IN", Value: []any{}}, "non-empty list"},
		{"missing column", config.Condition{Op: "="}, "column is required"},
		{"raw placeholder mismatch", config.Condition{RawSQL: "a = ? OR b = ?", Params: []any{1}}, "2 placeholders but 1 params"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileConditions(dialect.Postgres, []config.Condition{tt.cond})
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCompileConditions_UnsupportedOperator(t *testing.T) {
	_, err := CompileConditions(dialect.Postgres, []config.Condition{{Column: "a", Op: "REGEXP", Value: "x"}})

	var opErr *UnsupportedOperatorError
	if !errors.As(err, &opErr) {
		t.Fatalf("Expected UnsupportedOperatorError, got %T: %v", err, err)
	}
	if opErr.Op != "REGEXP" || opErr.Column != "a" {
		t.Errorf("Unexpected error fields: %+v", opErr)
	}
}

func TestCompileConditions_ByteSliceIsScalar(t *testing.T) {
	pred, err := CompileConditions(dialect.SQLite, []config.Condition{{Column: "hash", Op: "=", Value: []byte{0x01, 0x02}}})
	if err != nil {
		t.Fatalf("CompileConditions failed: %v", err)
	}
	if len(pred.Args) != 1 {
		t.Errorf("Expected one argument, got %d", len(pred.Args))
	}
}

func TestAnd(t *testing.T) {
	got := And(Predicate{}, Predicate{SQL: "a = ?", Args: []any{1}}, Predicate{}, Predicate{SQL: "b = ?", Args: []any{2}})
	if got.SQL != "a = ? AND b = ?" {
		t.Errorf("Unexpected SQL %q", got.SQL)
	}
	if !reflect.DeepEqual(got.Args, []any{1, 2}) {
		t.Errorf("Unexpected args %v", got.Args)
	}
}
