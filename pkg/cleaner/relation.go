package cleaner

import (
	"fmt"
	"strings"

	"mercator-hq/cleaner/pkg/config"
)

// RelationSource tells where a relation came from.
type RelationSource string

const (
	SourceManual RelationSource = "manual"
	SourceAuto   RelationSource = "auto"
)

// Relation is a parent→child edge. ParentColumns[i] pairs with
// ChildColumns[i].
type Relation struct {
	Name          string
	ParentTable   string
	ParentColumns []string
	ChildTable    string
	ChildColumns  []string

	// Conditions further restrict the child rows reached through the edge.
	Conditions []config.Condition

	Source RelationSource
}

// Key identifies the relation for deduplication.
func (r Relation) Key() string {
	return r.ParentTable + "(" + strings.Join(r.ParentColumns, ",") + ")->" +
		r.ChildTable + "(" + strings.Join(r.ChildColumns, ",") + ")"
}

// Pair identifies the table pair regardless of columns.
func (r Relation) Pair() string {
	return r.ParentTable + "->" + r.ChildTable
}

func (r Relation) String() string {
	if r.Name != "" && r.Name != r.ChildTable {
		return r.Name + " " + r.Key()
	}
	return r.Key()
}

// Normalize qualifies table names with defaultSchema and lower-cases
// every identifier.
func (r Relation) Normalize(defaultSchema string) Relation {
	out := r
	out.ParentTable = QualifyTable(r.ParentTable, defaultSchema)
	out.ChildTable = QualifyTable(r.ChildTable, defaultSchema)
	out.ParentColumns = lowerAll(r.ParentColumns)
	out.ChildColumns = lowerAll(r.ChildColumns)
	return out
}

// Validate checks the column pairing.
func (r Relation) Validate() error {
	if len(r.ParentColumns) == 0 {
		return NewInvalidRelationError(r.String(), "mapping has no columns")
	}
	if len(r.ParentColumns) != len(r.ChildColumns) {
		return NewInvalidRelationError(r.String(),
			fmt.Sprintf("%d parent columns but %d child columns", len(r.ParentColumns), len(r.ChildColumns)))
	}
	if r.ParentTable == "" || r.ChildTable == "" {
		return NewInvalidRelationError(r.String(), "parent and child tables are required")
	}
	return nil
}

// ManualRelations converts the configured relations of a root table.
// A relation without parent_table hangs off the root.
func ManualRelations(root string, related []config.RelationConfig, defaultSchema string) ([]Relation, error) {
	rels := make([]Relation, 0, len(related))
	for _, rc := range related {
		parent := rc.ParentTable
		if parent == "" {
			parent = root
		}
		rel := Relation{
			Name:          rc.Name,
			ParentTable:   parent,
			ParentColumns: rc.Mapping.ParentColumns,
			ChildTable:    rc.Name,
			ChildColumns:  rc.Mapping.ChildColumns,
			Conditions:    rc.Conditions,
			Source:        SourceManual,
		}.Normalize(defaultSchema)
		if err := rel.Validate(); err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

// QualifyTable lower-cases name and prefixes defaultSchema when the name
// has no schema.
func QualifyTable(name, defaultSchema string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || strings.Contains(name, ".") {
		return name
	}
	return strings.ToLower(defaultSchema) + "." + name
}

// SplitTable splits a qualified name into schema and table.
func SplitTable(qualified string) (schema, table string) {
	schema, table, ok := strings.Cut(qualified, ".")
	if !ok {
		return "", qualified
	}
	return schema, table
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
