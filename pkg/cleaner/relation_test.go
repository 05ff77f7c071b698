package cleaner

import (
	"errors"
	"testing"

	"mercator-hq/cleaner/pkg/config"
)

func TestQualifyTable(t *testing.T) {
	tests := []struct {
		in, schema, want string
	}{
		{"alert", "public", "public.alert"},
		{"Alert", "public", "public.alert"},
		{"ops.Alert", "public", "ops.alert"},
		{" alert ", "main", "main.alert"},
		{"", "public", ""},
	}
	for _, tt := range tests {
		if got := QualifyTable(tt.in, tt.schema); got != tt.want {
			t.Errorf("QualifyTable(%q, %q) = %q, want %q", tt.in, tt.schema, got, tt.want)
		}
	}
}

func TestSplitTable(t *testing.T) {
	schema, table := SplitTable("public.alert")
	if schema != "public" || table != "alert" {
		t.Errorf("Unexpected split: %q %q", schema, table)
	}
	schema, table = SplitTable("alert")
	if schema != "" || table != "alert" {
		t.Errorf("Unexpected split of unqualified name: %q %q", schema, table)
	}
}

func TestRelation_KeyNormalization(t *testing.T) {
	a := Relation{ParentTable: "Alert", ParentColumns: []string{"ID"}, ChildTable: "public.Note", ChildColumns: []string{"Alert_ID"}}.Normalize("public")
	b := Relation{ParentTable: "public.alert", ParentColumns: []string{"id"}, ChildTable: "note", ChildColumns: []string{"alert_id"}}.Normalize("public")

	if a.Key() != b.Key() {
		t.Errorf("Expected equal keys, got %q and %q", a.Key(), b.Key())
	}
	if a.Pair() != "public.alert->public.note" {
		t.Errorf("Unexpected pair %q", a.Pair())
	}
}

func TestManualRelations(t *testing.T) {
	rels, err := ManualRelations("alert", []config.RelationConfig{
		{Name: "alertenrichment", Mapping: config.MappingConfig{ParentColumns: []string{"id"}, ChildColumns: []string{"alert_fingerprint"}}},
		{Name: "note_tag", ParentTable: "note", Mapping: config.MappingConfig{ParentColumns: []string{"id"}, ChildColumns: []string{"note_id"}}},
	}, "public")
	if err != nil {
		t.Fatalf("ManualRelations failed: %v", err)
	}
	if len(rels) != 2 {
		t.Fatalf("Expected 2 relations, got %d", len(rels))
	}
	if rels[0].ParentTable != "public.alert" || rels[0].ChildTable != "public.alertenrichment" {
		t.Errorf("Expected root as default parent, got %+v", rels[0])
	}
	if rels[1].ParentTable != "public.note" {
		t.Errorf("Expected explicit parent, got %q", rels[1].ParentTable)
	}
	if rels[0].Source != SourceManual {
		t.Errorf("Expected manual source, got %q", rels[0].Source)
	}
}

func TestManualRelations_MappingMismatch(t *testing.T) {
	_, err := ManualRelations("alert", []config.RelationConfig{
		{Name: "note", Mapping: config.MappingConfig{ParentColumns: []string{"id", "tenant"}, ChildColumns: []string{"alert_id"}}},
	}, "public")

	var relErr *InvalidRelationError
	if !errors.As(err, &relErr) {
		t.Fatalf("Expected InvalidRelationError, got %T: %v", err, err)
	}
}
