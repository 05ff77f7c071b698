package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/cleaner/pkg/cleaner"
)

func sampleSummary() *cleaner.RunSummary {
	totals := cleaner.NewTotals()
	totals.Add("main.alertenrichment", 3)
	totals.Add("main.alert", 2)

	return &cleaner.RunSummary{
		RunID:    "run-1",
		DryRun:   true,
		Started:  time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC),
		Duration: 1500 * time.Millisecond,
		Tables: []*cleaner.TableSummary{
			{Table: "main.alert", DryRun: true, Totals: totals, Batches: 1, Keys: 2,
				Cycles: []cleaner.CycleEvent{{Parent: "main.b", Child: "main.a", Path: []string{"main.a", "main.b"}}}},
			{Table: "main.legacy", DryRun: true, Totals: cleaner.NewTotals(), Skipped: "disabled"},
			{Table: "main.broken", DryRun: true, Totals: cleaner.NewTotals(), Err: errors.New("timeout")},
		},
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"JSON", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestNewReport(t *testing.T) {
	r := NewReport(sampleSummary())

	if r.DurationMS != 1500 {
		t.Errorf("Expected 1500ms, got %d", r.DurationMS)
	}
	if len(r.Tables) != 3 {
		t.Fatalf("Expected 3 tables, got %d", len(r.Tables))
	}
	alert := r.Tables[0]
	if got := alert.Counts["main.alertenrichment"]; got.Count != 3 || !got.DryRun {
		t.Errorf("Unexpected enrichment count %+v", got)
	}
	if len(alert.Order) != 2 || alert.Order[0] != "main.alertenrichment" {
		t.Errorf("Expected deletion order preserved, got %v", alert.Order)
	}
	if len(alert.Cycles) != 1 {
		t.Errorf("Expected 1 cycle, got %v", alert.Cycles)
	}
	if r.Tables[2].Error != "timeout" {
		t.Errorf("Expected error message, got %q", r.Tables[2].Error)
	}
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatText).FormatTo(&buf, NewReport(sampleSummary())); err != nil {
		t.Fatalf("FormatTo failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Run run-1 (dry run)",
		"would delete",
		"skipped: disabled",
		"failed: timeout",
		"cycle dropped",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatJSON).FormatTo(&buf, NewReport(sampleSummary())); err != nil {
		t.Fatalf("FormatTo failed: %v", err)
	}

	var decoded struct {
		RunID  string `json:"run_id"`
		Tables []struct {
			Counts map[string]struct {
				Count  int64 `json:"count"`
				DryRun bool  `json:"dry_run"`
			} `json:"counts"`
		} `json:"tables"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if decoded.RunID != "run-1" {
		t.Errorf("Unexpected run id %q", decoded.RunID)
	}
	if got := decoded.Tables[0].Counts["main.alert"]; got.Count != 2 || !got.DryRun {
		t.Errorf("Unexpected alert count %+v", got)
	}
}

func TestCSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatCSV).FormatTo(&buf, NewReport(sampleSummary())); err != nil {
		t.Fatalf("FormatTo failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{
		"run_id,root,table,count,dry_run,status",
		"run-1,main.alert,main.alertenrichment,3,true,ok",
		"run-1,main.alert,main.alert,2,true,ok",
		"run-1,main.legacy,,,true,skipped",
		"run-1,main.broken,,,true,failed",
	}
	if len(lines) != len(want) {
		t.Fatalf("Expected %d lines, got %d:\n%s", len(want), len(lines), buf.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("Line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestBatchProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewBatchProgress(&buf)

	p.AddCycles("main.alert", 1)
	p.AddRows("main.alert", "live", 10)
	p.ObserveBatch("main.alert", "live", "ok", 1200*time.Millisecond)
	p.ObserveBatch("main.alert", "live", "timeout", 30*time.Second)

	out := buf.String()
	for _, want := range []string{
		"main.alert: 1 relation cycle(s) dropped",
		"main.alert batch 1 ok in 1.2s (10 rows so far)",
		"main.alert batch 2 timeout in 30s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}

func TestSetupSignalHandler(t *testing.T) {
	ctx, stop := SetupSignalHandler()

	select {
	case <-ctx.Done():
		t.Fatal("Context should not be cancelled initially")
	default:
	}

	stop()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Error("Expected stop to cancel the context")
	}
}
