package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestBatchProgressLines(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewBatchProgress(buf)

	progress.AddRows("public.alert", "live", 3)
	progress.ObserveBatch("public.alert", "live", "ok", 1200*time.Millisecond)
	progress.AddRows("public.alert", "live", 2)
	progress.ObserveBatch("public.alert", "live", "timeout", 30*time.Second)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d:\n%s", len(lines), buf.String())
	}
	if lines[0] != "✓ public.alert batch 1 ok in 1.2s (3 rows so far)" {
		t.Errorf("Unexpected first line %q", lines[0])
	}
	if lines[1] != "✗ public.alert batch 2 timeout in 30s (5 rows so far)" {
		t.Errorf("Unexpected second line %q", lines[1])
	}
}

func TestBatchProgressCycles(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewBatchProgress(buf)

	progress.AddCycles("public.alert", 0)
	if buf.Len() != 0 {
		t.Errorf("Expected no output for zero cycles, got %q", buf.String())
	}

	progress.AddCycles("public.alert", 2)
	if !strings.Contains(buf.String(), "public.alert: 2 relation cycle(s) dropped") {
		t.Errorf("Unexpected output %q", buf.String())
	}
}
