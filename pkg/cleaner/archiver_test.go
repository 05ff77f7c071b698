package cleaner

import (
	"context"
	"errors"
	"testing"
)

func TestArchiver_FlushWritesInStagingOrder(t *testing.T) {
	sink := &memorySink{}
	a := NewArchiver(sink, "run-1", 3)

	a.Stage("public.note", []string{"id", "alert_id"}, [][]any{{int64(10), int64(1)}})
	a.Stage("public.alert", []string{"id"}, [][]any{{int64(1)}})
	a.Stage("public.note", []string{"id", "alert_id"}, [][]any{{int64(11), int64(1)}})
	a.Stage("public.empty", []string{"id"}, nil)

	if err := a.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if len(sink.batches) != 2 {
		t.Fatalf("Expected 2 table batches, got %d", len(sink.batches))
	}
	note := sink.batches[0]
	if note.Table != "public.note" || len(note.Rows) != 2 {
		t.Errorf("Expected 2 note rows first, got %s with %d rows", note.Table, len(note.Rows))
	}
	if note.RunID != "run-1" || note.Sequence != 3 {
		t.Errorf("Unexpected batch identity %q/%d", note.RunID, note.Sequence)
	}
	if a.Staged("public.note") != 0 {
		t.Errorf("Expected buffers cleared after flush")
	}
}

func TestArchiver_FlushOnlyOnce(t *testing.T) {
	sink := &memorySink{}
	a := NewArchiver(sink, "run", 1)
	a.Stage("public.alert", []string{"id"}, [][]any{{int64(1)}})

	if err := a.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := a.Flush(context.Background()); err == nil {
		t.Error("Expected second flush to fail")
	}
	if len(sink.batches) != 1 {
		t.Errorf("Expected rows written once, got %d batches", len(sink.batches))
	}
}

func TestArchiver_DiscardWritesNothing(t *testing.T) {
	sink := &memorySink{}
	a := NewArchiver(sink, "run", 1)
	a.Stage("public.alert", []string{"id"}, [][]any{{int64(1)}})

	a.Discard()

	if a.Staged("public.alert") != 0 {
		t.Error("Expected buffer cleared")
	}
	if len(sink.batches) != 0 {
		t.Errorf("Expected nothing written, got %d batches", len(sink.batches))
	}
}

func TestArchiver_SinkError(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	a := NewArchiver(sink, "run", 1)
	a.Stage("public.alert", []string{"id"}, [][]any{{int64(1)}})

	err := a.Flush(context.Background())
	if err == nil || !errors.Is(err, sink.err) {
		t.Errorf("Expected sink error, got %v", err)
	}
}
