package ingesttrace

import "testing"

func TestTraceIDDeterminism(t *testing.T) {
	first := New(100, 5, "business_message")
	second := New(100, 5, "business_message")
	if first.TraceID != second.TraceID {
		t.Fatalf("expected deterministic trace id, got %q and %q", first.TraceID, second.TraceID)
	}
	if len(first.TraceID) != 16 {
		t.Fatalf("expected 16 hex chars, got %q", first.TraceID)
	}

	different := New(101, 5, "business_message")
	if first.TraceID == different.TraceID {
		t.Fatalf("expected different trace id when the update id changes")
	}
}

func TestCounterIncrements(t *testing.T) {
	trace := New(1, 2, "message")

	if count := trace.Count(StageReceived); count != 1 {
		t.Fatalf("expected received to be seeded with 1, got %d", count)
	}
	if count := trace.Inc(StageCached); count != 1 {
		t.Fatalf("expected cached to be 1, got %d", count)
	}
	if count := trace.Inc(StageSkipped("no_sender")); count != 1 {
		t.Fatalf("expected skipped_no_sender to be 1, got %d", count)
	}
	if count := trace.Inc(StageSkipped("no_sender")); count != 2 {
		t.Fatalf("expected skipped_no_sender to be 2 after increment, got %d", count)
	}

	var nilTrace *UpdateTrace
	if nilTrace.Inc(StageRouted) != 0 {
		t.Fatalf("nil trace should ignore increments")
	}
}
