package auditlog

import (
	"path/filepath"
	"testing"
)

func TestAppendAndReadAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "run.jsonl")

	start := Run{TSWall: "2026-07-30 10:00", Event: EventRunStart, TraceID: "t1", Command: "dispatch", ExitCode: 0, Status: "running"}
	end := Run{TSWall: "2026-07-30 10:00", Event: EventRunEnd, TraceID: "t1", Command: "dispatch", ExitCode: 0, Status: "ok", DurationMS: 42}

	if err := Append(path, start); err != nil {
		t.Fatalf("append start failed: %v", err)
	}
	if err := Append(path, end); err != nil {
		t.Fatalf("append end failed: %v", err)
	}

	runs, err := ReadAll(path)
	if err != nil {
		t.Fatalf("read all failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Event != EventRunStart || runs[1].Event != EventRunEnd {
		t.Fatalf("unexpected event order: %+v", runs)
	}
	if runs[1].DurationMS != 42 {
		t.Fatalf("expected duration_ms=42, got %d", runs[1].DurationMS)
	}
}

func TestNewTraceIDIsUnique(t *testing.T) {
	a := NewTraceID()
	b := NewTraceID()
	if a == b {
		t.Fatalf("expected distinct trace ids")
	}
}
