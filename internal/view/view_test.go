package view

import (
	"strings"
	"testing"

	"github.com/beads-queue/orchestrator/internal/types"
)

func sampleItems() []types.Item {
	return []types.Item{
		{ID: "ORCH-001", Status: types.StatusPending, Priority: types.PriorityP0, Task: "fix bug", SuccessCriteria: "tests pass", DueAtKST: "-", Notes: ""},
		{ID: "ORCH-002", Status: types.StatusInProgress, Priority: types.PriorityP1, Task: "ship feature", OwnerSession: "worker-a", StartedAtKST: "2026-07-30 10:00"},
	}
}

func TestRenderFromEmptyDocument(t *testing.T) {
	doc, err := Render("", sampleItems())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(doc, header) {
		t.Fatalf("expected header in doc, got %q", doc)
	}
	if !strings.Contains(doc, "ORCH-001") || !strings.Contains(doc, "ORCH-002") {
		t.Fatalf("expected both ids present, got %q", doc)
	}
}

func TestRenderPreservesSurroundingContent(t *testing.T) {
	existing := "# Queue\n\nSome preamble.\n\n" + header + "\n" + separator + "\n| ORCH-001 | PENDING | P0 | old | old | - | - | - |  |\n\nTrailer note.\n"
	doc, err := Render(existing, sampleItems())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(doc, "# Queue") || !strings.Contains(doc, "Some preamble.") {
		t.Fatalf("expected preamble preserved, got %q", doc)
	}
	if !strings.Contains(doc, "Trailer note.") {
		t.Fatalf("expected trailer preserved, got %q", doc)
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	doc1, err := Render("", sampleItems())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc2, err := Render(doc1, sampleItems())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc1 != doc2 {
		t.Fatalf("expected idempotent projection:\n%q\nvs\n%q", doc1, doc2)
	}
}

func TestParseRowsRoundTrip(t *testing.T) {
	doc, err := Render("", sampleItems())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows, _, _, err := ParseRows(doc)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1].OwnerSession != "worker-a" {
		t.Fatalf("expected owner-a, got %q", rows[1].OwnerSession)
	}
}

func TestParseRowsSchemaMismatch(t *testing.T) {
	doc := header + "\n" + separator + "\n| ORCH-001 | PENDING | P0 |\n"
	_, _, _, err := ParseRows(doc)
	if err == nil {
		t.Fatalf("expected schema mismatch error")
	}
	if _, ok := err.(*ErrSchemaMismatch); !ok {
		t.Fatalf("expected *ErrSchemaMismatch, got %T", err)
	}
}

func TestSanitizeCellReplacesPipesAndNewlines(t *testing.T) {
	r := Row{ID: "x", Notes: "line1\nline2 | with pipe"}
	line := rowToLine(r)
	if strings.Contains(line, "\n") {
		t.Fatalf("expected no embedded newline in row line")
	}
	if !strings.Contains(line, "line1 line2 / with pipe") {
		t.Fatalf("expected sanitized notes cell, got %q", line)
	}
}
