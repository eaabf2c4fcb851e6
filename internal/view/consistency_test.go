package view

import (
	"testing"

	"github.com/beads-queue/orchestrator/internal/types"
)

func TestCheckConsistencyOK(t *testing.T) {
	items := []types.Item{{ID: "a", Status: types.StatusPending, Priority: types.PriorityP0}}
	rows := []Row{{ID: "a", Status: "PENDING", Priority: "P0", OwnerSession: "-", StartedAtKST: "-", DueAtKST: "-"}}
	report := CheckConsistency(items, rows)
	if !report.OK() {
		t.Fatalf("expected OK, got %+v", report)
	}
}

func TestCheckConsistencyMissingInView(t *testing.T) {
	items := []types.Item{{ID: "a"}, {ID: "b"}}
	rows := []Row{{ID: "a"}}
	report := CheckConsistency(items, rows)
	if len(report.MissingInView) != 1 || report.MissingInView[0] != "b" {
		t.Fatalf("expected b missing in view, got %v", report.MissingInView)
	}
}

func TestCheckConsistencyMissingInStore(t *testing.T) {
	items := []types.Item{{ID: "a"}}
	rows := []Row{{ID: "a"}, {ID: "ghost"}}
	report := CheckConsistency(items, rows)
	if len(report.MissingInStore) != 1 || report.MissingInStore[0] != "ghost" {
		t.Fatalf("expected ghost missing in store, got %v", report.MissingInStore)
	}
}

func TestCheckConsistencyFieldMismatch(t *testing.T) {
	items := []types.Item{{ID: "a", Status: types.StatusDone, Priority: types.PriorityP0}}
	rows := []Row{{ID: "a", Status: "PENDING", Priority: "P0"}}
	report := CheckConsistency(items, rows)
	if len(report.Mismatches) != 1 {
		t.Fatalf("expected 1 mismatch, got %v", report.Mismatches)
	}
	if report.Mismatches[0].Field != "status" {
		t.Fatalf("expected status mismatch, got %s", report.Mismatches[0].Field)
	}
}
