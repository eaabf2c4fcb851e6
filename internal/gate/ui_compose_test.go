package gate

import (
	"testing"

	"github.com/beads-queue/orchestrator/internal/uicheck"
)

func TestApplyUIGatePassThrough(t *testing.T) {
	result := Result{Verdict: Pass}
	out := ApplyUIGate(result, uicheck.Result{OK: true}, 0, 3)
	if out.Verdict != Pass {
		t.Fatalf("expected PASS preserved, got %s", out.Verdict)
	}
	if len(out.Reasons) == 0 || out.Reasons[len(out.Reasons)-1] != "ui_validation_passed" {
		t.Fatalf("expected ui_validation_passed reason, got %v", out.Reasons)
	}
}

func TestApplyUIGateDowngradesPassToRetry(t *testing.T) {
	result := Result{Verdict: Pass}
	ui := uicheck.Result{OK: false, Reasons: []string{"ui_missing_terms:dashboard", "ui_open_failed:timeout"}}
	out := ApplyUIGate(result, ui, 0, 3)
	if out.Verdict != Retry {
		t.Fatalf("expected RETRY, got %s", out.Verdict)
	}
	if len(out.MissingChecks) == 0 || out.MissingChecks[len(out.MissingChecks)-1] != "ui_validation" {
		t.Fatalf("expected ui_validation missing-check entry, got %v", out.MissingChecks)
	}
	wantReason := "ui:ui_missing_terms:dashboard;ui_open_failed:timeout"
	if len(out.Reasons) == 0 || out.Reasons[len(out.Reasons)-1] != wantReason {
		t.Fatalf("expected combined reason %q, got %v", wantReason, out.Reasons)
	}
}

func TestApplyUIGateDefaultsReasonWhenEmpty(t *testing.T) {
	result := Result{Verdict: Pass}
	ui := uicheck.Result{OK: false}
	out := ApplyUIGate(result, ui, 0, 3)
	wantReason := "ui:ui_validation_failed"
	if len(out.Reasons) == 0 || out.Reasons[len(out.Reasons)-1] != wantReason {
		t.Fatalf("expected default reason %q, got %v", wantReason, out.Reasons)
	}
}

func TestApplyUIGateBlockStaysBlock(t *testing.T) {
	result := Result{Verdict: Block, Reasons: []string{"explicit_block_marker:blocker"}}
	ui := uicheck.Result{OK: false, Reasons: []string{"ui_open_failed:timeout"}}
	out := ApplyUIGate(result, ui, 0, 3)
	if out.Verdict != Block {
		t.Fatalf("expected BLOCK to remain BLOCK, got %s", out.Verdict)
	}
}

func TestApplyUIGateRetryLimitPromotesToBlock(t *testing.T) {
	result := Result{Verdict: Pass}
	ui := uicheck.Result{OK: false, Reasons: []string{"ui_missing_terms:dashboard"}}
	out := ApplyUIGate(result, ui, 3, 3)
	if out.Verdict != Block {
		t.Fatalf("expected BLOCK at retry limit, got %s", out.Verdict)
	}
}
