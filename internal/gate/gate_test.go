package gate

import "testing"

func criteria() string {
	return "Handler returns 200; Logs request id\n- Tests pass"
}

func TestEvaluateResultPass(t *testing.T) {
	report := "handler returns 200 ok. logs request id fine. tests pass cleanly."
	r := EvaluateResult(criteria(), report, 0, 3)
	if r.Verdict != Pass {
		t.Fatalf("expected PASS, got %s (%v)", r.Verdict, r.Reasons)
	}
	if r.CoveredChecks != r.TotalChecks {
		t.Fatalf("expected full coverage, got %d/%d", r.CoveredChecks, r.TotalChecks)
	}
}

func TestEvaluateResultRetryOnMissing(t *testing.T) {
	report := "handler returns 200 ok."
	r := EvaluateResult(criteria(), report, 0, 3)
	if r.Verdict != Retry {
		t.Fatalf("expected RETRY, got %s", r.Verdict)
	}
	if len(r.MissingChecks) == 0 {
		t.Fatalf("expected missing checks recorded")
	}
}

func TestEvaluateResultRetryOnFailureMarker(t *testing.T) {
	report := "handler returns 200 ok. logs request id fine. tests pass cleanly. one test failed though."
	r := EvaluateResult(criteria(), report, 0, 3)
	if r.Verdict != Retry {
		t.Fatalf("expected RETRY from failure marker, got %s", r.Verdict)
	}
}

func TestEvaluateResultBlockOnMarker(t *testing.T) {
	report := "cannot proceed, this is a blocker for the team."
	r := EvaluateResult(criteria(), report, 0, 3)
	if r.Verdict != Block {
		t.Fatalf("expected BLOCK, got %s", r.Verdict)
	}
}

func TestEvaluateResultRetryLimitPromotesToBlock(t *testing.T) {
	report := "nothing covered here"
	r := EvaluateResult(criteria(), report, 3, 3)
	if r.Verdict != Block {
		t.Fatalf("expected BLOCK at retry limit, got %s", r.Verdict)
	}
	found := false
	for _, reason := range r.Reasons {
		if reason == "retry_limit_reached:3/3" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected retry_limit_reached reason, got %v", r.Reasons)
	}
}
