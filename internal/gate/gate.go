// Package gate implements the review gate: the decision function mapping
// (success criteria, a worker's report, attempt count, optional UI smoke
// result) to a PASS/RETRY/BLOCK verdict. Ported rule-for-rule from
// _examples/original_source/automation/orchestrator/reviewer_gate.py, with
// the UI composition step from review_and_route.py's _apply_ui_gate.
package gate

// Verdict is the outcome of a review gate evaluation.
type Verdict string

const (
	Pass  Verdict = "PASS"
	Retry Verdict = "RETRY"
	Block Verdict = "BLOCK"
)

// Result is the full outcome of EvaluateResult, mirroring the Python
// original's returned dict one field at a time.
type Result struct {
	Verdict       Verdict
	Reasons       []string
	MissingChecks []string
	CoveredChecks int
	TotalChecks   int
}

// EvaluateResult is the deterministic gate evaluator (spec §4.G steps 1-5).
func EvaluateResult(successCriteria, reportText string, attemptCount, maxRetries int) Result {
	normalized := normalize(reportText)
	items := buildItems(successCriteria)

	var missing []string
	covered := 0
	for _, item := range items {
		if isItemCovered(item, normalized) {
			covered++
		} else {
			missing = append(missing, item.Raw)
		}
	}

	failureMarkers := findMarkers(normalized, failureMarkers)
	blockMarkers := findMarkers(normalized, blockMarkers)

	var reasons []string
	var verdict Verdict

	switch {
	case len(blockMarkers) > 0:
		reasons = append(reasons, "explicit_block_marker:"+joinComma(blockMarkers))
		verdict = Block
	case len(missing) == 0 && len(failureMarkers) == 0:
		reasons = append(reasons, "all_success_criteria_covered")
		verdict = Pass
	default:
		if len(missing) > 0 {
			reasons = append(reasons, "missing_checks:"+itoa(len(missing)))
		}
		if len(failureMarkers) > 0 {
			reasons = append(reasons, "failure_markers:"+joinComma(failureMarkers))
		}
		verdict = Retry
	}

	if verdict == Retry && attemptCount >= maxRetries {
		verdict = Block
		reasons = append(reasons, "retry_limit_reached:"+itoa(attemptCount)+"/"+itoa(maxRetries))
	}

	return Result{
		Verdict:       verdict,
		Reasons:       reasons,
		MissingChecks: missing,
		CoveredChecks: covered,
		TotalChecks:   len(items),
	}
}
