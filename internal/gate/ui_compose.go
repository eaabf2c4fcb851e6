package gate

import (
	"strings"

	"github.com/beads-queue/orchestrator/internal/uicheck"
)

// ApplyUIGate folds a UI smoke-check outcome into an already-computed
// criteria result, ported from review_and_route.py's _apply_ui_gate. A
// passing UI check only adds the ui_validation_passed reason. A failing
// one adds its reasons and the ui_validation missing check, leaves a BLOCK
// as BLOCK, turns a PASS into a RETRY, and promotes the resulting RETRY to
// BLOCK (with a retry_limit_reached reason) once attemptCount reaches
// maxRetries.
func ApplyUIGate(result Result, ui uicheck.Result, attemptCount, maxRetries int) Result {
	if ui.OK {
		out := result
		out.Reasons = append(append([]string{}, result.Reasons...), "ui_validation_passed")
		return out
	}

	reasons := ui.Reasons
	if len(reasons) == 0 {
		reasons = []string{"ui_validation_failed"}
	}

	out := result
	out.Reasons = append(append([]string{}, result.Reasons...), "ui:"+strings.Join(reasons, ";"))
	out.MissingChecks = append(append([]string{}, result.MissingChecks...), "ui_validation")

	switch result.Verdict {
	case Block:
		return out
	case Pass:
		out.Verdict = Retry
	}

	if out.Verdict == Retry && attemptCount >= maxRetries {
		out.Verdict = Block
		out.Reasons = append(out.Reasons, "retry_limit_reached:"+itoa(attemptCount)+"/"+itoa(maxRetries))
	}

	return out
}
