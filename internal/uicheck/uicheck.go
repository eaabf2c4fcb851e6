// Package uicheck implements the UI smoke collaborator contract: given a
// URL and a set of required terms, it drives an external browser-automation
// binary through "open" then "snapshot" and checks the snapshot text for
// every required term. Ported from
// _examples/original_source/automation/orchestrator/ui_validate.py.
package uicheck

import (
	"context"
	"strings"
	"time"
)

// Runner invokes an external command with an overall timeout and returns
// its exit code, stdout, and stderr. It is injected so tests never shell
// out, matching spec §9's injection-seam requirement.
type Runner func(ctx context.Context, args []string, timeout time.Duration) (rc int, stdout, stderr string)

// Result is the outcome of a UI smoke validation run.
type Result struct {
	OK              bool
	Reasons         []string
	Missing         []string
	SnapshotExcerpt string
}

const tool = "playwright-cli"

func sessionArgs(session string) []string {
	if session == "" {
		return nil
	}
	return []string{"--session=" + session}
}

func containsAll(snapshot string, required []string) []string {
	lower := strings.ToLower(snapshot)
	var missing []string
	for _, term := range required {
		t := strings.TrimSpace(term)
		if t == "" {
			continue
		}
		if !strings.Contains(lower, strings.ToLower(t)) {
			missing = append(missing, t)
		}
	}
	return missing
}

// Validate runs the two-step open/snapshot smoke check against url and
// verifies requiredTerms appear case-insensitively in the snapshot output.
// A context deadline or a runner timeout surfaces as rc=124, stderr
// "timeout" from the runner (see cmd wiring), which this function treats
// like any other non-zero rc: a failed open/snapshot step.
func Validate(ctx context.Context, run Runner, url string, requiredTerms []string, timeout time.Duration, session string) Result {
	openCmd := append(append([]string{tool}, sessionArgs(session)...), "open", url)
	rc, out, errOut := run(ctx, openCmd, timeout)
	if rc != 0 {
		reason := strings.TrimSpace(errOut)
		if reason == "" {
			reason = strings.TrimSpace(out)
		}
		if reason == "" {
			reason = "open_failed_rc=" + itoa(rc)
		}
		return Result{OK: false, Reasons: []string{"ui_open_failed:" + reason}, Missing: requiredTerms}
	}

	snapshotCmd := append(append([]string{tool}, sessionArgs(session)...), "snapshot")
	rc, out, errOut = run(ctx, snapshotCmd, timeout)
	if rc != 0 {
		reason := strings.TrimSpace(errOut)
		if reason == "" {
			reason = strings.TrimSpace(out)
		}
		if reason == "" {
			reason = "snapshot_failed_rc=" + itoa(rc)
		}
		return Result{OK: false, Reasons: []string{"ui_snapshot_failed:" + reason}, Missing: requiredTerms}
	}

	snapshotText := out
	if errOut != "" {
		snapshotText += "\n" + errOut
	}

	missing := containsAll(snapshotText, requiredTerms)
	excerpt := snapshotText
	if len(excerpt) > 400 {
		excerpt = excerpt[:400]
	}
	if len(missing) > 0 {
		return Result{
			OK:              false,
			Reasons:         []string{"ui_missing_terms:" + strings.Join(missing, ",")},
			Missing:         missing,
			SnapshotExcerpt: excerpt,
		}
	}

	return Result{OK: true, Reasons: []string{"ui_smoke_passed"}, SnapshotExcerpt: excerpt}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
