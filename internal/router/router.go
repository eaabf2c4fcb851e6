// Package router applies a review-gate verdict or an operator command as a
// state transition against the store. Ported from
// _examples/original_source/automation/orchestrator/review_and_route.py's
// route_sqlite and ops.py's cmd_*_db functions.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/beads-queue/orchestrator/internal/gate"
	"github.com/beads-queue/orchestrator/internal/retrypolicy"
	"github.com/beads-queue/orchestrator/internal/types"
)

// Store is the subset of store.Store the router needs. Defined here, at
// the consumer, rather than imported from internal/store, so router stays
// testable against a fake without pulling in a database driver.
type Store interface {
	Get(ctx context.Context, id string) (types.Item, error)
	MarkDone(ctx context.Context, id, notes string) error
	MarkBlocked(ctx context.Context, id, notes string) error
	// MarkPendingRetry resets an item to PENDING, clears owner/lease/started,
	// and sets attemptCount (the caller computes the new value).
	MarkPendingRetry(ctx context.Context, id, notes string, attemptCount int) error
	// SetReviewAttempts persists the review gate's own retry counter,
	// independent of attemptCount.
	SetReviewAttempts(ctx context.Context, id string, reviewAttempts int) error
	AppendEvent(ctx context.Context, id string, eventType types.EventType, payload map[string]any) error
}

var (
	// ErrNotFound names the missing-item case. No function in this package
	// returns it: a missing item surfaces as the store's own error, wrapped.
	ErrNotFound = errors.New("router: item not found")
	// ErrTerminal is returned when an operator command targets a DONE/FAILED item.
	ErrTerminal = errors.New("router: item is in a terminal state")
	// ErrNotEligible is returned when a retry is requested for an item that
	// isn't FAILED or a timed-out IN_PROGRESS.
	ErrNotEligible = errors.New("router: item is not eligible for this transition")
	// ErrMaxAttempts is returned when an operator retry would exceed MaxAttempts.
	ErrMaxAttempts = errors.New("router: max attempts reached")
)

func appendNote(existing, msg string) string {
	msg = strings.TrimSpace(msg)
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return msg
	}
	return existing + " | " + msg
}

// ApplyReviewVerdict routes a review gate Result: PASS marks the item DONE,
// RETRY resets it to PENDING and increments its ReviewAttempts counter
// (AttemptCount is left unchanged), BLOCK marks it BLOCKED. Mirrors route_sqlite's three branches exactly, including the
// review:<verdict> note annotation and the review_gate event payload.
func ApplyReviewVerdict(ctx context.Context, st Store, itemID string, result gate.Result, maxRetries int) (types.Status, error) {
	item, err := st.Get(ctx, itemID)
	if err != nil {
		return "", fmt.Errorf("router: get item %s: %w", itemID, err)
	}

	switch result.Verdict {
	case gate.Pass:
		notes := appendNote(item.Notes, "review:PASS "+strings.Join(result.Reasons, ";"))
		if err := st.MarkDone(ctx, itemID, notes); err != nil {
			return "", fmt.Errorf("router: mark done %s: %w", itemID, err)
		}
		st.AppendEvent(ctx, itemID, types.EventReviewGate, map[string]any{
			"verdict": string(gate.Pass), "reasons": result.Reasons,
		})
		return types.StatusDone, nil

	case gate.Retry:
		reviewAttempts := item.ReviewAttempts + 1
		notes := appendNote(item.Notes, fmt.Sprintf(
			"review:RETRY attempt=%d/%d missing=%s",
			reviewAttempts, maxRetries, strings.Join(result.MissingChecks, ","),
		))
		if err := st.MarkPendingRetry(ctx, itemID, notes, item.AttemptCount); err != nil {
			return "", fmt.Errorf("router: mark pending %s: %w", itemID, err)
		}
		if err := st.SetReviewAttempts(ctx, itemID, reviewAttempts); err != nil {
			return "", fmt.Errorf("router: set review attempts %s: %w", itemID, err)
		}
		st.AppendEvent(ctx, itemID, types.EventReviewGate, map[string]any{
			"verdict": string(gate.Retry), "attempt": reviewAttempts, "max_retries": maxRetries,
			"missing_checks": result.MissingChecks,
		})
		return types.StatusPending, nil

	default: // gate.Block
		reason := strings.Join(result.Reasons, ";")
		if reason == "" {
			reason = "review_gate_blocked"
		}
		notes := appendNote(item.Notes, "review:BLOCK "+reason)
		if err := st.MarkBlocked(ctx, itemID, notes); err != nil {
			return "", fmt.Errorf("router: mark blocked %s: %w", itemID, err)
		}
		st.AppendEvent(ctx, itemID, types.EventReviewGate, map[string]any{
			"verdict": string(gate.Block), "reasons": result.Reasons,
		})
		return types.StatusBlocked, nil
	}
}

// Cancel moves an active item to BLOCKED. Terminal items (DONE/FAILED)
// cannot be cancelled. Mirrors ops.py's cmd_cancel_db.
func Cancel(ctx context.Context, st Store, itemID string) (types.Status, error) {
	item, err := st.Get(ctx, itemID)
	if err != nil {
		return "", fmt.Errorf("router: get item %s: %w", itemID, err)
	}
	if item.Status == types.StatusDone || item.Status == types.StatusFailed {
		return "", fmt.Errorf("router: cancel %s (%s): %w", itemID, item.Status, ErrTerminal)
	}
	notes := appendNote(item.Notes, "cancelled_by_operator")
	if err := st.MarkBlocked(ctx, itemID, notes); err != nil {
		return "", fmt.Errorf("router: mark blocked %s: %w", itemID, err)
	}
	st.AppendEvent(ctx, itemID, types.EventBlocked, map[string]any{"reason": "cancelled_by_operator"})
	return types.StatusBlocked, nil
}

// Replan appends an operator note and moves the item to BLOCKED (if it was
// IN_PROGRESS) or PENDING (otherwise). Mirrors ops.py's cmd_replan_db.
func Replan(ctx context.Context, st Store, itemID, notes string) (types.Status, error) {
	item, err := st.Get(ctx, itemID)
	if err != nil {
		return "", fmt.Errorf("router: get item %s: %w", itemID, err)
	}
	merged := appendNote(item.Notes, "replan:"+strings.TrimSpace(notes))

	if item.Status == types.StatusInProgress {
		if err := st.MarkBlocked(ctx, itemID, merged); err != nil {
			return "", fmt.Errorf("router: mark blocked %s: %w", itemID, err)
		}
		st.AppendEvent(ctx, itemID, types.EventReplan, map[string]any{"status": string(types.StatusBlocked)})
		return types.StatusBlocked, nil
	}

	if err := st.MarkPendingRetry(ctx, itemID, merged, item.AttemptCount); err != nil {
		return "", fmt.Errorf("router: mark pending %s: %w", itemID, err)
	}
	st.AppendEvent(ctx, itemID, types.EventReplan, map[string]any{"status": string(types.StatusPending)})
	return types.StatusPending, nil
}

// Retry moves an eligible FAILED or timed-out IN_PROGRESS item back to
// PENDING, incrementing its attempt count and stamping a retry_not_before
// note per the fixed backoff schedule. Mirrors ops.py's cmd_retry_db.
func Retry(ctx context.Context, st Store, itemID string, now int64, backoffTable []int64) (types.Status, error) {
	item, err := st.Get(ctx, itemID)
	if err != nil {
		return "", fmt.Errorf("router: get item %s: %w", itemID, err)
	}
	if item.AttemptCount >= item.MaxAttempts {
		return "", fmt.Errorf("router: retry %s (%d/%d): %w", itemID, item.AttemptCount, item.MaxAttempts, ErrMaxAttempts)
	}

	timedOut := item.Status == types.StatusInProgress && item.LeaseExpiresAt != 0 && item.LeaseExpiresAt <= now
	if item.Status != types.StatusFailed && !timedOut {
		return "", fmt.Errorf("router: retry %s (%s): %w", itemID, item.Status, ErrNotEligible)
	}

	backoff := retrypolicy.SecondsForAttempt(backoffTable, item.AttemptCount)
	notes := appendNote(item.Notes, fmt.Sprintf("retry_not_before=%d", now+backoff))
	if err := st.MarkPendingRetry(ctx, itemID, notes, item.AttemptCount+1); err != nil {
		return "", fmt.Errorf("router: mark pending %s: %w", itemID, err)
	}
	st.AppendEvent(ctx, itemID, types.EventRetried, map[string]any{"reason": "operator_retry"})
	return types.StatusPending, nil
}
