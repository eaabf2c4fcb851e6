// Package dispatch holds the pure "which PENDING item comes next" policy so
// it can be unit-tested without a database. The store backends execute the
// same ordering and duplicate-detection rule inside a transaction; this
// package is the single place that rule is spelled out.
package dispatch

import (
	"sort"

	"github.com/beads-queue/orchestrator/internal/types"
)

// Sort orders items the way pick_next and list both do: priority ordinal
// ascending, then created_at ascending (insertion order). The sort is
// stable so ties beyond created_at keep their input order.
func Sort(items []types.Item) []types.Item {
	out := make([]types.Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].Priority.Ordinal(), out[j].Priority.Ordinal()
		if pi != pj {
			return pi < pj
		}
		return out[i].CreatedAtEpoch < out[j].CreatedAtEpoch
	})
	return out
}

// NextCandidate returns the highest-priority PENDING item from a
// Sort-ordered slice, or false if none is pending.
func NextCandidate(sorted []types.Item) (types.Item, bool) {
	for _, it := range sorted {
		if it.Status == types.StatusPending {
			return it, true
		}
	}
	return types.Item{}, false
}

// IsDuplicate reports whether candidate must be auto-closed as a duplicate
// because another item with the same idempotency key is already DONE.
// Called once per candidate at pick time, never at add time (see
// DESIGN.md: idempotency at pick, not add).
func IsDuplicate(candidate types.Item, doneKeyExists func(key, excludeID string) bool) bool {
	if candidate.IdempotencyKey == "" {
		return false
	}
	return doneKeyExists(candidate.IdempotencyKey, candidate.ID)
}
