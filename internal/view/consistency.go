package view

import (
	"sort"

	"github.com/beads-queue/orchestrator/internal/types"
)

// FieldMismatch records a single field disagreement between the store and
// the view for one item id.
type FieldMismatch struct {
	ID         string
	Field      string
	StoreValue string
	ViewValue  string
}

// ConsistencyReport is the outcome of comparing the view against the
// store: which ids exist on only one side, and which shared ids disagree
// on a tracked field.
type ConsistencyReport struct {
	MissingInView  []string
	MissingInStore []string
	Mismatches     []FieldMismatch
}

// OK reports whether the view and store fully agree.
func (r ConsistencyReport) OK() bool {
	return len(r.MissingInView) == 0 && len(r.MissingInStore) == 0 && len(r.Mismatches) == 0
}

// CheckConsistency compares storeItems against viewRows on id-set and the
// fixed field set {status, priority, owner_session, started_at, due_at}.
// Supplemented per spec §4.J: the distillation has no prior-language
// source for this check, so it's built directly from the spec's field
// list and the view's own Row shape.
func CheckConsistency(storeItems []types.Item, viewRows []Row) ConsistencyReport {
	storeByID := make(map[string]types.Item, len(storeItems))
	for _, it := range storeItems {
		storeByID[it.ID] = it
	}
	viewByID := make(map[string]Row, len(viewRows))
	for _, r := range viewRows {
		viewByID[r.ID] = r
	}

	var report ConsistencyReport
	for id := range storeByID {
		if _, ok := viewByID[id]; !ok {
			report.MissingInView = append(report.MissingInView, id)
		}
	}
	for id := range viewByID {
		if _, ok := storeByID[id]; !ok {
			report.MissingInStore = append(report.MissingInStore, id)
		}
	}
	sort.Strings(report.MissingInView)
	sort.Strings(report.MissingInStore)

	var ids []string
	for id := range storeByID {
		if _, ok := viewByID[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	normalize := func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	}

	for _, id := range ids {
		it := storeByID[id]
		row := viewByID[id]
		fields := []struct {
			name, storeVal, viewVal string
		}{
			{"status", string(it.Status), row.Status},
			{"priority", string(it.Priority), row.Priority},
			{"owner_session", normalize(it.OwnerSession), normalize(row.OwnerSession)},
			{"started_at", normalize(it.StartedAtKST), normalize(row.StartedAtKST)},
			{"due_at", normalize(it.DueAtKST), normalize(row.DueAtKST)},
		}
		for _, f := range fields {
			if f.storeVal != f.viewVal {
				report.Mismatches = append(report.Mismatches, FieldMismatch{
					ID: id, Field: f.name, StoreValue: f.storeVal, ViewValue: f.viewVal,
				})
			}
		}
	}

	return report
}
