package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/beads-queue/orchestrator/internal/types"
)

func TestSortPriorityThenInsertionOrder(t *testing.T) {
	items := []types.Item{
		{ID: "A", Priority: types.PriorityP2, CreatedAtEpoch: 1, Status: types.StatusPending},
		{ID: "B", Priority: types.PriorityP0, CreatedAtEpoch: 2, Status: types.StatusPending},
		{ID: "C", Priority: types.PriorityP0, CreatedAtEpoch: 1, Status: types.StatusPending},
	}
	sorted := Sort(items)
	assert.Equal(t, []string{"C", "B", "A"}, idsOf(sorted))
}

func idsOf(items []types.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestNextCandidateSkipsNonPending(t *testing.T) {
	items := Sort([]types.Item{
		{ID: "A", Priority: types.PriorityP0, Status: types.StatusDone},
		{ID: "B", Priority: types.PriorityP1, Status: types.StatusPending},
	})
	got, ok := NextCandidate(items)
	assert.True(t, ok)
	assert.Equal(t, "B", got.ID)
}

func TestNextCandidateEmpty(t *testing.T) {
	_, ok := NextCandidate(nil)
	assert.False(t, ok)
}

func TestIsDuplicate(t *testing.T) {
	candidate := types.Item{ID: "I2", IdempotencyKey: "k"}
	assert.True(t, IsDuplicate(candidate, func(key, excludeID string) bool {
		return key == "k" && excludeID == "I2"
	}))

	noKey := types.Item{ID: "I3"}
	assert.False(t, IsDuplicate(noKey, func(string, string) bool { return true }))
}
