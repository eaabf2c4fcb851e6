package retrypolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/beads-queue/orchestrator/internal/types"
)

func TestSecondsForAttempt(t *testing.T) {
	table := DefaultSeconds
	assert.Equal(t, int64(60), SecondsForAttempt(table, 0))
	assert.Equal(t, int64(180), SecondsForAttempt(table, 1))
	assert.Equal(t, int64(600), SecondsForAttempt(table, 2))
	assert.Equal(t, int64(600), SecondsForAttempt(table, 3))
}

func TestScheduleNextBackOff(t *testing.T) {
	s := NewSchedule(nil)
	assert.Equal(t, int64(60), int64(s.NextBackOff().Seconds()))
	assert.Equal(t, int64(180), int64(s.NextBackOff().Seconds()))
	assert.Equal(t, int64(600), int64(s.NextBackOff().Seconds()))
	assert.Equal(t, int64(600), int64(s.NextBackOff().Seconds()))
	s.Reset()
	assert.Equal(t, int64(60), int64(s.NextBackOff().Seconds()))
}

func TestEligible(t *testing.T) {
	// FAILED with attempts remaining is eligible regardless of lease.
	assert.True(t, Eligible(types.StatusFailed, 0, 1, 3, 1000))
	// FAILED with attempts exhausted is not eligible.
	assert.False(t, Eligible(types.StatusFailed, 0, 3, 3, 1000))
	// IN_PROGRESS with a live lease is not eligible.
	assert.False(t, Eligible(types.StatusInProgress, 2000, 0, 3, 1000))
	// IN_PROGRESS with an expired lease is eligible.
	assert.True(t, Eligible(types.StatusInProgress, 500, 0, 3, 1000))
	// PENDING/DONE/BLOCKED are never eligible.
	assert.False(t, Eligible(types.StatusPending, 0, 0, 3, 1000))
	assert.False(t, Eligible(types.StatusDone, 0, 0, 3, 1000))
}
