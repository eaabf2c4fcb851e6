// Package retrypolicy implements the queue's fixed-schedule backoff and the
// retry-eligibility predicate shared by the watchdog and the store.
//
// The schedule is a fixed table, not a curve: the spec's contract is
// "attempt k uses index min(k, len-1)". cenkalti/backoff/v4 is built around
// BackOff.NextBackOff() being called repeatedly as time advances, which
// fits this just as well as it fits an exponential series, so Schedule
// implements that interface instead of hand-rolling a parallel one.
package retrypolicy

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/beads-queue/orchestrator/internal/types"
)

// DefaultSeconds is the default fixed backoff table.
var DefaultSeconds = []int64{60, 180, 600}

// Schedule is a backoff.BackOff over a fixed table of durations: the nth
// call to NextBackOff returns table[min(n, len(table)-1)], then never
// advances further (repeats the last entry) until Reset.
type Schedule struct {
	Table []int64
	calls int
}

// NewSchedule builds a Schedule over seconds, defaulting to DefaultSeconds
// when seconds is empty.
func NewSchedule(seconds []int64) *Schedule {
	if len(seconds) == 0 {
		seconds = DefaultSeconds
	}
	return &Schedule{Table: seconds}
}

var _ backoff.BackOff = (*Schedule)(nil)

func (s *Schedule) NextBackOff() time.Duration {
	d := time.Duration(SecondsForAttempt(s.Table, s.calls)) * time.Second
	s.calls++
	return d
}

func (s *Schedule) Reset() { s.calls = 0 }

// SecondsForAttempt returns the backoff, in seconds, for the given
// zero-based attempt index, per "attempt k uses index min(k, len-1)".
func SecondsForAttempt(table []int64, attempt int) int64 {
	if len(table) == 0 {
		table = DefaultSeconds
	}
	idx := attempt
	if idx >= len(table) {
		idx = len(table) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return table[idx]
}

// Eligible is the pure predicate behind retry_eligible: an item is
// retry-eligible when it is FAILED with attempts remaining, or when it is
// IN_PROGRESS with an expired lease and attempts remaining.
func Eligible(status types.Status, leaseExpiresAt int64, attemptCount, maxAttempts int, now int64) bool {
	if attemptCount >= maxAttempts {
		return false
	}
	if status == types.StatusFailed {
		return true
	}
	if status == types.StatusInProgress && leaseExpiresAt > 0 && leaseExpiresAt <= now {
		return true
	}
	return false
}
