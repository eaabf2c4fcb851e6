package router

import (
	"context"
	"errors"
	"testing"

	"github.com/beads-queue/orchestrator/internal/gate"
	"github.com/beads-queue/orchestrator/internal/types"
)

type fakeStore struct {
	items  map[string]types.Item
	events []types.Event
}

func newFakeStore(items ...types.Item) *fakeStore {
	m := map[string]types.Item{}
	for _, it := range items {
		m[it.ID] = it
	}
	return &fakeStore{items: m}
}

func (f *fakeStore) Get(_ context.Context, id string) (types.Item, error) {
	it, ok := f.items[id]
	if !ok {
		return types.Item{}, errors.New("not found")
	}
	return it, nil
}

func (f *fakeStore) MarkDone(_ context.Context, id, notes string) error {
	it := f.items[id]
	it.Status = types.StatusDone
	it.Notes = notes
	f.items[id] = it
	return nil
}

func (f *fakeStore) MarkBlocked(_ context.Context, id, notes string) error {
	it := f.items[id]
	it.Status = types.StatusBlocked
	it.Notes = notes
	f.items[id] = it
	return nil
}

func (f *fakeStore) MarkPendingRetry(_ context.Context, id, notes string, attemptCount int) error {
	it := f.items[id]
	it.Status = types.StatusPending
	it.OwnerSession = ""
	it.StartedAtKST = ""
	it.LeaseOwner = ""
	it.LeaseExpiresAt = 0
	it.Notes = notes
	it.AttemptCount = attemptCount
	f.items[id] = it
	return nil
}

func (f *fakeStore) SetReviewAttempts(_ context.Context, id string, reviewAttempts int) error {
	it := f.items[id]
	it.ReviewAttempts = reviewAttempts
	f.items[id] = it
	return nil
}

func (f *fakeStore) AppendEvent(_ context.Context, id string, eventType types.EventType, payload map[string]any) error {
	f.events = append(f.events, types.Event{ItemID: id, EventType: eventType, Payload: payload})
	return nil
}

func TestApplyReviewVerdictPass(t *testing.T) {
	st := newFakeStore(types.Item{ID: "a", Status: types.StatusInProgress, MaxAttempts: 3})
	status, err := ApplyReviewVerdict(context.Background(), st, "a", gate.Result{Verdict: gate.Pass, Reasons: []string{"all_success_criteria_covered"}}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != types.StatusDone {
		t.Fatalf("expected DONE, got %s", status)
	}
}

func TestApplyReviewVerdictRetryIncrementsReviewAttempts(t *testing.T) {
	st := newFakeStore(types.Item{ID: "a", Status: types.StatusInProgress, AttemptCount: 0, ReviewAttempts: 0, MaxAttempts: 3})
	status, err := ApplyReviewVerdict(context.Background(), st, "a", gate.Result{Verdict: gate.Retry, MissingChecks: []string{"x"}}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != types.StatusPending {
		t.Fatalf("expected PENDING, got %s", status)
	}
	if st.items["a"].ReviewAttempts != 1 {
		t.Fatalf("expected review_attempts=1, got %d", st.items["a"].ReviewAttempts)
	}
	if st.items["a"].AttemptCount != 0 {
		t.Fatalf("expected attempt_count unchanged at 0, got %d", st.items["a"].AttemptCount)
	}
}

func TestApplyReviewVerdictBlock(t *testing.T) {
	st := newFakeStore(types.Item{ID: "a", Status: types.StatusInProgress, MaxAttempts: 3})
	status, err := ApplyReviewVerdict(context.Background(), st, "a", gate.Result{Verdict: gate.Block, Reasons: []string{"explicit_block_marker:blocker"}}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != types.StatusBlocked {
		t.Fatalf("expected BLOCKED, got %s", status)
	}
}

func TestCancelRejectsTerminal(t *testing.T) {
	st := newFakeStore(types.Item{ID: "a", Status: types.StatusDone})
	_, err := Cancel(context.Background(), st, "a")
	if !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
}

func TestCancelMovesToBlocked(t *testing.T) {
	st := newFakeStore(types.Item{ID: "a", Status: types.StatusPending})
	status, err := Cancel(context.Background(), st, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != types.StatusBlocked {
		t.Fatalf("expected BLOCKED, got %s", status)
	}
}

func TestReplanInProgressGoesToBlocked(t *testing.T) {
	st := newFakeStore(types.Item{ID: "a", Status: types.StatusInProgress})
	status, err := Replan(context.Background(), st, "a", "narrow scope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != types.StatusBlocked {
		t.Fatalf("expected BLOCKED, got %s", status)
	}
}

func TestReplanOtherGoesToPending(t *testing.T) {
	st := newFakeStore(types.Item{ID: "a", Status: types.StatusBlocked})
	status, err := Replan(context.Background(), st, "a", "try again")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != types.StatusPending {
		t.Fatalf("expected PENDING, got %s", status)
	}
}

func TestRetryRejectsMaxAttempts(t *testing.T) {
	st := newFakeStore(types.Item{ID: "a", Status: types.StatusFailed, AttemptCount: 3, MaxAttempts: 3})
	_, err := Retry(context.Background(), st, "a", 1000, []int64{60, 180, 600})
	if !errors.Is(err, ErrMaxAttempts) {
		t.Fatalf("expected ErrMaxAttempts, got %v", err)
	}
}

func TestRetryRejectsIneligibleStatus(t *testing.T) {
	st := newFakeStore(types.Item{ID: "a", Status: types.StatusPending, AttemptCount: 0, MaxAttempts: 3})
	_, err := Retry(context.Background(), st, "a", 1000, []int64{60, 180, 600})
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
}

func TestRetryAllowsTimedOutInProgress(t *testing.T) {
	st := newFakeStore(types.Item{ID: "a", Status: types.StatusInProgress, AttemptCount: 0, MaxAttempts: 3, LeaseExpiresAt: 500})
	status, err := Retry(context.Background(), st, "a", 1000, []int64{60, 180, 600})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != types.StatusPending {
		t.Fatalf("expected PENDING, got %s", status)
	}
	if st.items["a"].AttemptCount != 1 {
		t.Fatalf("expected attempt_count=1, got %d", st.items["a"].AttemptCount)
	}
}
