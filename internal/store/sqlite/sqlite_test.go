package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/beads-queue/orchestrator/internal/clock"
	"github.com/beads-queue/orchestrator/internal/store"
	"github.com/beads-queue/orchestrator/internal/types"
)

func newTestStore(t *testing.T) (*Store, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(1_000_000, 9)
	st, err := New(context.Background(), "file::memory:?cache=shared", clk)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st, clk
}

func addItem(t *testing.T, st *Store, id string, priority types.Priority) {
	t.Helper()
	ctx := context.Background()
	if err := st.Add(ctx, types.Item{ID: id, Priority: priority, Task: "do " + id, MaxAttempts: 3}); err != nil {
		t.Fatalf("Add(%s) failed: %v", id, err)
	}
}

func TestAddAndGet(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	addItem(t, st, "ORCH-1", types.PriorityP1)

	got, err := st.Get(ctx, "ORCH-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != types.StatusPending {
		t.Fatalf("expected PENDING, got %s", got.Status)
	}
}

func TestAddDuplicateID(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	addItem(t, st, "ORCH-1", types.PriorityP1)
	err := st.Add(ctx, types.Item{ID: "ORCH-1", Priority: types.PriorityP1, Task: "dup", MaxAttempts: 3})
	if !errors.Is(err, store.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	st, _ := newTestStore(t)
	_, err := st.Get(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPickNextPriorityOrder(t *testing.T) {
	st, clk := newTestStore(t)
	ctx := context.Background()
	addItem(t, st, "ORCH-LOW", types.PriorityP2)
	clk.Advance(1e9)
	addItem(t, st, "ORCH-HIGH", types.PriorityP0)

	picked, err := st.PickNext(ctx, "worker-a", clk.NowEpoch(), 900)
	if err != nil {
		t.Fatalf("PickNext failed: %v", err)
	}
	if picked.ID != "ORCH-HIGH" {
		t.Fatalf("expected ORCH-HIGH picked first, got %s", picked.ID)
	}
	if picked.Status != types.StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", picked.Status)
	}
}

func TestPickNextNoWork(t *testing.T) {
	st, clk := newTestStore(t)
	_, err := st.PickNext(context.Background(), "worker-a", clk.NowEpoch(), 900)
	if !errors.Is(err, store.ErrNoWork) {
		t.Fatalf("expected ErrNoWork, got %v", err)
	}
}

func TestPickNextSkipsIdempotentDuplicate(t *testing.T) {
	st, clk := newTestStore(t)
	ctx := context.Background()

	if err := st.Add(ctx, types.Item{ID: "ORCH-DONE", Priority: types.PriorityP0, Task: "t", MaxAttempts: 3, IdempotencyKey: "k1"}); err != nil {
		t.Fatalf("add done item: %v", err)
	}
	if err := st.MarkDone(ctx, "ORCH-DONE", "finished"); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if err := st.Add(ctx, types.Item{ID: "ORCH-DUP", Priority: types.PriorityP0, Task: "t", MaxAttempts: 3, IdempotencyKey: "k1"}); err != nil {
		t.Fatalf("add dup item: %v", err)
	}
	if err := st.Add(ctx, types.Item{ID: "ORCH-NEXT", Priority: types.PriorityP1, Task: "t", MaxAttempts: 3}); err != nil {
		t.Fatalf("add next item: %v", err)
	}

	picked, err := st.PickNext(ctx, "worker-a", clk.NowEpoch(), 900)
	if err != nil {
		t.Fatalf("PickNext failed: %v", err)
	}
	if picked.ID != "ORCH-NEXT" {
		t.Fatalf("expected ORCH-NEXT after duplicate skipped, got %s", picked.ID)
	}

	dup, err := st.Get(ctx, "ORCH-DUP")
	if err != nil {
		t.Fatalf("get dup: %v", err)
	}
	if dup.Status != types.StatusDone {
		t.Fatalf("expected duplicate auto-marked DONE, got %s", dup.Status)
	}
}

func TestMarkFailedSetsLastErrorMarkDoneClearsIt(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	addItem(t, st, "ORCH-1", types.PriorityP0)

	if err := st.MarkFailed(ctx, "ORCH-1", "boom: connection refused"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	it, err := st.Get(ctx, "ORCH-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if it.LastError != "boom: connection refused" {
		t.Fatalf("expected last_error set to failure notes, got %q", it.LastError)
	}

	addItem(t, st, "ORCH-2", types.PriorityP0)
	if err := st.MarkDone(ctx, "ORCH-2", "all good"); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	it2, err := st.Get(ctx, "ORCH-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if it2.LastError != "" {
		t.Fatalf("expected last_error cleared on DONE, got %q", it2.LastError)
	}
}

func TestLeaseAcquireRenewRelease(t *testing.T) {
	st, clk := newTestStore(t)
	ctx := context.Background()
	addItem(t, st, "ORCH-1", types.PriorityP0)

	now := clk.NowEpoch()
	if err := st.AcquireLease(ctx, "ORCH-1", "worker-a", now, 900); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if err := st.AcquireLease(ctx, "ORCH-1", "worker-b", now, 900); !errors.Is(err, store.ErrContentionLost) {
		t.Fatalf("expected contention lost, got %v", err)
	}
	if err := st.RenewLease(ctx, "ORCH-1", "worker-a", now, 900); err != nil {
		t.Fatalf("renew failed: %v", err)
	}
	if err := st.ReleaseLease(ctx, "ORCH-1", "worker-a"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := st.AcquireLease(ctx, "ORCH-1", "worker-b", now, 900); err != nil {
		t.Fatalf("expected acquire to succeed after release: %v", err)
	}
}

func TestRetryEligibleResetsStaleAndFailed(t *testing.T) {
	st, clk := newTestStore(t)
	ctx := context.Background()
	addItem(t, st, "ORCH-FAILED", types.PriorityP0)
	if err := st.MarkFailed(ctx, "ORCH-FAILED", "boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	addItem(t, st, "ORCH-STALE", types.PriorityP0)
	now := clk.NowEpoch()
	if _, err := st.PickNext(ctx, "worker-a", now, 10); err != nil {
		t.Fatalf("pick next: %v", err)
	}

	ids, err := st.RetryEligible(ctx, now+3600)
	if err != nil {
		t.Fatalf("RetryEligible failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 reset ids, got %v", ids)
	}

	for _, id := range ids {
		it, err := st.Get(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if it.Status != types.StatusPending {
			t.Fatalf("expected %s PENDING, got %s", id, it.Status)
		}
		if it.AttemptCount != 1 {
			t.Fatalf("expected %s attempt_count=1, got %d", id, it.AttemptCount)
		}
	}
}

func TestListFiltersByStatus(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	addItem(t, st, "ORCH-1", types.PriorityP0)
	addItem(t, st, "ORCH-2", types.PriorityP1)
	if err := st.MarkFailed(ctx, "ORCH-2", "boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	pending, err := st.List(ctx, types.Filter{Status: types.StatusPending})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "ORCH-1" {
		t.Fatalf("expected only ORCH-1 pending, got %v", pending)
	}
}

func TestAppendAndListEvents(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	addItem(t, st, "ORCH-1", types.PriorityP0)

	if err := st.AppendEvent(ctx, "ORCH-1", types.EventGuardrail, map[string]any{"state": "OK"}); err != nil {
		t.Fatalf("append event failed: %v", err)
	}
	events, err := st.ListEvents(ctx, "ORCH-1")
	if err != nil {
		t.Fatalf("list events failed: %v", err)
	}
	// one "added" event from Add, plus the guardrail event just appended.
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[len(events)-1].EventType != types.EventGuardrail {
		t.Fatalf("expected last event guardrail, got %s", events[len(events)-1].EventType)
	}
}
