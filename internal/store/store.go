// Package store defines the persistence contract for the queue engine: the
// durable item/event tables, transactional lease claiming, and dispatch
// support. Concrete backends live in internal/store/sqlite and
// internal/store/dolt; internal/store/factory selects between them.
package store

import (
	"context"

	"github.com/beads-queue/orchestrator/internal/types"
)

// Store is the full persistence contract. It composes the narrower
// interfaces internal/router and internal/watchdog declare for themselves,
// plus the dispatch- and administration-facing operations the CLI needs.
type Store interface {
	// Add inserts a new item in PENDING status. Returns ErrDuplicateID if
	// id already exists.
	Add(ctx context.Context, item types.Item) error

	// Get returns the item with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (types.Item, error)

	// List returns items matching filter in id order. A zero-valued filter
	// field means "any".
	List(ctx context.Context, filter types.Filter) ([]types.Item, error)

	// PickNext selects the next PENDING item by priority then insertion
	// order, transitions it to IN_PROGRESS under ownerSession with a fresh
	// lease, and returns it. Duplicate idempotency keys among already-DONE
	// items are skipped (marked DONE with a dedup note) before the first
	// eligible candidate is returned. Returns ErrNoWork if the queue has
	// nothing pickable.
	PickNext(ctx context.Context, ownerSession string, now int64, leaseTTLSeconds int64) (types.Item, error)

	// AcquireLease, RenewLease, and ReleaseLease implement the lease
	// protocol over internal/lease's pure predicates. When the predicate
	// refuses the caller (another owner holds a live lease, or the caller
	// does not hold the lease) they return an error wrapping
	// ErrContentionLost.
	AcquireLease(ctx context.Context, id, owner string, now, ttlSeconds int64) error
	RenewLease(ctx context.Context, id, owner string, now, ttlSeconds int64) error
	ReleaseLease(ctx context.Context, id, owner string) error

	MarkDone(ctx context.Context, id, notes string) error
	MarkFailed(ctx context.Context, id, notes string) error
	MarkBlocked(ctx context.Context, id, notes string) error
	// MarkPendingRetry resets an item to PENDING, clears owner/lease/started
	// fields, and sets attemptCount.
	MarkPendingRetry(ctx context.Context, id, notes string, attemptCount int) error
	// SetReviewAttempts persists the review gate's own retry counter,
	// independent of attempt_count.
	SetReviewAttempts(ctx context.Context, id string, reviewAttempts int) error

	// RetryEligible resets every FAILED or lease-expired IN_PROGRESS item
	// under its attempt cap back to PENDING and returns the reset ids.
	RetryEligible(ctx context.Context, now int64) ([]string, error)

	AppendEvent(ctx context.Context, id string, eventType types.EventType, payload map[string]any) error
	ListEvents(ctx context.Context, id string) ([]types.Event, error)

	Close() error
}

// ErrNoWork is returned by PickNext when there is nothing PENDING.
var ErrNoWork = newSentinel("store: no pending work")

// ErrNotFound, ErrDuplicateID, and ErrContentionLost classify the error
// taxonomy spec §7 names (NotFound, DuplicateId, ContentionLost). All three
// are returned as errors; the lease methods report ContentionLost by
// wrapping ErrContentionLost, not as a separate bool.
var (
	ErrNotFound      = newSentinel("store: not found")
	ErrDuplicateID   = newSentinel("store: duplicate id")
	ErrContentionLost = newSentinel("store: lease contention lost")
)

func newSentinel(msg string) error { return sentinelError(msg) }

type sentinelError string

func (e sentinelError) Error() string { return string(e) }
