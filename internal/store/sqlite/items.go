package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/beads-queue/orchestrator/internal/store"
	"github.com/beads-queue/orchestrator/internal/types"
)

const itemColumns = `id, status, priority, task, success_criteria, due_at_kst, notes,
	owner_session, started_at_kst, attempt_count, max_attempts, last_error,
	review_attempts, lease_owner, lease_expires_at, idempotency_key,
	created_at, updated_at, created_at_epoch, updated_at_epoch`

func scanItem(row interface{ Scan(...any) error }) (types.Item, error) {
	var it types.Item
	var leaseOwner sql.NullString
	var leaseExpiresAt sql.NullInt64
	var idempotencyKey sql.NullString

	err := row.Scan(
		&it.ID, &it.Status, &it.Priority, &it.Task, &it.SuccessCriteria, &it.DueAtKST, &it.Notes,
		&it.OwnerSession, &it.StartedAtKST, &it.AttemptCount, &it.MaxAttempts, &it.LastError,
		&it.ReviewAttempts, &leaseOwner, &leaseExpiresAt, &idempotencyKey,
		&it.CreatedAtKST, &it.UpdatedAtKST, &it.CreatedAtEpoch, &it.UpdatedAtEpoch,
	)
	if err != nil {
		return types.Item{}, err
	}
	it.LeaseOwner = leaseOwner.String
	it.LeaseExpiresAt = leaseExpiresAt.Int64
	it.IdempotencyKey = idempotencyKey.String
	return it, nil
}

// Add inserts item as PENDING. Returns store.ErrDuplicateID if id exists.
func (s *Store) Add(ctx context.Context, item types.Item) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("sqlite: add item %s: %w", item.ID, err)
	}
	now := s.clk.NowWall()
	nowEpoch := s.clk.NowEpoch()

	var idempotencyKey any
	if item.IdempotencyKey != "" {
		idempotencyKey = item.IdempotencyKey
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queue_items (
			id, status, priority, task, success_criteria, due_at_kst, notes,
			owner_session, started_at_kst, attempt_count, max_attempts, last_error,
			review_attempts, lease_owner, lease_expires_at, idempotency_key,
			created_at, updated_at, created_at_epoch, updated_at_epoch
		) VALUES (?, 'PENDING', ?, ?, ?, ?, ?, '-', '-', 0, ?, '', 0, NULL, NULL, ?, ?, ?, ?, ?)
	`, item.ID, item.Priority, item.Task, item.SuccessCriteria, orDash(item.DueAtKST), item.Notes,
		item.MaxAttempts, idempotencyKey, now, now, nowEpoch, nowEpoch)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sqlite: add item %s: %w", item.ID, store.ErrDuplicateID)
		}
		return wrapDBError(fmt.Sprintf("sqlite: add item %s", item.ID), err)
	}

	s.appendEventLocked(ctx, item.ID, types.EventAdded, map[string]any{
		"priority": string(item.Priority), "idempotency_key": item.IdempotencyKey,
	})
	return nil
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToUpper(err.Error()), "UNIQUE CONSTRAINT")
}

// Get returns the item with the given id, or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (types.Item, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM queue_items WHERE id = ?", id)
	it, err := scanItem(row)
	if err != nil {
		return types.Item{}, wrapDBError(fmt.Sprintf("sqlite: get item %s", id), err)
	}
	return it, nil
}

// List returns items matching filter, in id order.
func (s *Store) List(ctx context.Context, filter types.Filter) ([]types.Item, error) {
	query := "SELECT " + itemColumns + " FROM queue_items WHERE 1=1"
	var args []any
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Priority != "" {
		query += " AND priority = ?"
		args = append(args, string(filter.Priority))
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("sqlite: list items", err)
	}
	defer rows.Close()

	var items []types.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, wrapDBError("sqlite: scan item row", err)
		}
		items = append(items, it)
	}
	return items, wrapDBError("sqlite: iterate item rows", rows.Err())
}

// markTerminal moves id to status, recording notes and setting last_error
// to notes for FAILED (invariant 6: non-empty last_error iff FAILED) or
// clearing it otherwise.
func (s *Store) markTerminal(ctx context.Context, id, status, notes string) error {
	lastError := ""
	if status == string(types.StatusFailed) {
		lastError = notes
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE queue_items SET status = ?, notes = ?, last_error = ?, updated_at = ?, updated_at_epoch = ?
		WHERE id = ?
	`, status, notes, lastError, s.clk.NowWall(), s.clk.NowEpoch(), id)
	if err != nil {
		return wrapDBError(fmt.Sprintf("sqlite: mark %s %s", status, id), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("sqlite: rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: mark %s %s: %w", status, id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) MarkDone(ctx context.Context, id, notes string) error {
	if err := s.markTerminal(ctx, id, string(types.StatusDone), notes); err != nil {
		return err
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id, notes string) error {
	return s.markTerminal(ctx, id, string(types.StatusFailed), notes)
}

func (s *Store) MarkBlocked(ctx context.Context, id, notes string) error {
	return s.markTerminal(ctx, id, string(types.StatusBlocked), notes)
}

// MarkPendingRetry resets id to PENDING, clears owner/lease/started
// fields, and sets attempt_count to attemptCount.
func (s *Store) MarkPendingRetry(ctx context.Context, id, notes string, attemptCount int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE queue_items
		SET status = 'PENDING',
		    owner_session = '-',
		    started_at_kst = '-',
		    lease_owner = NULL,
		    lease_expires_at = NULL,
		    attempt_count = ?,
		    notes = ?,
		    updated_at = ?,
		    updated_at_epoch = ?
		WHERE id = ?
	`, attemptCount, notes, s.clk.NowWall(), s.clk.NowEpoch(), id)
	if err != nil {
		return wrapDBError(fmt.Sprintf("sqlite: mark pending retry %s", id), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("sqlite: rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: mark pending retry %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// SetReviewAttempts persists the review gate's own retry counter,
// independent of attempt_count (which tracks dispatch/watchdog retries).
func (s *Store) SetReviewAttempts(ctx context.Context, id string, reviewAttempts int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE queue_items
		SET review_attempts = ?,
		    updated_at = ?,
		    updated_at_epoch = ?
		WHERE id = ?
	`, reviewAttempts, s.clk.NowWall(), s.clk.NowEpoch(), id)
	if err != nil {
		return wrapDBError(fmt.Sprintf("sqlite: set review attempts %s", id), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("sqlite: rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: set review attempts %s: %w", id, store.ErrNotFound)
	}
	return nil
}
