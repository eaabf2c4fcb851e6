package dolt

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/beads-queue/orchestrator/internal/lease"
	"github.com/beads-queue/orchestrator/internal/store"
	"github.com/beads-queue/orchestrator/internal/types"
)

// currentLeaseForUpdate reads id's lease_owner/lease_expires_at inside tx,
// taking a row lock so a concurrent connection can't decide against the
// same stale snapshot (dolt, unlike sqlite, serves more than one
// connection at once).
func currentLeaseForUpdate(ctx context.Context, tx *sql.Tx, id string) (owner string, expiresAt int64, err error) {
	var leaseOwner sql.NullString
	var leaseExpiresAt sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT lease_owner, lease_expires_at FROM queue_items WHERE id = ? FOR UPDATE`, id).
		Scan(&leaseOwner, &leaseExpiresAt)
	if err != nil {
		return "", 0, err
	}
	return leaseOwner.String, leaseExpiresAt.Int64, nil
}

// AcquireLease grants owner a fresh lease on id if no live lease is held,
// per internal/lease's CanAcquire.
func (s *Store) AcquireLease(ctx context.Context, id, owner string, now, ttlSeconds int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDBError(fmt.Sprintf("dolt: acquire lease %s", id), err)
	}
	defer tx.Rollback()

	currentOwner, currentExpiresAt, err := currentLeaseForUpdate(ctx, tx, id)
	if err != nil {
		return wrapDBError(fmt.Sprintf("dolt: acquire lease %s", id), err)
	}
	if !lease.CanAcquire(now, currentOwner, currentExpiresAt) {
		return fmt.Errorf("dolt: acquire lease %s: %w", id, store.ErrContentionLost)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE queue_items SET lease_owner = ?, lease_expires_at = ?, updated_at = ?, updated_at_epoch = ?
		WHERE id = ?
	`, owner, now+ttlSeconds, s.clk.NowWall(), s.clk.NowEpoch(), id); err != nil {
		return wrapDBError(fmt.Sprintf("dolt: acquire lease %s", id), err)
	}
	if err := tx.Commit(); err != nil {
		return wrapDBError(fmt.Sprintf("dolt: acquire lease %s", id), err)
	}
	s.appendEventLocked(ctx, id, types.EventLeaseAcquired, map[string]any{"owner": owner})
	return nil
}

// RenewLease extends owner's existing live lease on id, per
// internal/lease's CanRenew.
func (s *Store) RenewLease(ctx context.Context, id, owner string, now, ttlSeconds int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDBError(fmt.Sprintf("dolt: renew lease %s", id), err)
	}
	defer tx.Rollback()

	currentOwner, currentExpiresAt, err := currentLeaseForUpdate(ctx, tx, id)
	if err != nil {
		return wrapDBError(fmt.Sprintf("dolt: renew lease %s", id), err)
	}
	if !lease.CanRenew(now, owner, currentOwner, currentExpiresAt) {
		return fmt.Errorf("dolt: renew lease %s: %w", id, store.ErrContentionLost)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE queue_items SET lease_expires_at = ?, updated_at = ?, updated_at_epoch = ?
		WHERE id = ?
	`, now+ttlSeconds, s.clk.NowWall(), s.clk.NowEpoch(), id); err != nil {
		return wrapDBError(fmt.Sprintf("dolt: renew lease %s", id), err)
	}
	if err := tx.Commit(); err != nil {
		return wrapDBError(fmt.Sprintf("dolt: renew lease %s", id), err)
	}
	s.appendEventLocked(ctx, id, types.EventLeaseRenewed, map[string]any{"owner": owner})
	return nil
}

// ReleaseLease clears owner's lease on id, per internal/lease's
// CanRelease.
func (s *Store) ReleaseLease(ctx context.Context, id, owner string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDBError(fmt.Sprintf("dolt: release lease %s", id), err)
	}
	defer tx.Rollback()

	currentOwner, _, err := currentLeaseForUpdate(ctx, tx, id)
	if err != nil {
		return wrapDBError(fmt.Sprintf("dolt: release lease %s", id), err)
	}
	if !lease.CanRelease(owner, currentOwner) {
		return fmt.Errorf("dolt: release lease %s: %w", id, store.ErrContentionLost)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE queue_items SET lease_owner = NULL, lease_expires_at = NULL, updated_at = ?, updated_at_epoch = ?
		WHERE id = ?
	`, s.clk.NowWall(), s.clk.NowEpoch(), id); err != nil {
		return wrapDBError(fmt.Sprintf("dolt: release lease %s", id), err)
	}
	if err := tx.Commit(); err != nil {
		return wrapDBError(fmt.Sprintf("dolt: release lease %s", id), err)
	}
	s.appendEventLocked(ctx, id, types.EventLeaseReleased, map[string]any{"owner": owner})
	return nil
}
