package dolt

import (
	"context"
	"fmt"

	"github.com/beads-queue/orchestrator/internal/dispatch"
	"github.com/beads-queue/orchestrator/internal/store"
	"github.com/beads-queue/orchestrator/internal/types"
)

func (s *Store) completedIdempotencyExists(ctx context.Context, key, excludeID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM queue_items WHERE idempotency_key = ? AND status = 'DONE' AND id != ?
	`, key, excludeID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// dropItem returns items without the entry matching id, preserving order.
func dropItem(items []types.Item, id string) []types.Item {
	out := items[:0:0]
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}

// PickNext selects the next PENDING item, using internal/dispatch's Sort
// and NextCandidate as the single source of ordering policy and
// IsDuplicate as the single source of duplicate-detection policy,
// skipping (and auto-completing as a duplicate) any candidate whose
// idempotency key already has a DONE item, then claims the first
// remaining candidate under ownerSession with a fresh lease.
func (s *Store) PickNext(ctx context.Context, ownerSession string, now int64, leaseTTLSeconds int64) (types.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE status = 'PENDING'`)
	if err != nil {
		return types.Item{}, wrapDBError("dolt: pick next: list pending", err)
	}
	var pending []types.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			rows.Close()
			return types.Item{}, wrapDBError("dolt: pick next: scan pending", err)
		}
		pending = append(pending, it)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return types.Item{}, wrapDBError("dolt: pick next: iterate pending", err)
	}
	rows.Close()

	remaining := dispatch.Sort(pending)

	for {
		candidate, ok := dispatch.NextCandidate(remaining)
		if !ok {
			return types.Item{}, fmt.Errorf("dolt: pick next: %w", store.ErrNoWork)
		}

		var dupErr error
		isDup := dispatch.IsDuplicate(candidate, func(key, excludeID string) bool {
			exists, err := s.completedIdempotencyExists(ctx, key, excludeID)
			if err != nil {
				dupErr = err
			}
			return exists
		})
		if dupErr != nil {
			return types.Item{}, wrapDBError("dolt: check idempotency", dupErr)
		}
		if isDup {
			notes := candidate.Notes
			if notes == "" {
				notes = "idempotency_duplicate_auto_done"
			} else {
				notes = notes + " | idempotency_duplicate_auto_done"
			}
			if err := s.markTerminal(ctx, candidate.ID, string(types.StatusDone), notes); err != nil {
				return types.Item{}, err
			}
			s.appendEventLocked(ctx, candidate.ID, types.EventIdempotencySkipped, map[string]any{
				"idempotency_key": candidate.IdempotencyKey,
			})
			remaining = dropItem(remaining, candidate.ID)
			continue
		}

		leaseExpiresAt := now + leaseTTLSeconds
		res, err := s.db.ExecContext(ctx, `
			UPDATE queue_items
			SET status = 'IN_PROGRESS', owner_session = ?, started_at_kst = ?,
			    lease_owner = ?, lease_expires_at = ?, updated_at = ?, updated_at_epoch = ?
			WHERE id = ? AND status = 'PENDING'
		`, ownerSession, s.clk.NowWall(), ownerSession, leaseExpiresAt, s.clk.NowWall(), s.clk.NowEpoch(), candidate.ID)
		if err != nil {
			return types.Item{}, wrapDBError("dolt: claim picked item", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return types.Item{}, wrapDBError("dolt: rows affected", err)
		}
		if n == 0 {
			remaining = dropItem(remaining, candidate.ID)
			continue
		}

		s.appendEventLocked(ctx, candidate.ID, types.EventPicked, map[string]any{"owner": ownerSession})
		s.appendEventLocked(ctx, candidate.ID, types.EventLeaseAcquired, map[string]any{"owner": ownerSession})

		return s.Get(ctx, candidate.ID)
	}
}
