package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/beads-queue/orchestrator/internal/retrypolicy"
	"github.com/beads-queue/orchestrator/internal/types"
)

// RetryBackoffSeconds is the fixed backoff table used by RetryEligible.
// It is not read from configuration: config.RetryBackoffSeconds reaches
// router.Retry only.
var RetryBackoffSeconds = retrypolicy.DefaultSeconds

func marshalPayload(payload map[string]any) (string, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	b, err := json.Marshal(sortedPayload(payload))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// sortedPayload is a no-op wrapper documenting that encoding/json already
// sorts map keys on marshal, matching the sort_keys=True behavior the
// Python original relies on for stable run-log diffs.
func sortedPayload(payload map[string]any) map[string]any { return payload }

func (s *Store) appendEventLocked(ctx context.Context, id string, eventType types.EventType, payload map[string]any) {
	payloadJSON, err := marshalPayload(payload)
	if err != nil {
		return
	}
	s.db.ExecContext(ctx, `
		INSERT INTO queue_events (item_id, event_type, payload_json, created_at) VALUES (?, ?, ?, ?)
	`, id, string(eventType), payloadJSON, s.clk.NowWall())
}

// AppendEvent records an immutable queue_events row for id.
func (s *Store) AppendEvent(ctx context.Context, id string, eventType types.EventType, payload map[string]any) error {
	payloadJSON, err := marshalPayload(payload)
	if err != nil {
		return fmt.Errorf("sqlite: marshal event payload for %s: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO queue_events (item_id, event_type, payload_json, created_at) VALUES (?, ?, ?, ?)
	`, id, string(eventType), payloadJSON, s.clk.NowWall())
	return wrapDBError(fmt.Sprintf("sqlite: append event for %s", id), err)
}

// ListEvents returns every event recorded for id, oldest first.
func (s *Store) ListEvents(ctx context.Context, id string) ([]types.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, item_id, event_type, payload_json, created_at
		FROM queue_events WHERE item_id = ? ORDER BY event_id ASC
	`, id)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("sqlite: list events for %s", id), err)
	}
	defer rows.Close()

	var events []types.Event
	for rows.Next() {
		var e types.Event
		var payloadJSON string
		if err := rows.Scan(&e.EventID, &e.ItemID, &e.EventType, &payloadJSON, &e.CreatedAtKST); err != nil {
			return nil, wrapDBError("sqlite: scan event row", err)
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err == nil {
			e.Payload = payload
		}
		events = append(events, e)
	}
	return events, wrapDBError("sqlite: iterate event rows", rows.Err())
}

// RetryEligible resets every FAILED or lease-expired IN_PROGRESS item under
// its attempt cap back to PENDING, stamping a retry_not_before note per the
// fixed backoff table, and appends a "retried" event for each. Ported from
// db_store.py's retry_eligible_items.
func (s *Store) RetryEligible(ctx context.Context, now int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, notes, attempt_count, max_attempts, lease_expires_at
		FROM queue_items
		WHERE status IN ('FAILED', 'IN_PROGRESS')
		ORDER BY created_at_epoch ASC
	`)
	if err != nil {
		return nil, wrapDBError("sqlite: query retry-eligible items", err)
	}

	type candidate struct {
		id, status, notes string
		attemptCount, maxAttempts int
		leaseExpiresAt *int64
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		var leaseExpiresAt sql.NullInt64
		if err := rows.Scan(&c.id, &c.status, &c.notes, &c.attemptCount, &c.maxAttempts, &leaseExpiresAt); err != nil {
			rows.Close()
			return nil, wrapDBError("sqlite: scan retry-eligible row", err)
		}
		if leaseExpiresAt.Valid {
			v := leaseExpiresAt.Int64
			c.leaseExpiresAt = &v
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("sqlite: iterate retry-eligible rows", err)
	}

	var reset []string
	for _, c := range candidates {
		if c.attemptCount >= c.maxAttempts {
			continue
		}
		isFailed := c.status == string(types.StatusFailed)
		isTimeout := c.status == string(types.StatusInProgress) && c.leaseExpiresAt != nil && *c.leaseExpiresAt <= now
		if !isFailed && !isTimeout {
			continue
		}

		backoff := retrypolicy.SecondsForAttempt(RetryBackoffSeconds, c.attemptCount)
		note := fmt.Sprintf("retry_not_before=%d", now+backoff)
		notes := c.notes
		if notes == "" {
			notes = note
		} else {
			notes = notes + " | " + note
		}

		if err := s.MarkPendingRetry(ctx, c.id, notes, c.attemptCount+1); err != nil {
			return reset, fmt.Errorf("sqlite: retry-eligible reset %s: %w", c.id, err)
		}
		s.appendEventLocked(ctx, c.id, types.EventRetried, map[string]any{"reason": "failed_or_timeout"})
		reset = append(reset, c.id)
	}
	return reset, nil
}
