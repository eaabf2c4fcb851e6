// Package sqlite is the primary queue engine backend: an embedded,
// pure-Go SQLite database via modernc.org/sqlite. Schema and CRUD idiom
// (wrapDBError, UPDATE-WHERE-guard claiming) are grounded on
// the teacher's internal/storage/sqlite package; the queue_items/
// queue_events schema itself is ported from
// _examples/original_source/automation/orchestrator/db_store.py.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/beads-queue/orchestrator/internal/clock"
	"github.com/beads-queue/orchestrator/internal/store"
	_ "modernc.org/sqlite"
)

var _ store.Store = (*Store)(nil)

// Store is the embedded SQLite-backed implementation of store.Store.
type Store struct {
	db  *sql.DB
	clk clock.Clock
}

const schema = `
CREATE TABLE IF NOT EXISTS queue_items (
	id               TEXT PRIMARY KEY,
	status           TEXT NOT NULL,
	priority         TEXT NOT NULL,
	task             TEXT NOT NULL,
	success_criteria TEXT NOT NULL DEFAULT '',
	due_at_kst       TEXT NOT NULL DEFAULT '-',
	notes            TEXT NOT NULL DEFAULT '',
	owner_session    TEXT NOT NULL DEFAULT '-',
	started_at_kst   TEXT NOT NULL DEFAULT '-',
	attempt_count    INTEGER NOT NULL DEFAULT 0,
	max_attempts     INTEGER NOT NULL DEFAULT 3,
	last_error       TEXT NOT NULL DEFAULT '',
	review_attempts  INTEGER NOT NULL DEFAULT 0,
	lease_owner      TEXT,
	lease_expires_at INTEGER,
	idempotency_key  TEXT,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL,
	created_at_epoch INTEGER NOT NULL,
	updated_at_epoch INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_queue_items_lease_expires_at ON queue_items(lease_expires_at);
CREATE INDEX IF NOT EXISTS idx_queue_items_idempotency_key ON queue_items(idempotency_key);
CREATE INDEX IF NOT EXISTS idx_queue_items_status ON queue_items(status);

CREATE TABLE IF NOT EXISTS queue_events (
	event_id     INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id      TEXT NOT NULL,
	event_type   TEXT NOT NULL,
	payload_json TEXT NOT NULL DEFAULT '{}',
	created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_queue_events_item_id ON queue_events(item_id);
`

// New opens (creating if necessary) a SQLite database at path and applies
// the queue schema. Callers that need a private in-memory instance (tests)
// should pass ":memory:".
func New(ctx context.Context, path string, clk clock.Clock) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// modernc.org/sqlite serializes writers internally; a single
	// connection avoids SQLITE_BUSY under the embedded single-process
	// dispatcher/watchdog/CLI access pattern this engine targets.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Store{db: db, clk: clk}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
