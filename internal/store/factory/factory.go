// Package factory selects and constructs a store.Store backend from
// configuration. Grounded on the teacher's internal/storage/factory
// registry-of-constructors pattern.
package factory

import (
	"context"
	"fmt"

	"github.com/beads-queue/orchestrator/internal/clock"
	"github.com/beads-queue/orchestrator/internal/store"
	"github.com/beads-queue/orchestrator/internal/store/dolt"
	"github.com/beads-queue/orchestrator/internal/store/sqlite"
)

// Backend names recognized by New.
const (
	BackendSQLite = "sqlite"
	BackendDolt   = "dolt"
)

// Options configures backend construction. Fields outside a backend's
// scope are ignored.
type Options struct {
	// SQLitePath is the database file path, or ":memory:" (sqlite only).
	SQLitePath string

	// Dolt connects to or opens a versioned backend.
	Dolt dolt.Config
}

// New constructs the store.Store named by backend. An empty backend
// defaults to sqlite, the embedded zero-dependency path most deployments
// use; dolt is opt-in for installations that want the queue's history
// versioned.
func New(ctx context.Context, backend string, opts Options, clk clock.Clock) (store.Store, error) {
	switch backend {
	case "", BackendSQLite:
		path := opts.SQLitePath
		if path == "" {
			path = ":memory:"
		}
		return sqlite.New(ctx, path, clk)
	case BackendDolt:
		return dolt.New(ctx, opts.Dolt, clk)
	default:
		return nil, fmt.Errorf("store/factory: unknown backend %q", backend)
	}
}
